package tempo

import (
	"fmt"
	"sync"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/sirupsen/logrus"

	"github.com/robmorgan/tempomap/logger"
)

// TempoMap is the timeline of tempo and meter sections for one session. It converts between
// frames, pulses and BBT and re-solves itself after every edit.
//
// Queries take a shared lock and may run from any goroutine. Edits take the exclusive lock,
// work on a private copy of the sections and only publish it once it solves, so readers see
// either the state before an edit or the state after it. Sections returned by queries belong
// to the state that was current at the time; they are never mutated afterwards, and an edit
// that takes a section argument only accepts sections of the current state.
type TempoMap struct {
	lock    sync.RWMutex
	metrics *metrics
	length  int64

	log *logrus.Entry

	// MetricPositionChanged is emitted after every committed edit, once the lock is released.
	MetricPositionChanged Signal
}

// Option configures a TempoMap at construction.
type Option func(*options)

type options struct {
	log    *logrus.Entry
	tempo  Tempo
	meter  Meter
	length int64
}

// WithLogger sets the log entry the map reports edits to.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

// WithInitialTempo replaces DefaultTempo as the tempo at frame 0.
func WithInitialTempo(t Tempo) Option {
	return func(o *options) { o.tempo = t }
}

// WithInitialMeter replaces DefaultMeter as the meter at bar 1.
func WithInitialMeter(m Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithLength sets the timeline length in frames.
func WithLength(frames int64) Option {
	return func(o *options) { o.length = frames }
}

// NewTempoMap creates a map at frameRate holding one tempo and one meter at the origin.
func NewTempoMap(frameRate int64, opts ...Option) (*TempoMap, error) {
	o := options{
		tempo: DefaultTempo(),
		meter: DefaultMeter(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.GetProjectLogger().WithField("component", "tempomap")
	}

	if frameRate <= 0 {
		return nil, errors.WithStackTraceAndPrefix(ErrInvalidValue, "frame rate %d", frameRate)
	}
	if !o.tempo.valid() {
		return nil, errors.WithStackTraceAndPrefix(ErrInvalidValue, "initial tempo %s", o.tempo)
	}
	if !o.meter.valid() {
		return nil, errors.WithStackTraceAndPrefix(ErrInvalidValue, "initial meter %s", o.meter)
	}
	if o.length < 0 {
		return nil, errors.WithStackTraceAndPrefix(ErrInvalidValue, "length %d", o.length)
	}

	m := newMetrics(frameRate, o.tempo, o.meter)
	if err := m.solve(); err != nil {
		return nil, err
	}

	return &TempoMap{
		metrics: m,
		length:  o.length,
		log:     o.log,
	}, nil
}

// FrameRate returns the sample rate the map was built for.
func (tm *TempoMap) FrameRate() int64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.frameRate
}

// Length returns the timeline length in frames.
func (tm *TempoMap) Length() int64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.length
}

// NTempos returns the number of tempo sections, including inactive ones.
func (tm *TempoMap) NTempos() int {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.nTempos()
}

// NMeters returns the number of meter sections.
func (tm *TempoMap) NMeters() int {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return len(tm.metrics.meters)
}

// FirstTempo returns the immovable tempo at the origin.
func (tm *TempoMap) FirstTempo() *TempoSection {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.firstTempo()
}

// FirstMeter returns the immovable meter at the origin.
func (tm *TempoMap) FirstMeter() *MeterSection {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.firstMeter()
}

// Sections returns a copy of the ordered section list.
func (tm *TempoMap) Sections() []Section {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	out := make([]Section, len(tm.metrics.sections))
	copy(out, tm.metrics.sections)
	return out
}

// ApplyWithMetrics calls fn with the ordered section list under the read lock.
// fn must not call back into the map's edit methods.
func (tm *TempoMap) ApplyWithMetrics(fn func(sections []Section)) {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	fn(tm.metrics.sections)
}

// edit runs fn against a copy of the current state, solves the copy and publishes it.
// On any error the current state is left as it was.
func (tm *TempoMap) edit(op string, fields logrus.Fields, notify bool, fn func(cur, next *metrics) error) error {
	return tm.editTimeline(op, fields, notify, func(cur, next *metrics, _ *int64) error {
		return fn(cur, next)
	})
}

// editTimeline is edit for operations that also change the timeline length. fn gets a copy
// of the length, which is published together with the sections.
func (tm *TempoMap) editTimeline(op string, fields logrus.Fields, notify bool, fn func(cur, next *metrics, length *int64) error) error {
	tm.lock.Lock()
	cur := tm.metrics
	next := cur.clone()
	length := tm.length

	err := fn(cur, next, &length)
	if err == nil {
		err = next.solve()
	}
	if err != nil {
		tm.lock.Unlock()
		tm.log.WithFields(fields).WithError(err).Warnf("%s rejected", op)
		return err
	}

	tm.metrics = next
	tm.length = length
	tm.lock.Unlock()

	tm.log.WithFields(fields).Debug(op)
	if notify {
		tm.MetricPositionChanged.Emit()
	}
	return nil
}

// dryRun is edit without publishing: it returns the solved copy.
func (tm *TempoMap) dryRun(fn func(cur, next *metrics) error) (*metrics, error) {
	tm.lock.RLock()
	defer tm.lock.RUnlock()

	cur := tm.metrics
	next := cur.clone()
	if err := fn(cur, next); err != nil {
		return nil, err
	}
	if err := next.solve(); err != nil {
		return nil, err
	}
	return next, nil
}

// lookupTempo returns the copy of ts held by next.
func lookupTempo(cur, next *metrics, ts *TempoSection) (*TempoSection, error) {
	i := cur.indexOf(ts)
	if ts == nil || i < 0 {
		return nil, errors.WithStackTraceAndPrefix(ErrUnknownSection, "tempo %v", ts)
	}
	return next.sections[i].(*TempoSection), nil
}

// lookupMeter returns the copy of ms held by next.
func lookupMeter(cur, next *metrics, ms *MeterSection) (*MeterSection, error) {
	i := cur.indexOf(ms)
	if ms == nil || i < 0 {
		return nil, errors.WithStackTraceAndPrefix(ErrUnknownSection, "meter %v", ms)
	}
	return next.sections[i].(*MeterSection), nil
}

func checkFrame(frame int64) error {
	if frame < 0 {
		return errors.WithStackTraceAndPrefix(ErrNegativePosition, "frame %d", frame)
	}
	return nil
}

func checkPulse(pulse float64) error {
	if pulse < 0 {
		return errors.WithStackTraceAndPrefix(ErrNegativePosition, "pulse %g", pulse)
	}
	if !validPositive(pulse) && pulse != 0 {
		return errors.WithStackTraceAndPrefix(ErrInvalidValue, "pulse %g", pulse)
	}
	return nil
}

func checkTempo(t Tempo) error {
	if !t.valid() {
		return errors.WithStackTraceAndPrefix(ErrInvalidValue, "tempo %s", t)
	}
	return nil
}

func checkMeter(m Meter) error {
	if !m.valid() {
		return errors.WithStackTraceAndPrefix(ErrInvalidValue, "meter %s", m)
	}
	return nil
}

func (tm *TempoMap) String() string {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return fmt.Sprintf("TempoMap(%d Hz, %d tempos, %d meters)",
		tm.metrics.frameRate, tm.metrics.nTempos(), len(tm.metrics.meters))
}
