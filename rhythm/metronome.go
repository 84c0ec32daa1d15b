package rhythm

import (
	"math"
	"sync"
	"time"

	"github.com/robmorgan/tempomap/logger"
	"github.com/robmorgan/tempomap/tempo"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// DefaultBarsPerPhrase is the phrase length a new Metronome starts with.
const DefaultBarsPerPhrase = 8

// Metronome follows a TempoMap in wall-clock time. It anchors an instant to a frame and
// reads beats, bars and phases off the map from there.
// Originally based on https://github.com/Deep-Symmetry/electro/blob/main/src/main/java/org/deepsymmetry/electro/Metronome.java#L449
type Metronome struct {
	mu            sync.Mutex
	clock         clock.PassiveClock
	tempoMap      *tempo.TempoMap
	startTime     time.Time
	startFrame    int64
	barsPerPhrase int
}

// NewMetronome creates a Metronome at frame 0 as of now.
func NewMetronome(cl clock.PassiveClock, tm *tempo.TempoMap) *Metronome {
	return &Metronome{
		clock:         cl,
		tempoMap:      tm,
		startTime:     cl.Now(),
		barsPerPhrase: DefaultBarsPerPhrase,
	}
}

// CopyMetronome creates a new Metronome as a copy of another
func CopyMetronome(m *Metronome) *Metronome {
	m.mu.Lock()
	defer m.mu.Unlock()

	return &Metronome{
		clock:         m.clock,
		tempoMap:      m.tempoMap,
		startTime:     m.startTime,
		startFrame:    m.startFrame,
		barsPerPhrase: m.barsPerPhrase,
	}
}

// Start anchors the current instant to frame.
func (m *Metronome) Start(frame int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startTime = m.clock.Now()
	m.startFrame = frame
}

// SetBarsPerPhrase sets the phrase length used by snapshots.
func (m *Metronome) SetBarsPerPhrase(bars int) {
	if bars < 1 {
		bars = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.barsPerPhrase = bars
}

// GetSnapshot returns the timeline position addedDuration from now.
func (m *Metronome) GetSnapshot(addedDuration time.Duration) *MetronomeSnapshot {
	m.mu.Lock()
	instant := m.clock.Now().Add(addedDuration)
	startTime, startFrame, barsPerPhrase := m.startTime, m.startFrame, m.barsPerPhrase
	m.mu.Unlock()

	return newMetronomeSnapshot(m.tempoMap, startTime, startFrame, barsPerPhrase, instant)
}

// GetTempo returns the tempo in effect now, in beats per minute of its own note value.
func (m *Metronome) GetTempo() float64 {
	m.mu.Lock()
	frame := m.frameAt(m.clock.Now())
	m.mu.Unlock()
	return m.tempoMap.TempoAt(frame).BeatsPerMinute()
}

// SetTempo changes the tempo section that governs the current frame. The anchor is moved so
// that the current beat and phase are unaffected by the tempo change.
func (m *Metronome) SetTempo(bpm float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	instant := m.clock.Now()
	frame := m.frameAt(instant)
	beat := m.tempoMap.BeatAtFrame(frame)
	noteType := m.tempoMap.TempoSectionAt(frame).NoteType()

	if err := m.tempoMap.ChangeExistingTempoAt(frame, bpm, noteType); err != nil {
		return err
	}
	moved := m.tempoMap.FrameAtBeat(beat)
	m.startFrame += moved - frame

	logger.GetProjectLogger().WithFields(logrus.Fields{
		"bpm":   bpm,
		"frame": moved,
		"beat":  beat,
	}).Debug("metronome tempo changed")
	return nil
}

// GetBeatInterval returns the number of milliseconds the current beat lasts.
func (m *Metronome) GetBeatInterval() float64 {
	return m.GetSnapshot(0).GetBeatInterval()
}

// frameAt maps instant onto the timeline. Callers hold mu.
func (m *Metronome) frameAt(instant time.Time) int64 {
	return instantToFrame(instant, m.startTime, m.startFrame, m.tempoMap.FrameRate())
}

func instantToFrame(instant, start time.Time, startFrame, frameRate int64) int64 {
	elapsed := instant.Sub(start).Seconds() * float64(frameRate)
	frame := startFrame + int64(math.Round(elapsed))
	if frame < 0 {
		return 0
	}
	return frame
}

func frameToInstant(frame int64, start time.Time, startFrame, frameRate int64) time.Time {
	seconds := float64(frame-startFrame) / float64(frameRate)
	return start.Add(time.Duration(math.Round(seconds * float64(time.Second))))
}

// framesToMilliseconds converts a frame count to milliseconds
func framesToMilliseconds(frames, frameRate int64) float64 {
	return float64(frames) * 1000 / float64(frameRate)
}

// markerNumber calculates the 1-based marker a position falls in
func markerNumber(position float64) int64 {
	return int64(math.Floor(position)) + 1
}

// markerPhase calculates the phase of a marker
func markerPhase(position float64) float64 {
	return position - math.Floor(position)
}
