package tempo

import "fmt"

// Section is a tempo or meter change on the timeline: either a *TempoSection or a *MeterSection.
type Section interface {
	Pulse() float64
	Frame() int64
	Movable() bool
	PositionLockStyle() PositionLockStyle

	metric() *MetricSection
	clone() Section
}

// MetricSection holds the coordinates shared by tempo and meter sections.
type MetricSection struct {
	pulse     float64
	frame     int64
	movable   bool
	lockStyle PositionLockStyle
}

func (ms *MetricSection) Pulse() float64                      { return ms.pulse }
func (ms *MetricSection) Frame() int64                        { return ms.frame }
func (ms *MetricSection) Movable() bool                       { return ms.movable }
func (ms *MetricSection) PositionLockStyle() PositionLockStyle { return ms.lockStyle }
func (ms *MetricSection) metric() *MetricSection              { return ms }

// MeterSection is a section of timeline with a certain Meter.
type MeterSection struct {
	MetricSection
	Meter

	bbt BBT
	// cumulative meter beats from the origin to this section's bar
	beat float64
}

func newMeterSection(m Meter, lock PositionLockStyle) *MeterSection {
	return &MeterSection{
		MetricSection: MetricSection{movable: true, lockStyle: lock},
		Meter:         m,
		bbt:           BBT{Bars: 1, Beats: 1},
	}
}

// BBT returns the bar this meter starts on.
func (ms *MeterSection) BBT() BBT { return ms.bbt }

// Beat returns the number of meter beats from the origin to this section.
func (ms *MeterSection) Beat() float64 { return ms.beat }

func (ms *MeterSection) clone() Section {
	c := *ms
	return &c
}

func (ms *MeterSection) String() string {
	return fmt.Sprintf("Meter %s at %s beat %g pulse %g frame %d (%s movable=%t)",
		ms.Meter, ms.bbt, ms.beat, ms.pulse, ms.frame, ms.lockStyle, ms.movable)
}

// TempoType selects how the tempo evolves over a section.
type TempoType int

const (
	Ramp TempoType = iota
	Constant
)

func (tt TempoType) String() string {
	switch tt {
	case Ramp:
		return "Ramp"
	case Constant:
		return "Constant"
	}
	return fmt.Sprintf("TempoType(%d)", int(tt))
}

// TempoSection is a section of timeline with a certain Tempo.
type TempoSection struct {
	MetricSection
	Tempo

	tempoType TempoType
	c         float64
	active    bool

	// fractional position inside the bar holding this section, in [0, 1)
	barOffset float64

	legacyBBT    BBT
	hasLegacyBBT bool
}

func newTempoSection(t Tempo, tt TempoType, lock PositionLockStyle) *TempoSection {
	return &TempoSection{
		MetricSection: MetricSection{movable: true, lockStyle: lock},
		Tempo:         t,
		tempoType:     tt,
		active:        true,
	}
}

func (ts *TempoSection) Type() TempoType { return ts.tempoType }

// C returns the ramp coefficient. It is zero for constant sections.
func (ts *TempoSection) C() float64 { return ts.c }

func (ts *TempoSection) Active() bool       { return ts.active }
func (ts *TempoSection) BarOffset() float64 { return ts.barOffset }

// LegacyBBT returns the bar/beat/tick a pre-pulse session anchored this tempo to.
func (ts *TempoSection) LegacyBBT() (BBT, bool) { return ts.legacyBBT, ts.hasLegacyBBT }

func (ts *TempoSection) clone() Section {
	c := *ts
	return &c
}

func (ts *TempoSection) String() string {
	return fmt.Sprintf("Tempo %s at pulse %g frame %d (%s %s c=%g active=%t movable=%t)",
		ts.Tempo, ts.pulse, ts.frame, ts.lockStyle, ts.tempoType, ts.c, ts.active, ts.movable)
}

func (ts *TempoSection) ramped() bool {
	return ts.tempoType == Ramp && ts.c != 0
}

// TempoAtFrame returns the bpm in effect at frame, which must not precede the section.
func (ts *TempoSection) TempoAtFrame(frame, sr int64) float64 {
	if !ts.ramped() {
		return ts.beatsPerMinute
	}
	return ts.pulseTempoAtTime(frameToMinute(frame-ts.frame, sr)) * ts.noteType
}

// FrameAtTempo returns the frame at which the ramp reaches bpm.
func (ts *TempoSection) FrameAtTempo(bpm float64, sr int64) int64 {
	if !ts.ramped() {
		return ts.frame
	}
	return ts.frame + minuteToFrame(ts.timeAtPulseTempo(bpm/ts.noteType), sr)
}

// TempoAtPulse returns the bpm in effect at pulse.
func (ts *TempoSection) TempoAtPulse(pulse float64) float64 {
	if !ts.ramped() {
		return ts.beatsPerMinute
	}
	return ts.pulseTempoAtPulse(pulse-ts.pulse) * ts.noteType
}

// PulseAtTempo returns the pulse at which the ramp reaches bpm.
func (ts *TempoSection) PulseAtTempo(bpm float64) float64 {
	if !ts.ramped() {
		return ts.pulse
	}
	return ts.pulseAtPulseTempo(bpm/ts.noteType) + ts.pulse
}

// PulseAtFrame returns the pulse at frame, measured from the origin.
func (ts *TempoSection) PulseAtFrame(frame, sr int64) float64 {
	return ts.pulseAtTime(frameToMinute(frame-ts.frame, sr)) + ts.pulse
}

// FrameAtPulse returns the frame at pulse, measured from the origin.
func (ts *TempoSection) FrameAtPulse(pulse float64, sr int64) int64 {
	return ts.frame + minuteToFrame(ts.timeAtPulse(pulse-ts.pulse), sr)
}

// pulse-tempo at the end of the span that finishes at endPulse (absolute).
func (ts *TempoSection) pulseTempoAtEnd(endPulse float64) float64 {
	if !ts.ramped() {
		return ts.PulsesPerMinute()
	}
	return ts.pulseTempoAtPulse(endPulse - ts.pulse)
}

// computeCFuncPulse returns the coefficient that takes the ramp to endPPM at endPulse.
func (ts *TempoSection) computeCFuncPulse(endPPM, endPulse float64) float64 {
	return (endPPM - ts.PulsesPerMinute()) / (endPulse - ts.pulse)
}

// computeCFuncFrame returns the coefficient that takes the ramp to endPPM at endFrame.
func (ts *TempoSection) computeCFuncFrame(endPPM float64, endFrame, sr int64) float64 {
	return cFunc(ts.PulsesPerMinute(), endPPM, frameToMinute(endFrame-ts.frame, sr))
}

/* ramp functions, zero-based with time in minutes and pulse-tempo in pulses per minute,
 * relative to the section start.
 */

func (ts *TempoSection) pulseTempoAtTime(minutes float64) float64 {
	return pulseTempoAtTime(ts.PulsesPerMinute(), ts.c, minutes)
}

func (ts *TempoSection) timeAtPulseTempo(ppm float64) float64 {
	return timeAtPulseTempo(ts.PulsesPerMinute(), ts.c, ppm)
}

func (ts *TempoSection) pulseTempoAtPulse(pulse float64) float64 {
	return ts.PulsesPerMinute() + ts.c*pulse
}

func (ts *TempoSection) pulseAtPulseTempo(ppm float64) float64 {
	return (ppm - ts.PulsesPerMinute()) / ts.c
}

func (ts *TempoSection) pulseAtTime(minutes float64) float64 {
	if !ts.ramped() {
		return ts.PulsesPerMinute() * minutes
	}
	return rampPulses(ts.PulsesPerMinute(), ts.c, minutes)
}

func (ts *TempoSection) timeAtPulse(pulse float64) float64 {
	if !ts.ramped() {
		return pulse / ts.PulsesPerMinute()
	}
	return rampMinutes(ts.PulsesPerMinute(), ts.c, pulse)
}
