package tempo

import (
	"fmt"
	"math"
)

// TicksPerBeat is the BBT tick resolution.
const TicksPerBeat = 1920

// PositionLockStyle selects which coordinate of a section is canonical.
type PositionLockStyle int

const (
	// AudioTime sections keep their frame; the pulse is derived.
	AudioTime PositionLockStyle = iota
	// MusicTime sections keep their pulse (or bar for meters); the frame is derived.
	MusicTime
)

func (ps PositionLockStyle) String() string {
	switch ps {
	case AudioTime:
		return "AudioTime"
	case MusicTime:
		return "MusicTime"
	}
	return fmt.Sprintf("PositionLockStyle(%d)", int(ps))
}

// RoundMode is the direction used when snapping to the grid.
type RoundMode int

const (
	RoundNearest RoundMode = iota
	RoundUp
	RoundDown
)

// Tempo, the speed at which musical time progresses.
type Tempo struct {
	beatsPerMinute float64
	noteType       float64
}

// NewTempo creates a tempo of bpm beats per minute where a beat is a 1/noteType note.
// A noteType of 4 is a quarter note.
func NewTempo(bpm, noteType float64) Tempo {
	return Tempo{beatsPerMinute: bpm, noteType: noteType}
}

func (t Tempo) BeatsPerMinute() float64 { return t.beatsPerMinute }
func (t Tempo) NoteType() float64       { return t.noteType }

// PulsesPerMinute is the pulse-tempo: whole notes per minute.
func (t Tempo) PulsesPerMinute() float64 {
	return t.beatsPerMinute / t.noteType
}

// FramesPerBeat returns the length of one beat at sample rate sr.
func (t Tempo) FramesPerBeat(sr int64) float64 {
	return (60.0 * float64(sr)) / t.beatsPerMinute
}

// FramesPerPulse returns the length of one whole note at sample rate sr.
func (t Tempo) FramesPerPulse(sr int64) float64 {
	return (t.noteType * 60.0 * float64(sr)) / t.beatsPerMinute
}

func (t Tempo) valid() bool {
	return validPositive(t.beatsPerMinute) && validPositive(t.noteType)
}

func (t Tempo) String() string {
	return fmt.Sprintf("%g bpm = 1/%g", t.beatsPerMinute, t.noteType)
}

// Meter, or time signature (divisions per bar, and which note type is a division).
type Meter struct {
	// The number of divisions in a bar. Fractional values are allowed.
	divisionsPerBar float64

	// The note a division represents: 4 is a quarter note, 8 an eighth, etc.
	noteDivisor float64
}

// NewMeter creates a dpb/noteDivisor time signature.
func NewMeter(dpb, noteDivisor float64) Meter {
	return Meter{divisionsPerBar: dpb, noteDivisor: noteDivisor}
}

func (m Meter) DivisionsPerBar() float64 { return m.divisionsPerBar }
func (m Meter) NoteDivisor() float64     { return m.noteDivisor }

// FramesPerBar returns the length of one bar of this meter at tempo t.
func (m Meter) FramesPerBar(t Tempo, sr int64) float64 {
	return t.FramesPerPulse(sr) * (m.divisionsPerBar / m.noteDivisor)
}

// FramesPerGrid returns the length of one division of this meter at tempo t.
func (m Meter) FramesPerGrid(t Tempo, sr int64) float64 {
	return t.FramesPerPulse(sr) / m.noteDivisor
}

func (m Meter) valid() bool {
	return validPositive(m.divisionsPerBar) && validPositive(m.noteDivisor)
}

func (m Meter) String() string {
	return fmt.Sprintf("%g/%g", m.divisionsPerBar, m.noteDivisor)
}

// BBT is a bar/beat/tick position. Bars and beats are 1-based.
type BBT struct {
	Bars  int32
	Beats int32
	Ticks int32
}

// IsBar reports whether b sits exactly on a bar line.
func (b BBT) IsBar() bool {
	return b.Beats == 1 && b.Ticks == 0
}

func (b BBT) String() string {
	return fmt.Sprintf("%d|%d|%d", b.Bars, b.Beats, b.Ticks)
}

var (
	defaultTempo = NewTempo(120.0, 4.0)
	defaultMeter = NewMeter(4.0, 4.0)
)

// DefaultTempo is 120 quarter notes per minute.
func DefaultTempo() Tempo { return defaultTempo }

// DefaultMeter is 4/4.
func DefaultMeter() Meter { return defaultMeter }

func validPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
