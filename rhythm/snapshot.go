package rhythm

import (
	"fmt"
	"math"
	"time"

	"github.com/robmorgan/tempomap/tempo"
)

// Snapshot is an interface for probing details about the timeline established by a metronome.
type Snapshot interface {
	// GetStartTime gets the metronome's timeline origin.
	GetStartTime() time.Time

	// GetInstant gets the point in time with respect to which the snapshot is computed.
	GetInstant() time.Time

	// GetFrame gets the timeline frame at the snapshot's instant.
	GetFrame() int64

	// GetTempo gets the tempo in effect at the snapshot.
	GetTempo() tempo.Tempo

	// GetBeatsPerBar gets the bar length in beats of the meter in effect.
	GetBeatsPerBar() float64

	// GetBarsPerPhrase gets the metronome's phrase length in bars.
	GetBarsPerPhrase() int

	// GetBeatInterval gets the length of the current beat in milliseconds.
	GetBeatInterval() float64

	// GetBarInterval gets the length of the current bar in milliseconds.
	GetBarInterval() float64

	// GetBeat gets the 1-based beat number, counted from the start of the timeline.
	GetBeat() int64

	// GetBar gets the 1-based bar number.
	GetBar() int64

	// GetPhrase gets the 1-based phrase number.
	GetPhrase() int64

	// GetBeatPhase gets how far through its beat the snapshot is, from 0 up to 1.
	GetBeatPhase() float64

	// GetBarPhase gets how far through its bar the snapshot is, from 0 up to 1.
	GetBarPhase() float64

	// GetTimeOfBeat determines the instant at which a particular beat will occur.
	GetTimeOfBeat(beat int64) time.Time

	// GetTimeOfBar determines the instant at which a particular bar will occur.
	GetTimeOfBar(bar int64) time.Time

	// GetBeatWithinBar returns the beat number of the snapshot relative to the start of the bar.
	GetBeatWithinBar() int

	// IsDownBeat checks whether the current beat at the time of the snapshot was the first beat in its bar.
	IsDownBeat() bool

	// GetBarWithinPhrase returns the bar number of the snapshot relative to the start of the phrase.
	GetBarWithinPhrase() int

	// IsPhraseStart checks whether the current bar at the time of the snapshot was the first bar in its phrase.
	IsPhraseStart() bool

	// GetMarker returns the time represented by the snapshot as "phrase.bar.beat".
	GetMarker() string

	// DistanceFromBeat determines how far in milliseconds the snapshot is from its closest beat.
	// It is negative when the closest beat is still to come.
	DistanceFromBeat() float64
}

// MetronomeSnapshot is a Snapshot read off a TempoMap.
type MetronomeSnapshot struct {
	tempoMap      *tempo.TempoMap
	startTime     time.Time
	startFrame    int64
	instant       time.Time
	frame         int64
	barsPerPhrase int

	position float64 // meter beats since the origin
	bbt      tempo.BBT
	metric   tempo.TempoMetric
	barStart float64
}

var _ Snapshot = (*MetronomeSnapshot)(nil)

func newMetronomeSnapshot(tm *tempo.TempoMap, startTime time.Time, startFrame int64, barsPerPhrase int, instant time.Time) *MetronomeSnapshot {
	frame := instantToFrame(instant, startTime, startFrame, tm.FrameRate())
	bbt := tm.BBTTime(frame)
	return &MetronomeSnapshot{
		tempoMap:      tm,
		startTime:     startTime,
		startFrame:    startFrame,
		instant:       instant,
		frame:         frame,
		barsPerPhrase: barsPerPhrase,
		position:      tm.BeatAtFrame(frame),
		bbt:           bbt,
		metric:        tm.MetricAt(frame),
		barStart:      tm.BBTToBeats(tempo.BBT{Bars: bbt.Bars, Beats: 1}),
	}
}

func (s *MetronomeSnapshot) GetStartTime() time.Time { return s.startTime }
func (s *MetronomeSnapshot) GetInstant() time.Time   { return s.instant }
func (s *MetronomeSnapshot) GetFrame() int64         { return s.frame }
func (s *MetronomeSnapshot) GetBarsPerPhrase() int   { return s.barsPerPhrase }

func (s *MetronomeSnapshot) GetTempo() tempo.Tempo {
	return s.tempoMap.TempoAt(s.frame)
}

func (s *MetronomeSnapshot) GetBeatsPerBar() float64 {
	return s.metric.Meter.DivisionsPerBar()
}

func (s *MetronomeSnapshot) GetBeatInterval() float64 {
	beat := math.Floor(s.position)
	return s.millisBetween(s.tempoMap.FrameAtBeat(beat), s.tempoMap.FrameAtBeat(beat+1))
}

func (s *MetronomeSnapshot) GetBarInterval() float64 {
	start := s.tempoMap.FrameTime(tempo.BBT{Bars: s.bbt.Bars, Beats: 1})
	end := s.tempoMap.FrameTime(tempo.BBT{Bars: s.bbt.Bars + 1, Beats: 1})
	return s.millisBetween(start, end)
}

func (s *MetronomeSnapshot) GetBeat() int64 { return markerNumber(s.position) }

func (s *MetronomeSnapshot) GetBar() int64 { return int64(s.bbt.Bars) }

func (s *MetronomeSnapshot) GetPhrase() int64 {
	return (s.GetBar()-1)/int64(s.barsPerPhrase) + 1
}

func (s *MetronomeSnapshot) GetBeatPhase() float64 { return markerPhase(s.position) }

func (s *MetronomeSnapshot) GetBarPhase() float64 {
	phase := (s.position - s.barStart) / s.GetBeatsPerBar()
	return math.Max(0, math.Min(phase, math.Nextafter(1, 0)))
}

func (s *MetronomeSnapshot) GetTimeOfBeat(beat int64) time.Time {
	return s.instantOf(s.tempoMap.FrameAtBeat(float64(beat - 1)))
}

func (s *MetronomeSnapshot) GetTimeOfBar(bar int64) time.Time {
	return s.instantOf(s.tempoMap.FrameTime(tempo.BBT{Bars: int32(bar), Beats: 1}))
}

func (s *MetronomeSnapshot) GetBeatWithinBar() int { return int(s.bbt.Beats) }

func (s *MetronomeSnapshot) IsDownBeat() bool { return s.bbt.Beats == 1 }

func (s *MetronomeSnapshot) GetBarWithinPhrase() int {
	return int((s.GetBar()-1)%int64(s.barsPerPhrase)) + 1
}

func (s *MetronomeSnapshot) IsPhraseStart() bool { return s.GetBarWithinPhrase() == 1 }

func (s *MetronomeSnapshot) GetMarker() string {
	return fmt.Sprintf("%d.%d.%d", s.GetPhrase(), s.GetBarWithinPhrase(), s.GetBeatWithinBar())
}

func (s *MetronomeSnapshot) DistanceFromBeat() float64 {
	phase := s.GetBeatPhase()
	if phase < 0.5 {
		return phase * s.GetBeatInterval()
	}
	return -(1 - phase) * s.GetBeatInterval()
}

func (s *MetronomeSnapshot) instantOf(frame int64) time.Time {
	return frameToInstant(frame, s.startTime, s.startFrame, s.tempoMap.FrameRate())
}

func (s *MetronomeSnapshot) millisBetween(from, to int64) float64 {
	return framesToMilliseconds(to-from, s.tempoMap.FrameRate())
}
