package tempo

import (
	"cmp"
	"math"

	"github.com/gruntwork-io/go-commons/errors"
	"golang.org/x/exp/slices"
)

const (
	// one sample of slack between a section's frame and its pulse
	frameTolerance = 1
	// relative slack between a ramp's end pulse-tempo and the next tempo
	rampEndTolerance = 1e-9
	// snap distance, in bars, for audio-locked meters falling just past a bar line
	barTolerance = 1e-6
)

// solve recomputes every derived coordinate from the canonical ones and verifies the result.
// Audio-locked and music-locked sections are merged into timeline order as they are solved,
// so an edit may carry one kind past the other.
func (m *metrics) solve() error {
	m.index()
	if err := m.recomputeTempos(); err != nil {
		return err
	}
	if err := m.recomputeMeters(); err != nil {
		return err
	}
	m.sort()
	m.updateBarOffsets()
	return m.checkSolved()
}

// splitByLock returns the immovable section of list and the others by lock style, keeping
// their relative order.
func splitByLock[S Section](list []S) (first S, audio, music []S) {
	firstAt := 0
	for i, s := range list {
		if !s.Movable() {
			firstAt = i
			break
		}
	}
	for i, s := range list {
		switch {
		case i == firstAt:
			first = s
		case s.PositionLockStyle() == AudioTime:
			audio = append(audio, s)
		default:
			music = append(music, s)
		}
	}
	return first, audio, music
}

// recomputeTempos solves the active tempos one after another. Audio-locked tempos keep their
// frame and take a pulse, music-locked tempos keep their pulse and take a frame. The next
// tempo is whichever of the earliest audio-locked and earliest music-locked ones lands first
// on the curve solved so far. Each ramp gets the coefficient that lands it on the next tempo.
func (m *metrics) recomputeTempos() error {
	if len(m.tempos) == 0 {
		return errors.WithStackTraceAndPrefix(ErrUnsolvable, "no active tempo")
	}
	sr := m.frameRate

	first, audio, music := splitByLock(m.tempos)
	slices.SortStableFunc(audio, func(a, b *TempoSection) int { return cmp.Compare(a.frame, b.frame) })
	slices.SortStableFunc(music, func(a, b *TempoSection) int { return cmp.Compare(a.pulse, b.pulse) })

	first.pulse, first.frame = 0, 0
	solved := []*TempoSection{first}
	prev := first
	for len(audio) > 0 || len(music) > 0 {
		var ts *TempoSection
		switch {
		case len(music) == 0:
			ts, audio = audio[0], audio[1:]
		case len(audio) == 0:
			ts, music = music[0], music[1:]
		case music[0].pulse <= prev.pulse || prev.frameOfNext(music[0], sr) < audio[0].frame:
			ts, music = music[0], music[1:]
		default:
			ts, audio = audio[0], audio[1:]
		}
		if err := prev.solveNext(ts, sr); err != nil {
			return err
		}
		solved = append(solved, ts)
		prev = ts
	}
	prev.c = 0
	m.tempos = solved

	// inactive tempos keep their canonical coordinate and follow the active curve
	for _, s := range m.sections {
		ts, ok := s.(*TempoSection)
		if !ok || ts.active {
			continue
		}
		ts.c = 0
		if ts.lockStyle == AudioTime {
			ts.pulse = m.pulseAtFrame(ts.frame)
		} else {
			ts.frame = m.frameAtPulse(ts.pulse)
		}
	}
	return nil
}

// frameOfNext is the frame a music-locked next would land on if it followed ts directly.
func (ts *TempoSection) frameOfNext(next *TempoSection, sr int64) int64 {
	ts.c = 0
	if ts.tempoType == Ramp {
		ts.c = ts.computeCFuncPulse(next.PulsesPerMinute(), next.pulse)
	}
	return ts.FrameAtPulse(next.pulse, sr)
}

// solveNext sets the ramp coefficient of ts and the derived coordinate of next, the tempo
// that directly follows it.
func (ts *TempoSection) solveNext(next *TempoSection, sr int64) error {
	switch next.lockStyle {
	case AudioTime:
		if next.frame <= ts.frame {
			return errors.WithStackTraceAndPrefix(ErrUnsolvable, "tempo at frame %d does not follow frame %d", next.frame, ts.frame)
		}
		ts.c = 0
		if ts.tempoType == Ramp {
			ts.c = ts.computeCFuncFrame(next.PulsesPerMinute(), next.frame, sr)
		}
		next.pulse = ts.PulseAtFrame(next.frame, sr)
	case MusicTime:
		if next.pulse <= ts.pulse {
			return errors.WithStackTraceAndPrefix(ErrUnsolvable, "tempo at pulse %g does not follow pulse %g", next.pulse, ts.pulse)
		}
		ts.c = 0
		if ts.tempoType == Ramp {
			ts.c = ts.computeCFuncPulse(next.PulsesPerMinute(), next.pulse)
		}
		next.frame = ts.FrameAtPulse(next.pulse, sr)
	}

	if !(next.pulse > ts.pulse) || next.frame <= ts.frame || math.IsNaN(ts.c) || math.IsInf(ts.c, 0) {
		return errors.WithStackTraceAndPrefix(ErrUnsolvable, "tempo %s collapses onto %s", next.Tempo, ts.Tempo)
	}
	return nil
}

// recomputeMeters places every meter on a bar. Audio-locked meters start a new bar at their
// frame; music-locked meters keep their bar number and follow the meter before them. As with
// tempos, the next meter is whichever of the two kinds starts first.
func (m *metrics) recomputeMeters() error {
	if len(m.meters) == 0 {
		return errors.WithStackTraceAndPrefix(ErrUnsolvable, "no meter")
	}

	first, audio, music := splitByLock(m.meters)
	slices.SortStableFunc(audio, func(a, b *MeterSection) int { return cmp.Compare(a.frame, b.frame) })
	slices.SortStableFunc(music, func(a, b *MeterSection) int { return cmp.Compare(a.bbt.Bars, b.bbt.Bars) })

	first.pulse, first.frame, first.beat = 0, 0, 0
	first.bbt = BBT{Bars: 1, Beats: 1}
	solved := []*MeterSection{first}
	prev := first
	for len(audio) > 0 || len(music) > 0 {
		var ms *MeterSection
		switch {
		case len(music) == 0:
			ms, audio = audio[0], audio[1:]
		case len(audio) == 0:
			ms, music = music[0], music[1:]
		case music[0].bbt.Bars <= prev.bbt.Bars || m.frameAtPulse(prev.pulseAtBar(music[0].bbt.Bars)) <= audio[0].frame:
			ms, music = music[0], music[1:]
		default:
			ms, audio = audio[0], audio[1:]
		}
		if err := m.placeMeter(prev, ms); err != nil {
			return err
		}
		solved = append(solved, ms)
		prev = ms
	}
	m.meters = solved
	return nil
}

// pulseAtBar is the pulse of bar under ms, which must not precede it.
func (ms *MeterSection) pulseAtBar(bar int32) float64 {
	return ms.pulse + float64(bar-ms.bbt.Bars)*ms.divisionsPerBar/ms.noteDivisor
}

func (m *metrics) placeMeter(prev, ms *MeterSection) error {
	switch ms.lockStyle {
	case AudioTime:
		pulse := m.pulseAtFrame(ms.frame)
		beats := (pulse - prev.pulse) * prev.noteDivisor
		if !(beats > 0) {
			return errors.WithStackTraceAndPrefix(ErrUnsolvable, "meter at frame %d does not follow meter at frame %d", ms.frame, prev.frame)
		}
		bars := math.Max(1, math.Ceil(beats/prev.divisionsPerBar-barTolerance))
		if bars > math.MaxInt32-float64(prev.bbt.Bars) {
			return errors.WithStackTraceAndPrefix(ErrOverflow, "meter at frame %d", ms.frame)
		}
		ms.pulse = pulse
		ms.beat = prev.beat + beats
		ms.bbt = BBT{Bars: prev.bbt.Bars + int32(bars), Beats: 1}
	case MusicTime:
		if ms.bbt.Bars <= prev.bbt.Bars {
			return errors.WithStackTraceAndPrefix(ErrUnsolvable, "meter at bar %d does not follow bar %d", ms.bbt.Bars, prev.bbt.Bars)
		}
		ms.beat = prev.beat + float64(ms.bbt.Bars-prev.bbt.Bars)*prev.divisionsPerBar
		ms.pulse = prev.pulseAtBar(ms.bbt.Bars)
		ms.frame = m.frameAtPulse(ms.pulse)
		ms.bbt = BBT{Bars: ms.bbt.Bars, Beats: 1}
	}
	return nil
}

func (m *metrics) updateBarOffsets() {
	for _, s := range m.sections {
		ts, ok := s.(*TempoSection)
		if !ok {
			continue
		}
		ms := m.meterAtPulse(ts.pulse)
		bars := (m.beatAtPulse(ts.pulse) - ms.beat) / ms.divisionsPerBar
		offset := bars - math.Floor(bars)
		if offset < 0 || offset >= 1 || math.IsNaN(offset) {
			offset = 0
		}
		ts.barOffset = offset
	}
}

// checkSolved verifies the structural invariants of a recomputed state.
func (m *metrics) checkSolved() error {
	unsolvable := func(format string, args ...interface{}) error {
		return errors.WithStackTraceAndPrefix(ErrUnsolvable, format, args...)
	}

	immovableTempos, immovableMeters := 0, 0
	for _, s := range m.sections {
		if s.Frame() < 0 || s.Pulse() < 0 {
			return errors.WithStackTraceAndPrefix(ErrNegativePosition, "section %v", s)
		}
		if s.Frame() == math.MaxInt64 || math.IsNaN(s.Pulse()) || math.IsInf(s.Pulse(), 0) {
			return errors.WithStackTraceAndPrefix(ErrOverflow, "section %v", s)
		}
		if s.Movable() {
			continue
		}
		switch s.(type) {
		case *TempoSection:
			immovableTempos++
		case *MeterSection:
			immovableMeters++
		}
	}
	if immovableTempos != 1 || immovableMeters != 1 {
		return unsolvable("%d initial tempos and %d initial meters", immovableTempos, immovableMeters)
	}

	first := m.tempos[0]
	if first.movable || !first.active || first.frame != 0 || first.pulse != 0 {
		return unsolvable("first tempo %v is not at the origin", first)
	}
	if fm := m.meters[0]; fm.movable || fm.frame != 0 || fm.pulse != 0 {
		return unsolvable("first meter %v is not at the origin", fm)
	}

	sr := m.frameRate
	for i := 1; i < len(m.tempos); i++ {
		prev, ts := m.tempos[i-1], m.tempos[i]
		if !(ts.pulse > prev.pulse) || ts.frame <= prev.frame {
			return unsolvable("tempo %v does not follow %v", ts, prev)
		}
		if abs64(prev.FrameAtPulse(ts.pulse, sr)-ts.frame) > frameTolerance {
			return unsolvable("tempo %v is off the curve of %v", ts, prev)
		}
		if prev.tempoType == Constant && prev.c != 0 {
			return unsolvable("constant tempo %v has c=%g", prev, prev.c)
		}
		if prev.tempoType == Ramp {
			want := ts.PulsesPerMinute()
			got := prev.pulseTempoAtEnd(ts.pulse)
			if math.Abs(got-want) > rampEndTolerance*math.Max(1, want) {
				return unsolvable("ramp %v ends at %g pulses/min, next tempo starts at %g", prev, got, want)
			}
		}
	}
	if last := m.tempos[len(m.tempos)-1]; last.c != 0 {
		return unsolvable("last tempo %v has c=%g", last, last.c)
	}

	for i := 1; i < len(m.meters); i++ {
		prev, ms := m.meters[i-1], m.meters[i]
		if !(ms.pulse > prev.pulse) || ms.bbt.Bars <= prev.bbt.Bars || !(ms.beat > prev.beat) {
			return unsolvable("meter %v does not follow %v", ms, prev)
		}
		if !ms.bbt.IsBar() {
			return errors.WithStackTraceAndPrefix(ErrNotBarAligned, "meter %v", ms)
		}
		if abs64(m.frameAtPulse(ms.pulse)-ms.frame) > frameTolerance {
			return unsolvable("meter %v is off the tempo curve", ms)
		}
	}
	return nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
