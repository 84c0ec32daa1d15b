package tempo

import (
	"cmp"
	"math"

	"golang.org/x/exp/slices"
)

// metrics is one immutable-once-committed state of the map: the ordered sections plus
// per-kind indexes. Edits clone it, mutate the clone and swap it in.
type metrics struct {
	frameRate int64
	sections  []Section

	tempos []*TempoSection // active tempos, in order
	meters []*MeterSection
}

func newMetrics(frameRate int64, t Tempo, m Meter) *metrics {
	ts := newTempoSection(t, Constant, AudioTime)
	ts.movable = false
	ms := newMeterSection(m, AudioTime)
	ms.movable = false

	out := &metrics{
		frameRate: frameRate,
		sections:  []Section{ts, ms},
	}
	out.index()
	return out
}

func (m *metrics) clone() *metrics {
	out := &metrics{
		frameRate: m.frameRate,
		sections:  make([]Section, len(m.sections)),
	}
	for i, s := range m.sections {
		out.sections[i] = s.clone()
	}
	out.index()
	return out
}

func (m *metrics) index() {
	m.tempos = m.tempos[:0]
	m.meters = m.meters[:0]
	for _, s := range m.sections {
		switch section := s.(type) {
		case *TempoSection:
			if section.active {
				m.tempos = append(m.tempos, section)
			}
		case *MeterSection:
			m.meters = append(m.meters, section)
		}
	}
}

// sort orders sections by pulse, then frame, with a tempo ahead of a meter at the same spot.
func (m *metrics) sort() {
	slices.SortStableFunc(m.sections, compareSections)
	m.index()
}

func compareSections(a, b Section) int {
	if c := cmp.Compare(a.Pulse(), b.Pulse()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Frame(), b.Frame()); c != 0 {
		return c
	}
	return cmp.Compare(sectionRank(a), sectionRank(b))
}

func sectionRank(s Section) int {
	if _, ok := s.(*TempoSection); ok {
		return 0
	}
	return 1
}

func (m *metrics) insert(s Section) {
	m.sections = append(m.sections, s)
	m.sort()
}

func (m *metrics) remove(s Section) {
	m.sections = slices.DeleteFunc(m.sections, func(e Section) bool { return e == s })
	m.index()
}

func (m *metrics) indexOf(s Section) int {
	return slices.Index(m.sections, s)
}

func (m *metrics) firstTempo() *TempoSection {
	for _, s := range m.sections {
		if ts, ok := s.(*TempoSection); ok && !ts.movable {
			return ts
		}
	}
	return m.tempos[0]
}

func (m *metrics) firstMeter() *MeterSection {
	return m.meters[0]
}

func (m *metrics) nTempos() int {
	n := 0
	for _, s := range m.sections {
		if _, ok := s.(*TempoSection); ok {
			n++
		}
	}
	return n
}

/* lookups: each returns the latest section at or before the query, or the first one
 * when the query precedes everything.
 */

func (m *metrics) tempoIndexAtFrame(frame int64) int {
	i, found := slices.BinarySearchFunc(m.tempos, frame, func(ts *TempoSection, f int64) int {
		return cmp.Compare(ts.frame, f)
	})
	if found {
		return i
	}
	return max(i-1, 0)
}

func (m *metrics) tempoAtFrame(frame int64) *TempoSection {
	return m.tempos[m.tempoIndexAtFrame(frame)]
}

func (m *metrics) tempoIndexAtPulse(pulse float64) int {
	i, found := slices.BinarySearchFunc(m.tempos, pulse, func(ts *TempoSection, p float64) int {
		return cmp.Compare(ts.pulse, p)
	})
	if found {
		return i
	}
	return max(i-1, 0)
}

func (m *metrics) tempoAtPulse(pulse float64) *TempoSection {
	return m.tempos[m.tempoIndexAtPulse(pulse)]
}

func (m *metrics) meterIndexAtFrame(frame int64) int {
	i, found := slices.BinarySearchFunc(m.meters, frame, func(ms *MeterSection, f int64) int {
		return cmp.Compare(ms.frame, f)
	})
	if found {
		return i
	}
	return max(i-1, 0)
}

func (m *metrics) meterAtFrame(frame int64) *MeterSection {
	return m.meters[m.meterIndexAtFrame(frame)]
}

func (m *metrics) meterAtPulse(pulse float64) *MeterSection {
	i, found := slices.BinarySearchFunc(m.meters, pulse, func(ms *MeterSection, p float64) int {
		return cmp.Compare(ms.pulse, p)
	})
	if found {
		return m.meters[i]
	}
	return m.meters[max(i-1, 0)]
}

func (m *metrics) meterAtBeat(beat float64) *MeterSection {
	i, found := slices.BinarySearchFunc(m.meters, beat, func(ms *MeterSection, b float64) int {
		return cmp.Compare(ms.beat, b)
	})
	if found {
		return m.meters[i]
	}
	return m.meters[max(i-1, 0)]
}

func (m *metrics) meterAtBars(bars int32) *MeterSection {
	i, found := slices.BinarySearchFunc(m.meters, bars, func(ms *MeterSection, b int32) int {
		return cmp.Compare(ms.bbt.Bars, b)
	})
	if found {
		return m.meters[i]
	}
	return m.meters[max(i-1, 0)]
}

/* conversions */

func (m *metrics) pulseAtFrame(frame int64) float64 {
	return m.tempoAtFrame(frame).PulseAtFrame(frame, m.frameRate)
}

func (m *metrics) frameAtPulse(pulse float64) int64 {
	return m.tempoAtPulse(pulse).FrameAtPulse(pulse, m.frameRate)
}

func (m *metrics) beatAtPulse(pulse float64) float64 {
	ms := m.meterAtPulse(pulse)
	return ms.beat + (pulse-ms.pulse)*ms.noteDivisor
}

func (m *metrics) pulseAtBeat(beat float64) float64 {
	ms := m.meterAtBeat(beat)
	return ms.pulse + (beat-ms.beat)/ms.noteDivisor
}

func (m *metrics) beatAtFrame(frame int64) float64 {
	return m.beatAtPulse(m.pulseAtFrame(frame))
}

func (m *metrics) frameAtBeat(beat float64) int64 {
	return m.frameAtPulse(m.pulseAtBeat(beat))
}

func (m *metrics) bbtToBeats(bbt BBT) float64 {
	ms := m.meterAtBars(bbt.Bars)
	return ms.beat +
		float64(bbt.Bars-ms.bbt.Bars)*ms.divisionsPerBar +
		float64(bbt.Beats-1) +
		float64(bbt.Ticks)/TicksPerBeat
}

func (m *metrics) beatsToBBT(beats float64) BBT {
	ms := m.meterAtBeat(beats)
	dpb := ms.divisionsPerBar

	rel := beats - ms.beat
	bars := math.Floor(rel / dpb)
	remain := rel - bars*dpb
	if remain < 0 {
		remain = 0
	}
	whole := math.Floor(remain)
	ticks := math.Round((remain - whole) * TicksPerBeat)
	if ticks >= TicksPerBeat {
		ticks -= TicksPerBeat
		whole++
	}
	if whole >= dpb {
		whole = 0
		bars++
	}

	return BBT{
		Bars:  ms.bbt.Bars + int32(bars),
		Beats: int32(whole) + 1,
		Ticks: int32(ticks),
	}
}

func (m *metrics) bbtAtFrame(frame int64) BBT {
	return m.beatsToBBT(m.beatAtFrame(frame))
}

func (m *metrics) frameAtBBT(bbt BBT) int64 {
	return m.frameAtBeat(m.bbtToBeats(bbt))
}
