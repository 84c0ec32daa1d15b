package tempo

import "math"

// BBTPoint is one beat of the grid.
type BBTPoint struct {
	Frame int64
	// Meter is the section governing the beat.
	Meter *MeterSection
	// Tempo is the tempo in effect at the beat, following any ramp.
	Tempo Tempo
	// C is the ramp coefficient of the governing tempo section.
	C    float64
	Bar  int32
	Beat int32
}

// IsBar reports whether the point is the first beat of a bar.
func (p BBTPoint) IsBar() bool { return p.Beat == 1 }

func (p BBTPoint) BBT() BBT { return BBT{Bars: p.Bar, Beats: p.Beat} }

// Grid returns one point per meter beat falling in [start, end].
func (tm *TempoMap) Grid(start, end int64) []BBTPoint {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.grid(start, end)
}

func (m *metrics) grid(start, end int64) []BBTPoint {
	if end < start {
		return nil
	}
	var points []BBTPoint

	startBeat := m.beatAtFrame(start)
	for i, ms := range m.meters {
		limit := math.Inf(1)
		if i+1 < len(m.meters) {
			limit = m.meters[i+1].beat
			if limit <= startBeat {
				continue
			}
		}

		k := math.Max(0, math.Ceil(startBeat-ms.beat))
		for ; ms.beat+k < limit; k++ {
			beat := ms.beat + k
			frame := m.frameAtBeat(beat)
			if frame > end || frame == math.MaxInt64 {
				return points
			}
			if frame < start {
				continue
			}

			bars := math.Floor(k / ms.divisionsPerBar)
			points = append(points, BBTPoint{
				Frame: frame,
				Meter: ms,
				Tempo: m.tempoAt(frame),
				C:     m.tempoAtFrame(frame).c,
				Bar:   ms.bbt.Bars + int32(bars),
				Beat:  int32(math.Floor(k-bars*ms.divisionsPerBar)) + 1,
			})
		}
	}
	return points
}
