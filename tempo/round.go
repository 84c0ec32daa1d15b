package tempo

import "math"

// RoundToBar snaps frame to a bar line.
func (tm *TempoMap) RoundToBar(frame int64, dir RoundMode) int64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()

	m := tm.metrics
	bbt := m.bbtAtFrame(frame)
	lo := m.frameAtBBT(BBT{Bars: bbt.Bars, Beats: 1})
	if lo > frame {
		// ticks rounded up into the next bar
		bbt.Bars--
		lo = m.frameAtBBT(BBT{Bars: bbt.Bars, Beats: 1})
	}
	if lo == frame {
		return frame
	}
	hi := m.frameAtBBT(BBT{Bars: bbt.Bars + 1, Beats: 1})
	return pick(frame, lo, hi, dir)
}

// RoundToBeat snaps frame to a meter beat.
func (tm *TempoMap) RoundToBeat(frame int64, dir RoundMode) int64 {
	return tm.RoundToBeatSubdivision(frame, 1, dir)
}

// RoundToBeatSubdivision snaps frame to the nearest 1/sub of a meter beat. The grid is
// laid out in pulse space, so it follows tempo ramps.
func (tm *TempoMap) RoundToBeatSubdivision(frame int64, sub int, dir RoundMode) int64 {
	if sub < 1 {
		sub = 1
	}
	tm.lock.RLock()
	defer tm.lock.RUnlock()

	m := tm.metrics
	div := float64(sub)
	units := m.beatAtFrame(frame) * div
	base := math.Floor(units)

	lo := m.frameAtBeat(base / div)
	if lo > frame {
		base--
		lo = m.frameAtBeat(base / div)
	}
	if lo == frame {
		return frame
	}
	hi := m.frameAtBeat((base + 1) / div)
	if hi <= frame {
		base++
		lo, hi = hi, m.frameAtBeat((base+1)/div)
		if lo == frame {
			return frame
		}
	}
	return pick(frame, lo, hi, dir)
}

// RoundBBT snaps bbt to a grid of snap divisions per beat. A snap of zero rounds to the
// nearest beat and a negative snap to the nearest bar. Ties round up.
func (tm *TempoMap) RoundBBT(bbt BBT, snap int) BBT {
	tm.lock.RLock()
	defer tm.lock.RUnlock()

	m := tm.metrics
	ms := m.meterAtBars(bbt.Bars)
	dpb := int32(math.Ceil(ms.divisionsPerBar))

	switch {
	case snap > 0:
		step := int32(TicksPerBeat / snap)
		if step < 1 {
			step = 1
		}
		bbt.Ticks = (2*bbt.Ticks + step) / (2 * step) * step
		if bbt.Ticks >= TicksPerBeat {
			bbt.Ticks -= TicksPerBeat
			bbt.Beats++
		}
	case snap == 0:
		if bbt.Ticks >= TicksPerBeat/2 {
			bbt.Beats++
		}
		bbt.Ticks = 0
	default:
		half := float64(dpb) / 2
		if float64(bbt.Beats-1)+float64(bbt.Ticks)/TicksPerBeat >= half {
			bbt.Bars++
		}
		bbt.Beats, bbt.Ticks = 1, 0
		return bbt
	}

	if bbt.Beats > dpb {
		bbt.Beats = 1
		bbt.Bars++
	}
	return bbt
}

// pick chooses lo or hi for a frame strictly between them.
func pick(frame, lo, hi int64, dir RoundMode) int64 {
	switch dir {
	case RoundDown:
		return lo
	case RoundUp:
		return hi
	}
	if frame-lo < hi-frame {
		return lo
	}
	return hi
}
