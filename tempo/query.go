package tempo

import "math"

// BBTTime returns the bar, beat and tick at frame.
func (tm *TempoMap) BBTTime(frame int64) BBT {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.bbtAtFrame(frame)
}

// FrameTime returns the frame at bbt.
func (tm *TempoMap) FrameTime(bbt BBT) int64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.frameAtBBT(bbt)
}

// BeatAtFrame returns the number of meter beats between the origin and frame.
func (tm *TempoMap) BeatAtFrame(frame int64) float64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.beatAtFrame(frame)
}

// FrameAtBeat is the inverse of BeatAtFrame, rounded to the nearest frame.
func (tm *TempoMap) FrameAtBeat(beat float64) int64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.frameAtBeat(beat)
}

func (tm *TempoMap) PulseAtFrame(frame int64) float64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.pulseAtFrame(frame)
}

func (tm *TempoMap) FrameAtPulse(pulse float64) int64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.frameAtPulse(pulse)
}

func (tm *TempoMap) BeatAtPulse(pulse float64) float64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.beatAtPulse(pulse)
}

func (tm *TempoMap) PulseAtBeat(beat float64) float64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.pulseAtBeat(beat)
}

// BBTToBeats returns the meter beats from the origin to bbt.
func (tm *TempoMap) BBTToBeats(bbt BBT) float64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.bbtToBeats(bbt)
}

// BeatsToBBT returns the bbt of a meter beat position, with ticks rounded to the nearest tick.
func (tm *TempoMap) BeatsToBBT(beats float64) BBT {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.beatsToBBT(beats)
}

func (tm *TempoMap) PulseToBBT(pulse float64) BBT {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.beatsToBBT(tm.metrics.beatAtPulse(pulse))
}

// TempoAt returns the tempo in effect at frame, following any ramp.
func (tm *TempoMap) TempoAt(frame int64) Tempo {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.tempoAt(frame)
}

// TempoSectionAt returns the latest active tempo section starting at or before frame.
func (tm *TempoMap) TempoSectionAt(frame int64) *TempoSection {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.tempoAtFrame(frame)
}

// MeterAt returns the meter in effect at frame.
func (tm *TempoMap) MeterAt(frame int64) Meter {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.meterAtFrame(frame).Meter
}

// MeterSectionAt returns the latest meter section starting at or before frame.
func (tm *TempoMap) MeterSectionAt(frame int64) *MeterSection {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.meterAtFrame(frame)
}

// FramesPerBeatAt returns the length of one tempo beat at frame.
func (tm *TempoMap) FramesPerBeatAt(frame int64) float64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.tempoAt(frame).FramesPerBeat(tm.metrics.frameRate)
}

// FrameposPlusBeats returns the frame reached by walking beats tempo beats forward from pos.
// A tempo beat is a 1/noteType note of whichever tempo governs each stretch of the walk.
func (tm *TempoMap) FrameposPlusBeats(pos int64, beats float64) int64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	if beats < 0 {
		return tm.metrics.framewalkBackward(pos, -beats)
	}
	return tm.metrics.framewalkForward(pos, beats)
}

// FrameposMinusBeats returns the frame reached by walking beats tempo beats back from pos.
func (tm *TempoMap) FrameposMinusBeats(pos int64, beats float64) int64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	if beats < 0 {
		return tm.metrics.framewalkForward(pos, -beats)
	}
	return tm.metrics.framewalkBackward(pos, beats)
}

// FrameposPlusBBT walks forward from pos by a bar/beat/tick distance. Bars count as
// whole bars of the meter at pos; the walk itself is in tempo beats.
func (tm *TempoMap) FrameposPlusBBT(pos int64, bbt BBT) int64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	ms := tm.metrics.meterAtFrame(pos)
	beats := float64(bbt.Bars)*ms.divisionsPerBar + float64(bbt.Beats) + float64(bbt.Ticks)/TicksPerBeat
	if beats < 0 {
		return tm.metrics.framewalkBackward(pos, -beats)
	}
	return tm.metrics.framewalkForward(pos, beats)
}

// FramewalkToBeats returns how many tempo beats lie between pos and pos+distance.
func (tm *TempoMap) FramewalkToBeats(pos, distance int64) float64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.framewalkToBeats(pos, distance)
}

// BBTDurationAt returns the number of frames a bar/beat/tick distance spans when measured
// from pos, going forward if dir > 0 and backward otherwise.
func (tm *TempoMap) BBTDurationAt(pos int64, bbt BBT, dir int) int64 {
	tm.lock.RLock()
	defer tm.lock.RUnlock()

	m := tm.metrics
	start := m.beatAtFrame(pos)
	ms := m.meterAtBeat(start)
	delta := float64(bbt.Bars)*ms.divisionsPerBar + float64(bbt.Beats) + float64(bbt.Ticks)/TicksPerBeat
	if dir > 0 {
		return m.frameAtBeat(start+delta) - pos
	}
	return pos - m.frameAtBeat(start-delta)
}

func (m *metrics) tempoAt(frame int64) Tempo {
	ts := m.tempoAtFrame(frame)
	if frame <= ts.frame {
		return ts.Tempo
	}
	return NewTempo(ts.TempoAtFrame(frame, m.frameRate), ts.noteType)
}

func (m *metrics) framewalkForward(pos int64, beats float64) int64 {
	pulse := m.pulseAtFrame(pos)
	i := m.tempoIndexAtPulse(pulse)
	for ; i < len(m.tempos)-1; i++ {
		ts, next := m.tempos[i], m.tempos[i+1]
		span := (next.pulse - pulse) * ts.noteType
		if beats < span {
			break
		}
		beats -= span
		pulse = next.pulse
	}
	ts := m.tempos[i]
	return ts.FrameAtPulse(pulse+beats/ts.noteType, m.frameRate)
}

func (m *metrics) framewalkBackward(pos int64, beats float64) int64 {
	pulse := m.pulseAtFrame(pos)
	i := m.tempoIndexAtPulse(pulse)
	for ; i > 0; i-- {
		ts := m.tempos[i]
		span := (pulse - ts.pulse) * ts.noteType
		if beats <= span {
			break
		}
		beats -= span
		pulse = ts.pulse
	}
	ts := m.tempos[i]
	return ts.FrameAtPulse(pulse-beats/ts.noteType, m.frameRate)
}

func (m *metrics) framewalkToBeats(pos, distance int64) float64 {
	if distance == 0 {
		return 0
	}
	end := pos + distance
	if distance > 0 && end < pos {
		end = math.MaxInt64 - 1
	}
	lo, hi, sign := pos, end, 1.0
	if distance < 0 {
		lo, hi, sign = end, pos, -1.0
	}

	from, to := m.pulseAtFrame(lo), m.pulseAtFrame(hi)
	beats := 0.0
	for i := m.tempoIndexAtPulse(from); i < len(m.tempos); i++ {
		ts := m.tempos[i]
		stop := to
		if i+1 < len(m.tempos) && m.tempos[i+1].pulse < to {
			stop = m.tempos[i+1].pulse
		}
		beats += (stop - from) * ts.noteType
		if stop >= to {
			break
		}
		from = stop
	}
	return sign * beats
}
