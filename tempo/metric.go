package tempo

// TempoMetric is the tempo and meter in effect at some point, anchored at the most recent
// section change before it.
type TempoMetric struct {
	Tempo Tempo
	Meter Meter

	// position of the latest section at or before the query
	Frame int64
	Pulse float64
}

// MetricAt returns the metric in effect at frame.
func (tm *TempoMap) MetricAt(frame int64) TempoMetric {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.metricAtPulse(tm.metrics.pulseAtFrame(frame))
}

// MetricAtBBT returns the metric in effect at bbt.
func (tm *TempoMap) MetricAtBBT(bbt BBT) TempoMetric {
	tm.lock.RLock()
	defer tm.lock.RUnlock()
	return tm.metrics.metricAtPulse(tm.metrics.pulseAtBeat(tm.metrics.bbtToBeats(bbt)))
}

func (m *metrics) metricAtPulse(pulse float64) TempoMetric {
	ts := m.tempoAtPulse(pulse)
	ms := m.meterAtPulse(pulse)

	metric := TempoMetric{
		Tempo: ts.Tempo,
		Meter: ms.Meter,
		Frame: ts.frame,
		Pulse: ts.pulse,
	}
	if ms.pulse > ts.pulse {
		metric.Frame, metric.Pulse = ms.frame, ms.pulse
	}
	return metric
}
