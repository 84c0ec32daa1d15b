package tempo

import (
	"math"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/sirupsen/logrus"
)

// InsertTime shifts every movable section at or after where later by amount frames.
// Sections keep their lock style, except a music-locked meter that the shift takes off a bar
// line of the meter before it: that one stays at its shifted frame, audio-locked, and starts
// a new bar there.
func (tm *TempoMap) InsertTime(where, amount int64) error {
	if err := checkFrame(where); err != nil {
		return err
	}
	if amount < 0 {
		return errors.WithStackTraceAndPrefix(ErrInvalidValue, "insert %d frames", amount)
	}
	if amount == 0 {
		return nil
	}

	fields := logrus.Fields{"frame": where, "amount": amount}
	return tm.editTimeline("insert time", fields, true, func(cur, next *metrics, length *int64) error {
		locks := make(map[Section]PositionLockStyle)
		for _, s := range next.sections {
			ms := s.metric()
			if !ms.movable || ms.frame < where {
				continue
			}
			if ms.frame > math.MaxInt64-1-amount {
				return errors.WithStackTraceAndPrefix(ErrOverflow, "section at frame %d plus %d", ms.frame, amount)
			}
			locks[s] = ms.lockStyle
			ms.lockStyle = AudioTime
			ms.frame += amount
		}
		if *length >= where && *length <= math.MaxInt64-amount {
			*length += amount
		}
		return shiftAndRestore(next, locks)
	})
}

// RemoveTime cuts amount frames out of the timeline starting at where. Sections after the
// cut move earlier by amount. Sections inside the cut are deleted, except that the last
// tempo and the last meter inside it move to where, so the music right after the cut keeps
// its tempo and meter, unless a section of the same kind already starts right at the end of
// the cut. It reports whether any section moved.
func (tm *TempoMap) RemoveTime(where, amount int64) (bool, error) {
	if err := checkFrame(where); err != nil {
		return false, err
	}
	if amount < 0 {
		return false, errors.WithStackTraceAndPrefix(ErrInvalidValue, "remove %d frames", amount)
	}
	if amount == 0 {
		return false, nil
	}
	end := where + amount
	if end < where {
		end = math.MaxInt64
	}

	moved := false
	fields := logrus.Fields{"frame": where, "amount": amount}
	err := tm.editTimeline("remove time", fields, true, func(cur, next *metrics, length *int64) error {
		moved = false
		locks := make(map[Section]PositionLockStyle)

		var lastTempo *TempoSection
		var lastMeter *MeterSection
		var tempoAtEnd, meterAtEnd bool
		var doomed []Section
		for _, s := range next.sections {
			ms := s.metric()
			if !ms.movable || ms.frame < where {
				continue
			}
			if ms.frame >= end {
				if ms.frame == end {
					switch s.(type) {
					case *TempoSection:
						tempoAtEnd = true
					case *MeterSection:
						meterAtEnd = true
					}
				}
				locks[s] = ms.lockStyle
				ms.lockStyle = AudioTime
				ms.frame -= amount
				moved = true
				continue
			}
			doomed = append(doomed, s)
			switch section := s.(type) {
			case *TempoSection:
				if section.active {
					lastTempo = section
				}
			case *MeterSection:
				lastMeter = section
			}
		}

		for _, s := range doomed {
			if s == Section(lastTempo) && !tempoAtEnd || s == Section(lastMeter) && !meterAtEnd {
				ms := s.metric()
				locks[s] = ms.lockStyle
				ms.lockStyle = AudioTime
				ms.frame = where
				ms.pulse = cur.pulseAtFrame(where)
				moved = true
				continue
			}
			next.remove(s)
		}
		if *length > where {
			*length -= min(amount, *length-where)
		}
		return shiftAndRestore(next, locks)
	})
	if err != nil {
		return false, err
	}
	return moved, nil
}

// shiftAndRestore solves m with the shifted sections audio-locked, then hands each one its
// own lock style back at the position it reached. A music-locked meter goes back to its bar
// only if its shifted frame is still on a bar line of the meter before it.
func shiftAndRestore(m *metrics, locks map[Section]PositionLockStyle) error {
	if err := m.solve(); err != nil {
		return err
	}

	var prev *MeterSection
	for _, ms := range m.meters {
		lock, shifted := locks[ms]
		if shifted && lock == MusicTime && prev != nil {
			beats := (ms.pulse - prev.pulse) * prev.noteDivisor
			bar := prev.bbt.Bars + int32(math.Max(1, math.Round(beats/prev.divisionsPerBar)))
			if abs64(m.frameAtPulse(prev.pulseAtBar(bar))-ms.frame) <= frameTolerance {
				ms.bbt = BBT{Bars: bar, Beats: 1}
			} else {
				delete(locks, ms)
			}
		}
		prev = ms
	}
	for s, lock := range locks {
		s.metric().lockStyle = lock
	}
	return nil
}

// SetLength sets the timeline length in frames.
func (tm *TempoMap) SetLength(frames int64) error {
	if frames < 0 {
		return errors.WithStackTraceAndPrefix(ErrInvalidValue, "length %d", frames)
	}
	tm.lock.Lock()
	tm.length = frames
	tm.lock.Unlock()

	tm.log.WithField("frames", frames).Debug("set length")
	tm.MetricPositionChanged.Emit()
	return nil
}

// Clear drops every section and starts again from DefaultTempo and DefaultMeter.
func (tm *TempoMap) Clear() {
	tm.lock.Lock()
	m := newMetrics(tm.metrics.frameRate, DefaultTempo(), DefaultMeter())
	// a fresh two-section map always solves
	_ = m.solve()
	tm.metrics = m
	tm.lock.Unlock()

	tm.log.Debug("clear")
	tm.MetricPositionChanged.Emit()
}
