package tempo

import (
	"fmt"
	"io"
)

// Dump writes one line per section, in timeline order.
func (tm *TempoMap) Dump(w io.Writer) error {
	tm.lock.RLock()
	defer tm.lock.RUnlock()

	m := tm.metrics
	if _, err := fmt.Fprintf(w, "TempoMap @ %d Hz, length %d\n", m.frameRate, tm.length); err != nil {
		return err
	}
	for _, s := range m.sections {
		var line string
		switch section := s.(type) {
		case *TempoSection:
			line = fmt.Sprintf("%v bbt %s bar-offset %g", section, m.beatsToBBT(m.beatAtPulse(section.pulse)), section.barOffset)
			if next := m.nextActiveTempo(section); next != nil && section.ramped() {
				line += fmt.Sprintf(" -> %g bpm", section.pulseTempoAtEnd(next.pulse)*section.noteType)
			}
		case *MeterSection:
			line = section.String()
		}
		if _, err := fmt.Fprintf(w, "  %s\n", line); err != nil {
			return err
		}
	}
	return nil
}
