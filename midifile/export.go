package midifile

import (
	"cmp"
	"math"
	"math/bits"

	commonerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/tempomap/tempo"
	"gitlab.com/gomidi/midi/v2/smf"
	"golang.org/x/exp/slices"
)

type conductorEvent struct {
	tick int64
	// meters sort ahead of tempos on the same tick
	rank int
	msg  smf.Message
}

// Export writes the map's tempos and meters to a single-track SMF at ticksPerQuarter.
// A ramp becomes one tempo event per quarter note. Meters must have a whole number of
// divisions and a power of two note value.
func Export(tm *tempo.TempoMap, ticksPerQuarter uint16) (*smf.SMF, error) {
	if ticksPerQuarter == 0 {
		ticksPerQuarter = DefaultTicksPerQuarter
	}
	perWhole := 4 * float64(ticksPerQuarter)
	toTick := func(pulse float64) int64 { return int64(math.Round(pulse * perWhole)) }

	var events []conductorEvent
	var tempos []*tempo.TempoSection
	for _, s := range tm.Sections() {
		switch section := s.(type) {
		case *tempo.MeterSection:
			msg, err := timeSignature(section.Meter)
			if err != nil {
				return nil, commonerrors.WithStackTraceAndPrefix(err, "meter at bar %d", section.BBT().Bars)
			}
			events = append(events, conductorEvent{tick: toTick(section.Pulse()), rank: 0, msg: msg})
		case *tempo.TempoSection:
			if section.Active() {
				tempos = append(tempos, section)
			}
		}
	}

	for i, ts := range tempos {
		start := ts.Pulse()
		events = append(events, conductorEvent{tick: toTick(start), rank: 1, msg: smf.MetaTempo(quarterBPM(ts, start))})
		if ts.Type() != tempo.Ramp || ts.C() == 0 || i+1 == len(tempos) {
			continue
		}
		end := tempos[i+1].Pulse()
		for p := start + 0.25; p < end-1e-9; p += 0.25 {
			events = append(events, conductorEvent{tick: toTick(p), rank: 1, msg: smf.MetaTempo(quarterBPM(ts, p))})
		}
	}

	slices.SortStableFunc(events, func(a, b conductorEvent) int {
		if c := cmp.Compare(a.tick, b.tick); c != 0 {
			return c
		}
		return cmp.Compare(a.rank, b.rank)
	})

	var track smf.Track
	var last int64
	for _, ev := range events {
		track.Add(uint32(ev.tick-last), ev.msg)
		last = ev.tick
	}
	track.Close(0)

	mid := smf.NewSMF1()
	mid.TimeFormat = smf.MetricTicks(ticksPerQuarter)
	if err := mid.Add(track); err != nil {
		return nil, commonerrors.WithStackTrace(err)
	}
	return mid, nil
}

// WriteFile exports the map to the file name.
func WriteFile(tm *tempo.TempoMap, ticksPerQuarter uint16, name string) error {
	mid, err := Export(tm, ticksPerQuarter)
	if err != nil {
		return err
	}
	if err := mid.WriteFile(name); err != nil {
		return commonerrors.WithStackTraceAndPrefix(err, "could not write %s", name)
	}
	return nil
}

// quarterBPM is the tempo of ts at pulse in quarter notes per minute.
func quarterBPM(ts *tempo.TempoSection, pulse float64) float64 {
	return ts.TempoAtPulse(pulse) * 4 / ts.NoteType()
}

func timeSignature(m tempo.Meter) (smf.Message, error) {
	num, denom := m.DivisionsPerBar(), m.NoteDivisor()
	if num != math.Trunc(num) || num < 1 || num > math.MaxUint8 {
		return nil, commonerrors.WithStackTraceAndPrefix(ErrUnsupportedMeter, "%s", m)
	}
	d := uint(denom)
	if float64(d) != denom || d == 0 || d > 128 || bits.OnesCount(d) != 1 {
		return nil, commonerrors.WithStackTraceAndPrefix(ErrUnsupportedMeter, "%s", m)
	}
	// a click every beat of the meter, in MIDI clocks (24 per quarter)
	clocks := uint8(96 / d)
	if clocks == 0 {
		clocks = 1
	}
	return smf.MetaTimeSig(uint8(num), uint8(d), clocks, 8), nil
}
