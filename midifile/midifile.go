// Package midifile moves tempo maps in and out of Standard MIDI Files through their
// conductor track: set-tempo and time-signature meta events.
package midifile

import (
	"cmp"
	"errors"
	"io"
	"math"

	commonerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/tempomap/logger"
	"github.com/robmorgan/tempomap/tempo"
	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2/smf"
	"golang.org/x/exp/slices"
)

// DefaultTicksPerQuarter is the resolution Export uses when none is given.
const DefaultTicksPerQuarter = 960

var (
	// ErrUnsupportedTimeFormat is returned for SMPTE-timed files.
	ErrUnsupportedTimeFormat = errors.New("midifile: only metric time formats are supported")
	// ErrUnsupportedMeter is returned for meters a time-signature event cannot carry.
	ErrUnsupportedMeter = errors.New("midifile: meter cannot be written as a time signature")
)

type tempoEvent struct {
	tick int64
	bpm  float64
}

type meterEvent struct {
	tick       int64
	num, denom uint8
}

// Import reads a Standard MIDI File and builds a map at frameRate from its tempo and
// time-signature events. Options are passed on to tempo.NewTempoMap.
func Import(r io.Reader, frameRate int64, opts ...tempo.Option) (*tempo.TempoMap, error) {
	mid, err := smf.ReadFrom(r)
	if err != nil {
		return nil, commonerrors.WithStackTraceAndPrefix(err, "could not read midi")
	}
	return fromSMF(mid, frameRate, opts...)
}

// ReadFile is Import for a file on disk.
func ReadFile(name string, frameRate int64, opts ...tempo.Option) (*tempo.TempoMap, error) {
	mid, err := smf.ReadFile(name)
	if err != nil {
		return nil, commonerrors.WithStackTraceAndPrefix(err, "smf.ReadFile(%q)", name)
	}
	return fromSMF(mid, frameRate, opts...)
}

func fromSMF(mid *smf.SMF, frameRate int64, opts ...tempo.Option) (*tempo.TempoMap, error) {
	ticks, ok := mid.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return nil, commonerrors.WithStackTraceAndPrefix(ErrUnsupportedTimeFormat, "%v", mid.TimeFormat)
	}
	tempos, meters := conductorEvents(mid)

	tm, err := tempo.NewTempoMap(frameRate, opts...)
	if err != nil {
		return nil, err
	}

	log := logger.GetProjectLogger()
	perWhole := 4 * float64(ticks)

	// meters first: tempo positions are pulses and do not depend on them
	bar := int32(1)
	barTick := 0.0
	barLen := perWhole
	for _, ev := range meters {
		bars := (float64(ev.tick) - barTick) / barLen
		whole := math.Round(bars)
		if math.Abs(bars-whole) > 1e-9 {
			log.WithFields(logrus.Fields{"tick": ev.tick, "bars": bars}).Warn("time signature is not on a bar line; moving it to the nearest one")
		}
		if ev.tick > 0 && whole < 1 {
			whole = 1
		}
		bar += int32(whole)
		barTick += whole * barLen

		m := tempo.NewMeter(float64(ev.num), float64(ev.denom))
		if _, err := tm.AddMeter(m, tempo.BBT{Bars: bar, Beats: 1}); err != nil {
			return nil, commonerrors.WithStackTraceAndPrefix(err, "time signature at tick %d", ev.tick)
		}
		barLen = perWhole * float64(ev.num) / float64(ev.denom)
	}

	for _, ev := range tempos {
		pulse := float64(ev.tick) / perWhole
		if _, err := tm.AddTempo(tempo.NewTempo(ev.bpm, 4), pulse, tempo.Constant); err != nil {
			return nil, commonerrors.WithStackTraceAndPrefix(err, "tempo at tick %d", ev.tick)
		}
	}

	log.WithFields(logrus.Fields{"tempos": len(tempos), "meters": len(meters)}).Debug("imported midi conductor track")
	return tm, nil
}

// conductorEvents collects tempo and time-signature events from every track in tick order.
// Of several events at one tick the last one wins.
func conductorEvents(mid *smf.SMF) ([]tempoEvent, []meterEvent) {
	var tempos []tempoEvent
	var meters []meterEvent
	for _, t := range mid.Tracks {
		var tick int64
		for _, ev := range t {
			tick += int64(ev.Delta)
			var bpm float64
			var num, denom, cpt, dsqpq uint8
			switch {
			case ev.Message.GetMetaTempo(&bpm):
				tempos = append(tempos, tempoEvent{tick: tick, bpm: bpm})
			case ev.Message.GetMetaTimeSig(&num, &denom, &cpt, &dsqpq):
				meters = append(meters, meterEvent{tick: tick, num: num, denom: denom})
			}
		}
	}

	slices.SortStableFunc(tempos, func(a, b tempoEvent) int { return cmp.Compare(a.tick, b.tick) })
	slices.SortStableFunc(meters, func(a, b meterEvent) int { return cmp.Compare(a.tick, b.tick) })
	tempos = lastPerTick(tempos, func(e tempoEvent) int64 { return e.tick })
	meters = lastPerTick(meters, func(e meterEvent) int64 { return e.tick })
	return tempos, meters
}

func lastPerTick[E any](events []E, tick func(E) int64) []E {
	out := events[:0]
	for i, ev := range events {
		if i+1 < len(events) && tick(events[i+1]) == tick(ev) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
