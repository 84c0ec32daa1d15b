package config

import (
	"errors"
	"strconv"
	"strings"

	commonerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/tempomap/tempo"
)

var (
	// ErrInvalidConfig is returned for settings that cannot describe a tempo map
	ErrInvalidConfig = errors.New("invalid config")
	// ErrUnknownPreset is returned for a preset name missing from Presets
	ErrUnknownPreset = errors.New("unknown preset")
)

// Section kinds
const (
	KindTempo = "tempo"
	KindMeter = "meter"
)

// SectionConfig stores one tempo or meter change. Exactly one of Pulse, Frame or BBT
// places it; meters cannot use Pulse.
type SectionConfig struct {
	Kind string `yaml:"kind"`

	// tempo
	BPM  float64 `yaml:"bpm"`
	Type string  `yaml:"type"`

	// meter
	Divisions float64 `yaml:"divisions"`

	// NoteType is the tempo's note value or the meter's note divisor
	NoteType float64 `yaml:"note_type"`

	Pulse *float64 `yaml:"pulse"`
	Frame *int64   `yaml:"frame"`
	BBT   string   `yaml:"bbt"`
}

func (s SectionConfig) positions() int {
	n := 0
	if s.Pulse != nil {
		n++
	}
	if s.Frame != nil {
		n++
	}
	if s.BBT != "" {
		n++
	}
	return n
}

func (s SectionConfig) validate() error {
	if s.positions() != 1 {
		return commonerrors.WithStackTraceAndPrefix(ErrInvalidConfig, "%s needs exactly one of pulse, frame or bbt", s.Kind)
	}
	if s.BBT != "" {
		if _, err := ParseBBT(s.BBT); err != nil {
			return err
		}
	}

	switch s.Kind {
	case KindTempo:
		if _, err := s.tempoType(); err != nil {
			return err
		}
		if s.BPM <= 0 || s.NoteType <= 0 {
			return commonerrors.WithStackTraceAndPrefix(ErrInvalidConfig, "tempo %g/%g", s.BPM, s.NoteType)
		}
	case KindMeter:
		if s.Pulse != nil {
			return commonerrors.WithStackTraceAndPrefix(ErrInvalidConfig, "meters are placed by bbt or frame")
		}
		if s.Divisions <= 0 || s.NoteType <= 0 {
			return commonerrors.WithStackTraceAndPrefix(ErrInvalidConfig, "meter %g/%g", s.Divisions, s.NoteType)
		}
	default:
		return commonerrors.WithStackTraceAndPrefix(ErrInvalidConfig, "kind %q", s.Kind)
	}
	return nil
}

func (s SectionConfig) tempoType() (tempo.TempoType, error) {
	switch strings.ToLower(s.Type) {
	case "", "constant":
		return tempo.Constant, nil
	case "ramp", "ramped":
		return tempo.Ramp, nil
	}
	return tempo.Constant, commonerrors.WithStackTraceAndPrefix(ErrInvalidConfig, "tempo type %q", s.Type)
}

func (s SectionConfig) addTo(tm *tempo.TempoMap) error {
	if err := s.validate(); err != nil {
		return err
	}

	if s.Kind == KindMeter {
		m := tempo.NewMeter(s.Divisions, s.NoteType)
		var err error
		if s.Frame != nil {
			_, err = tm.AddMeterAtFrame(m, *s.Frame)
		} else {
			bbt, _ := ParseBBT(s.BBT)
			_, err = tm.AddMeter(m, bbt)
		}
		return err
	}

	t := tempo.NewTempo(s.BPM, s.NoteType)
	typ, _ := s.tempoType()
	var err error
	switch {
	case s.Frame != nil:
		_, err = tm.AddTempoAtFrame(t, *s.Frame, typ)
	case s.Pulse != nil:
		_, err = tm.AddTempo(t, *s.Pulse, typ)
	default:
		bbt, _ := ParseBBT(s.BBT)
		_, err = tm.AddTempo(t, tm.PulseAtBeat(tm.BBTToBeats(bbt)), typ)
	}
	return err
}

// ParseBBT reads "bars|beats|ticks", with ticks optional.
func ParseBBT(v string) (tempo.BBT, error) {
	parts := strings.Split(v, "|")
	if len(parts) < 2 || len(parts) > 3 {
		return tempo.BBT{}, commonerrors.WithStackTraceAndPrefix(ErrInvalidConfig, "bbt %q", v)
	}
	var vals [3]int32
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil || n < 0 {
			return tempo.BBT{}, commonerrors.WithStackTraceAndPrefix(ErrInvalidConfig, "bbt %q", v)
		}
		vals[i] = int32(n)
	}
	if vals[0] < 1 || vals[1] < 1 {
		return tempo.BBT{}, commonerrors.WithStackTraceAndPrefix(ErrInvalidConfig, "bbt %q", v)
	}
	return tempo.BBT{Bars: vals[0], Beats: vals[1], Ticks: vals[2]}, nil
}
