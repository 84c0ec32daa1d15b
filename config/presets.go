package config

import (
	"github.com/gruntwork-io/go-commons/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Preset is a named starting tempo and meter.
type Preset struct {
	Name  string
	Tempo TempoConfig
	Meter MeterConfig
}

// Presets holds the presets a config can name.
var Presets = initializePresets()

func initializePresets() map[string]Preset {
	out := map[string]Preset{
		"common": {
			Name:  "Common time",
			Tempo: TempoConfig{BPM: 120, NoteType: 4},
			Meter: MeterConfig{Divisions: 4, NoteType: 4},
		},
		"cut": {
			Name: "Cut time",
			// counted in half notes
			Tempo: TempoConfig{BPM: 60, NoteType: 2},
			Meter: MeterConfig{Divisions: 2, NoteType: 2},
		},
		"waltz": {
			Name:  "Waltz",
			Tempo: TempoConfig{BPM: 180, NoteType: 4},
			Meter: MeterConfig{Divisions: 3, NoteType: 4},
		},
		"jig": {
			Name: "Jig",
			// six eighths a bar, counted in eighths
			Tempo: TempoConfig{BPM: 108, NoteType: 8},
			Meter: MeterConfig{Divisions: 6, NoteType: 8},
		},
		"seven-eight": {
			Name:  "Seven eight",
			Tempo: TempoConfig{BPM: 210, NoteType: 8},
			Meter: MeterConfig{Divisions: 7, NoteType: 8},
		},
	}

	return out
}

// PresetNames returns the preset names in alphabetical order.
func PresetNames() []string {
	names := maps.Keys(Presets)
	slices.Sort(names)
	return names
}

// ApplyPreset replaces the initial tempo and meter with the named preset's.
func (c *TempoMapConfig) ApplyPreset(name string) error {
	p, ok := Presets[name]
	if !ok {
		return errors.WithStackTraceAndPrefix(ErrUnknownPreset, "%q", name)
	}
	c.Preset = name
	c.Tempo = p.Tempo
	c.Meter = p.Meter
	return nil
}
