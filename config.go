package main

import (
	"flag"
	"io"
	"strings"
	"time"

	"github.com/robmorgan/tempomap/effect"
	"github.com/robmorgan/tempomap/tempo"
)

// CLIConfig represents the command line options of the program
type CLIConfig struct {
	// ConfigFile is a YAML tempo map config; empty means built-in defaults
	ConfigFile string

	// StateFile and MidiFile replace the configured sections with a saved map
	StateFile    string
	StateVersion int
	MidiFile     string

	// Start and End bound the printed grid
	Start time.Duration
	End   time.Duration

	Dump bool

	// Accent is the easing that dims the beats of a bar in the printed grid
	Accent string

	OutState string
	OutMidi  string

	// Click runs the metronome for this long after printing
	Click time.Duration
}

// NewCLIConfig parses args (without the program name).
func NewCLIConfig(args []string, output io.Writer) (*CLIConfig, error) {
	c := &CLIConfig{}

	fs := flag.NewFlagSet("tempomap", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&c.ConfigFile, "c", "", "tempo map config `file` (YAML)")
	fs.StringVar(&c.StateFile, "state", "", "load the map from a saved XML state `file`")
	fs.IntVar(&c.StateVersion, "state_version", tempo.CurrentStateVersion, "version the state file was written at")
	fs.StringVar(&c.MidiFile, "midi", "", "load the map from the conductor track of a MIDI `file`")
	fs.DurationVar(&c.Start, "start", 0, "start of the printed grid")
	fs.DurationVar(&c.End, "end", 8*time.Second, "end of the printed grid")
	fs.BoolVar(&c.Dump, "dump", false, "print every section of the map")
	fs.StringVar(&c.Accent, "accent", "out_cubic", "easing of the beat accents in the grid, one of "+strings.Join(effect.Easings(), ", "))
	fs.StringVar(&c.OutState, "o_state", "", "write the map as XML state to `file`")
	fs.StringVar(&c.OutMidi, "o_midi", "", "write the map as a MIDI conductor track to `file`")
	fs.DurationVar(&c.Click, "click", 0, "run the metronome for this long")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return c, nil
}
