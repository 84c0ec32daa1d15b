package config

import (
	"io"
	"io/fs"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/tempomap/logger"
	"github.com/robmorgan/tempomap/tempo"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// GetTempoMapConfig returns the default configuration
func GetTempoMapConfig() TempoMapConfig {
	val, _ := NewTempoMapConfig()
	return val
}

// TempoMapConfig represents options that configure a tempo map and the program around it
type TempoMapConfig struct {
	// Project logger
	Logger *logrus.Logger `yaml:"-"`

	// SampleRate is the frame rate of the timeline in Hz
	SampleRate int64 `yaml:"sample_rate"`

	// Length of the timeline in frames
	Length int64 `yaml:"length"`

	// LogLevel is one of logrus' level names
	LogLevel string `yaml:"log_level"`

	// Preset names an entry of Presets that replaces Tempo and Meter
	Preset string `yaml:"preset"`

	Tempo TempoConfig `yaml:"tempo"`
	Meter MeterConfig `yaml:"meter"`

	// Sections are added to the map in order, after the initial tempo and meter
	Sections []SectionConfig `yaml:"sections"`
}

// TempoConfig describes the initial tempo
type TempoConfig struct {
	BPM      float64 `yaml:"bpm"`
	NoteType float64 `yaml:"note_type"`
}

// MeterConfig describes the initial meter
type MeterConfig struct {
	Divisions float64 `yaml:"divisions"`
	NoteType  float64 `yaml:"note_type"`
}

// Create a new TempoMapConfig object with reasonable defaults for real usage
func NewTempoMapConfig() (TempoMapConfig, error) {
	t, m := tempo.DefaultTempo(), tempo.DefaultMeter()
	return TempoMapConfig{
		Logger:     logger.GetProjectLogger(),
		SampleRate: 48000,
		LogLevel:   logrus.InfoLevel.String(),
		Tempo:      TempoConfig{BPM: t.BeatsPerMinute(), NoteType: t.NoteType()},
		Meter:      MeterConfig{Divisions: m.DivisionsPerBar(), NoteType: m.NoteDivisor()},
	}, nil
}

// ReadConfig decodes the YAML file name from fsys over the defaults.
func ReadConfig(fsys fs.FS, name string) (*TempoMapConfig, error) {
	config, err := NewTempoMapConfig()
	if err != nil {
		return nil, err
	}

	f, err := fsys.Open(name)
	if err != nil {
		return nil, errors.WithStackTraceAndPrefix(err, "could not open %s", name)
	}
	defer f.Close()

	// an empty file keeps the defaults
	if err := yaml.NewDecoder(f).Decode(&config); err != nil && err != io.EOF {
		return nil, errors.WithStackTraceAndPrefix(err, "could not decode %s", name)
	}
	if config.Preset != "" {
		if err := config.ApplyPreset(config.Preset); err != nil {
			return nil, err
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the settings NewTempoMap depends on.
func (c *TempoMapConfig) Validate() error {
	if c.SampleRate <= 0 {
		return errors.WithStackTraceAndPrefix(ErrInvalidConfig, "sample_rate %d", c.SampleRate)
	}
	if c.Length < 0 {
		return errors.WithStackTraceAndPrefix(ErrInvalidConfig, "length %d", c.Length)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.WithStackTraceAndPrefix(ErrInvalidConfig, "log_level %q", c.LogLevel)
	}
	for i, s := range c.Sections {
		if err := s.validate(); err != nil {
			return errors.WithStackTraceAndPrefix(err, "section %d", i)
		}
	}
	return nil
}

// NewTempoMap builds the map the config describes.
func (c *TempoMapConfig) NewTempoMap() (*tempo.TempoMap, error) {
	log := c.Logger
	if log == nil {
		log = logger.GetProjectLogger()
	}

	tm, err := tempo.NewTempoMap(c.SampleRate,
		tempo.WithLogger(log.WithField("component", "tempomap")),
		tempo.WithInitialTempo(tempo.NewTempo(c.Tempo.BPM, c.Tempo.NoteType)),
		tempo.WithInitialMeter(tempo.NewMeter(c.Meter.Divisions, c.Meter.NoteType)),
		tempo.WithLength(c.Length),
	)
	if err != nil {
		return nil, err
	}

	for i, s := range c.Sections {
		if err := s.addTo(tm); err != nil {
			return nil, errors.WithStackTraceAndPrefix(err, "section %d", i)
		}
	}
	log.WithFields(logrus.Fields{
		"sample_rate": c.SampleRate,
		"tempos":      tm.NTempos(),
		"meters":      tm.NMeters(),
	}).Debug("built tempo map from config")
	return tm, nil
}
