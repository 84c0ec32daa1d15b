package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	commonerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/tempomap/config"
	"github.com/robmorgan/tempomap/effect"
	"github.com/robmorgan/tempomap/logger"
	"github.com/robmorgan/tempomap/midifile"
	"github.com/robmorgan/tempomap/rhythm"
	"github.com/robmorgan/tempomap/tempo"
	"k8s.io/utils/clock"
)

// the dimmest a beat is drawn in the grid
const accentFloor = 0.4

func main() {
	cli, err := NewCLIConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := Run(ctx, cli, os.Stdout); err != nil {
		logger.GetProjectLogger().Errorf("tempomap failed. err='%v'", err)
		os.Exit(1)
	}
}

// Run builds the tempo map the options describe, prints it and writes any requested files.
func Run(ctx context.Context, cli *CLIConfig, out io.Writer) error {
	log := logger.GetProjectLogger()

	cfg, err := loadConfig(cli.ConfigFile)
	if err != nil {
		return err
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return commonerrors.WithStackTrace(err)
	}

	log.Info("Building tempo map...")
	tm, err := buildTempoMap(cfg, cli)
	if err != nil {
		return err
	}

	if cli.Dump {
		if err := tm.Dump(out); err != nil {
			return commonerrors.WithStackTrace(err)
		}
	}

	accent, err := effect.NewEffect(cli.Accent, accentFloor)
	if err != nil {
		return commonerrors.WithStackTraceAndPrefix(err, "accent %q", cli.Accent)
	}
	start := durationToFrame(cli.Start, tm.FrameRate())
	end := durationToFrame(cli.End, tm.FrameRate())
	fmt.Fprintln(out, renderGrid(tm, tm.Grid(start, end), accent))

	if cli.OutState != "" {
		data, err := tm.State()
		if err != nil {
			return err
		}
		if err := os.WriteFile(cli.OutState, data, 0o644); err != nil {
			return commonerrors.WithStackTraceAndPrefix(err, "could not write %s", cli.OutState)
		}
		log.WithField("file", cli.OutState).Info("wrote tempo map state")
	}
	if cli.OutMidi != "" {
		if err := midifile.WriteFile(tm, midifile.DefaultTicksPerQuarter, cli.OutMidi); err != nil {
			return err
		}
		log.WithField("file", cli.OutMidi).Info("wrote midi conductor track")
	}

	if cli.Click > 0 {
		return click(ctx, tm, cli.Click, out)
	}
	return nil
}

func loadConfig(name string) (*config.TempoMapConfig, error) {
	if name == "" {
		cfg := config.GetTempoMapConfig()
		return &cfg, nil
	}
	return config.ReadConfig(os.DirFS(filepath.Dir(name)), filepath.Base(name))
}

func buildTempoMap(cfg *config.TempoMapConfig, cli *CLIConfig) (*tempo.TempoMap, error) {
	switch {
	case cli.MidiFile != "":
		return midifile.ReadFile(cli.MidiFile, cfg.SampleRate,
			tempo.WithLogger(cfg.Logger.WithField("component", "tempomap")),
			tempo.WithLength(cfg.Length))
	case cli.StateFile != "":
		data, err := os.ReadFile(cli.StateFile)
		if err != nil {
			return nil, commonerrors.WithStackTrace(err)
		}
		tm, err := cfg.NewTempoMap()
		if err != nil {
			return nil, err
		}
		if err := tm.SetState(data, cli.StateVersion); err != nil {
			return nil, err
		}
		return tm, nil
	default:
		return cfg.NewTempoMap()
	}
}

// click prints the metronome marker on every beat until d has passed or ctx is done.
func click(ctx context.Context, tm *tempo.TempoMap, d time.Duration, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	metronome := rhythm.NewMetronome(clock.RealClock{}, tm)
	metronome.Start(0)

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		var last int64 = -1
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snapshot := metronome.GetSnapshot(0)
				if beat := snapshot.GetBeat(); beat != last {
					last = beat
					fmt.Fprintln(out, renderClick(snapshot))
				}
			}
		}
	}()

	<-ctx.Done()
	wg.Wait()
	logger.GetProjectLogger().Println("stopping metronome")
	return nil
}

func durationToFrame(d time.Duration, frameRate int64) int64 {
	return int64(d.Seconds() * float64(frameRate))
}
