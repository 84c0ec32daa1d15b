package midifile

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/tempomap/tempo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"
)

const sampleRate = 48000

func newMap(t *testing.T) *tempo.TempoMap {
	t.Helper()

	tm, err := tempo.NewTempoMap(sampleRate)
	require.NoError(t, err)
	return tm
}

func exportedTempos(t *testing.T, mid *smf.SMF) []float64 {
	t.Helper()

	var out []float64
	for _, track := range mid.Tracks {
		for _, ev := range track {
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				out = append(out, bpm)
			}
		}
	}
	return out
}

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()

	tm := newMap(t)
	_, err := tm.AddTempo(tempo.NewTempo(90, 4), 1, tempo.Constant)
	require.NoError(t, err)
	_, err = tm.AddMeter(tempo.NewMeter(3, 4), tempo.BBT{Bars: 3, Beats: 1})
	require.NoError(t, err)

	mid, err := Export(tm, 480)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = mid.WriteTo(&buf)
	require.NoError(t, err)

	imported, err := Import(&buf, sampleRate)
	require.NoError(t, err)

	assert.Equal(t, 2, imported.NTempos())
	assert.Equal(t, 2, imported.NMeters())

	// microsecond rounding in the set-tempo event
	assert.InDelta(t, 120.0, imported.FirstTempo().BeatsPerMinute(), 1e-3)
	last := imported.TempoSectionAt(1 << 40)
	assert.InDelta(t, 90.0, last.BeatsPerMinute(), 1e-3)
	assert.InDelta(t, 1.0, last.Pulse(), 1e-9)

	meter := imported.MeterSectionAt(1 << 40)
	assert.Equal(t, tempo.BBT{Bars: 3, Beats: 1}, meter.BBT())
	assert.Equal(t, 3.0, meter.DivisionsPerBar())
	assert.Equal(t, 4.0, meter.NoteDivisor())
	assert.InDelta(t, float64(tm.FrameTime(tempo.BBT{Bars: 5, Beats: 1})), float64(imported.FrameTime(tempo.BBT{Bars: 5, Beats: 1})), 2)
}

func TestExportRampIsSampledPerQuarter(t *testing.T) {
	t.Parallel()

	tm := newMap(t)
	_, err := tm.AddTempo(tempo.NewTempo(60, 4), 1, tempo.Ramp)
	require.NoError(t, err)
	_, err = tm.AddTempo(tempo.NewTempo(120, 4), 5, tempo.Constant)
	require.NoError(t, err)

	mid, err := Export(tm, 0)
	require.NoError(t, err)
	assert.Equal(t, smf.MetricTicks(DefaultTicksPerQuarter), mid.TimeFormat)

	bpms := exportedTempos(t, mid)
	// the initial tempo, sixteen quarters of ramp and the closing tempo
	require.Len(t, bpms, 18)
	assert.InDelta(t, 120.0, bpms[0], 1e-3)
	assert.InDelta(t, 60.0, bpms[1], 1e-3)
	assert.InDelta(t, 120.0, bpms[17], 1e-3)
	for i := 2; i < 17; i++ {
		assert.Greater(t, bpms[i], bpms[i-1])
		assert.Less(t, bpms[i], 120.0)
	}
}

func TestExportConvertsNoteType(t *testing.T) {
	t.Parallel()

	tm := newMap(t)
	err := tm.ReplaceTempo(tm.FirstTempo(), tempo.NewTempo(120, 8), 0, tempo.Constant)
	require.NoError(t, err)

	mid, err := Export(tm, 96)
	require.NoError(t, err)
	bpms := exportedTempos(t, mid)
	require.Len(t, bpms, 1)
	assert.InDelta(t, 60.0, bpms[0], 1e-3)
}

func TestExportRejectsUnsupportedMeters(t *testing.T) {
	t.Parallel()

	for _, m := range []tempo.Meter{tempo.NewMeter(7.5, 8), tempo.NewMeter(3, 6)} {
		tm := newMap(t)
		_, err := tm.AddMeter(m, tempo.BBT{Bars: 2, Beats: 1})
		require.NoError(t, err)

		_, err = Export(tm, 480)
		assert.True(t, errors.IsError(err, ErrUnsupportedMeter), "meter %s", m)
	}
}

func TestImportRejectsTimeCode(t *testing.T) {
	t.Parallel()

	mid := smf.NewSMF1()
	mid.TimeFormat = smf.TimeCode{FramesPerSecond: 25, SubFrames: 40}

	_, err := fromSMF(mid, sampleRate)
	assert.True(t, errors.IsError(err, ErrUnsupportedTimeFormat))
}

func TestImportLastEventPerTickWins(t *testing.T) {
	t.Parallel()

	var track smf.Track
	track.Add(0, smf.MetaTempo(100))
	track.Add(0, smf.MetaTempo(140))
	track.Add(0, smf.MetaTimeSig(6, 8, 12, 8))
	// one 6/8 bar later, off by a few ticks
	track.Add(3*480+5, smf.MetaTimeSig(2, 4, 24, 8))
	track.Close(0)

	mid := smf.NewSMF1()
	mid.TimeFormat = smf.MetricTicks(480)
	require.NoError(t, mid.Add(track))

	tm, err := fromSMF(mid, sampleRate)
	require.NoError(t, err)

	assert.Equal(t, 1, tm.NTempos())
	assert.InDelta(t, 140.0, tm.FirstTempo().BeatsPerMinute(), 1e-3)
	assert.Equal(t, 6.0, tm.FirstMeter().DivisionsPerBar())
	require.Equal(t, 2, tm.NMeters())
	assert.Equal(t, tempo.BBT{Bars: 2, Beats: 1}, tm.MeterSectionAt(1<<40).BBT())
}

func TestWriteFileReadFile(t *testing.T) {
	t.Parallel()

	tm := newMap(t)
	_, err := tm.AddMeter(tempo.NewMeter(5, 4), tempo.BBT{Bars: 2, Beats: 1})
	require.NoError(t, err)

	name := filepath.Join(t.TempDir(), "conductor.mid")
	require.NoError(t, WriteFile(tm, 480, name))

	read, err := ReadFile(name, sampleRate)
	require.NoError(t, err)
	assert.Equal(t, 2, read.NMeters())
	assert.Equal(t, 5.0, read.MeterSectionAt(1<<40).DivisionsPerBar())

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.mid"), sampleRate)
	assert.Error(t, err)
}
