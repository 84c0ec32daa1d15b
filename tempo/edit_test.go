package tempo

import (
	"testing"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustState(t *testing.T, tm *TempoMap) string {
	t.Helper()
	data, err := tm.State()
	require.NoError(t, err)
	return string(data)
}

func TestAddThenRemoveRestoresState(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	require.NoError(t, tm.ReplaceTempo(tm.FirstTempo(), NewTempo(120, 4), 0, Ramp))
	_, err := tm.AddTempo(NewTempo(140, 4), 8, Constant)
	require.NoError(t, err)
	_, err = tm.AddMeter(NewMeter(3, 4), BBT{Bars: 3, Beats: 1})
	require.NoError(t, err)
	original := mustState(t, tm)

	ts, err := tm.AddTempo(NewTempo(100, 4), 4, Ramp)
	require.NoError(t, err)
	assert.NotEqual(t, original, mustState(t, tm))
	require.NoError(t, tm.RemoveTempo(ts, true))
	assert.Equal(t, original, mustState(t, tm))

	ts, err = tm.AddTempoAtFrame(NewTempo(80, 8), 100000, Constant)
	require.NoError(t, err)
	require.NoError(t, tm.RemoveTempo(ts, true))
	assert.Equal(t, original, mustState(t, tm))

	ms, err := tm.AddMeter(NewMeter(5, 8), BBT{Bars: 7, Beats: 1})
	require.NoError(t, err)
	require.NoError(t, tm.RemoveMeter(ms, true))
	assert.Equal(t, original, mustState(t, tm))

	ms, err = tm.AddMeterAtFrame(NewMeter(2, 4), 700000)
	require.NoError(t, err)
	require.NoError(t, tm.RemoveMeter(ms, true))
	assert.Equal(t, original, mustState(t, tm))
}

func TestAddAtExistingPositionReplaces(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	_, err := tm.AddTempo(NewTempo(100, 4), 4, Constant)
	require.NoError(t, err)
	ts, err := tm.AddTempo(NewTempo(90, 4), 4, Ramp)
	require.NoError(t, err)
	assert.Equal(t, 2, tm.NTempos())
	assert.Equal(t, NewTempo(90, 4), ts.Tempo)
	assert.Equal(t, Ramp, ts.Type())

	first, err := tm.AddTempo(NewTempo(60, 4), 0, Constant)
	require.NoError(t, err)
	assert.False(t, first.Movable())
	assert.Equal(t, NewTempo(60, 4), tm.FirstTempo().Tempo)
	assert.Equal(t, 2, tm.NTempos())

	_, err = tm.AddMeter(NewMeter(7, 8), BBT{Bars: 1, Beats: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, tm.NMeters())
	assert.Equal(t, NewMeter(7, 8), tm.FirstMeter().Meter)
}

func TestAddMeterAtFrameSnapsToBar(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	ms, err := tm.AddMeterAtFrame(NewMeter(3, 4), 200000)
	require.NoError(t, err)

	assert.Equal(t, int64(192000), ms.Frame())
	assert.Equal(t, BBT{Bars: 3, Beats: 1}, ms.BBT())
	assert.Equal(t, AudioTime, ms.PositionLockStyle())
	assert.Equal(t, BBT{Bars: 4, Beats: 1}, tm.BBTTime(192000+72000))
}

func TestEditPreconditions(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)

	_, err := tm.AddMeter(NewMeter(3, 4), BBT{Bars: 3, Beats: 2})
	assert.True(t, errors.IsError(err, ErrNotBarAligned))

	_, err = tm.AddMeter(NewMeter(3, 4), BBT{Bars: 0, Beats: 1})
	assert.True(t, errors.IsError(err, ErrNegativePosition))

	_, err = tm.AddTempoAtFrame(NewTempo(100, 4), -1, Constant)
	assert.True(t, errors.IsError(err, ErrNegativePosition))

	_, err = tm.AddTempo(NewTempo(0, 4), 1, Constant)
	assert.True(t, errors.IsError(err, ErrInvalidValue))

	err = tm.RemoveTempo(tm.FirstTempo(), true)
	assert.True(t, errors.IsError(err, ErrFirstSection))

	err = tm.RemoveMeter(tm.FirstMeter(), true)
	assert.True(t, errors.IsError(err, ErrFirstSection))

	stale, err := tm.AddTempo(NewTempo(100, 4), 2, Constant)
	require.NoError(t, err)
	_, err = tm.AddTempo(NewTempo(110, 4), 3, Constant)
	require.NoError(t, err)
	err = tm.RemoveTempo(stale, true)
	assert.True(t, errors.IsError(err, ErrUnknownSection))

	err = tm.RemoveTempo(nil, true)
	assert.True(t, errors.IsError(err, ErrUnknownSection))

	assert.Equal(t, 3, tm.NTempos())
}

func TestReplaceSections(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	ts, err := tm.AddTempo(NewTempo(100, 4), 4, Constant)
	require.NoError(t, err)

	require.NoError(t, tm.ReplaceTempoAtFrame(ts, NewTempo(90, 4), 96000, Constant))
	ts = tm.TempoSectionAt(96000)
	assert.Equal(t, int64(96000), ts.Frame())
	assert.Equal(t, AudioTime, ts.PositionLockStyle())
	assert.Equal(t, NewTempo(90, 4), ts.Tempo)

	require.NoError(t, tm.ReplaceTempo(ts, NewTempo(150, 4), 2, Constant))
	ts = tm.TempoSectionAt(192000)
	assert.Equal(t, 2.0, ts.Pulse())
	assert.Equal(t, MusicTime, ts.PositionLockStyle())

	ms, err := tm.AddMeter(NewMeter(3, 4), BBT{Bars: 5, Beats: 1})
	require.NoError(t, err)
	require.NoError(t, tm.ReplaceMeter(ms, NewMeter(5, 4), BBT{Bars: 4, Beats: 1}))
	ms = tm.MeterSectionAt(1 << 40)
	assert.Equal(t, BBT{Bars: 4, Beats: 1}, ms.BBT())
	assert.Equal(t, NewMeter(5, 4), ms.Meter)

	// bar 4 starts one 150 bpm pulse after the tempo change at 192000
	require.NoError(t, tm.ReplaceMeterAtFrame(ms, NewMeter(6, 8), 250000))
	ms = tm.MeterSectionAt(1 << 40)
	assert.Equal(t, AudioTime, ms.PositionLockStyle())
	assert.Equal(t, NewMeter(6, 8), ms.Meter)
	assert.Equal(t, BBT{Bars: 4, Beats: 1}, ms.BBT())
	assert.Equal(t, int64(268800), ms.Frame())

	// snapping to the origin would stack it on the initial meter
	err = tm.ReplaceMeterAtFrame(ms, NewMeter(6, 8), 1000)
	assert.True(t, errors.IsError(err, ErrUnsolvable))
}

func TestGuiMoveTempo(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	audio, err := tm.AddTempoAtFrame(NewTempo(100, 4), 96000, Constant)
	require.NoError(t, err)

	require.NoError(t, tm.GuiMoveTempoBeat(audio, NewTempo(110, 4), 8))
	moved := tm.TempoSectionAt(192000)
	assert.Equal(t, int64(192000), moved.Frame())
	assert.Equal(t, AudioTime, moved.PositionLockStyle())
	assert.Equal(t, NewTempo(110, 4), moved.Tempo)

	music, err := tm.AddTempo(NewTempo(90, 4), 6, Constant)
	require.NoError(t, err)
	require.NoError(t, tm.GuiMoveTempoFrame(music, music.Tempo, 600000))
	music = tm.TempoSectionAt(1 << 40)
	assert.LessOrEqual(t, abs64(music.Frame()-600000), int64(1))
	assert.Equal(t, MusicTime, music.PositionLockStyle())

	err = tm.GuiMoveTempoFrame(tm.FirstTempo(), DefaultTempo(), 1000)
	assert.True(t, errors.IsError(err, ErrFirstSection))
}

func TestGuiMoveMeter(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	ms, err := tm.AddMeter(NewMeter(3, 4), BBT{Bars: 5, Beats: 1})
	require.NoError(t, err)

	require.NoError(t, tm.GuiMoveMeter(ms, NewMeter(3, 4), 290000))
	ms = tm.MeterSectionAt(290000)
	assert.Equal(t, BBT{Bars: 4, Beats: 1}, ms.BBT())
	assert.Equal(t, int64(288000), ms.Frame())

	require.NoError(t, tm.GuiMoveMeterBBT(ms, NewMeter(2, 4), BBT{Bars: 7, Beats: 1}))
	ms = tm.MeterSectionAt(1 << 40)
	assert.Equal(t, int64(576000), ms.Frame())
	assert.Equal(t, NewMeter(2, 4), ms.Meter)

	err = tm.GuiMoveMeter(ms, NewMeter(2, 4), 10)
	assert.True(t, errors.IsError(err, ErrUnsolvable))
	err = tm.GuiMoveMeterBBT(tm.FirstMeter(), NewMeter(2, 4), BBT{Bars: 2, Beats: 1})
	assert.True(t, errors.IsError(err, ErrFirstSection))
}

func TestGuiChangeTempo(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	require.NoError(t, tm.GuiChangeTempo(tm.FirstTempo(), NewTempo(60, 4)))
	assert.Equal(t, int64(48000), tm.FrameAtBeat(1))

	ts, err := tm.AddTempoAtFrame(NewTempo(100, 4), 480000, Constant)
	require.NoError(t, err)
	require.NoError(t, tm.ChangeExistingTempoAt(500000, 80, 4))
	assert.Equal(t, NewTempo(80, 4), tm.TempoAt(500000))
	assert.Equal(t, NewTempo(60, 4), tm.TempoAt(0))
	assert.Equal(t, ts.Frame(), tm.TempoSectionAt(500000).Frame())

	require.NoError(t, tm.ChangeInitialTempo(120, 8))
	assert.Equal(t, NewTempo(120, 8), tm.FirstTempo().Tempo)
}

func TestChangeInitialTempoReordersLockStyles(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	_, err := tm.AddTempo(NewTempo(100, 4), 2, Constant)
	require.NoError(t, err)
	_, err = tm.AddTempoAtFrame(NewTempo(90, 4), 240000, Constant)
	require.NoError(t, err)
	require.Equal(t, int64(192000), tm.TempoSectionAt(200000).Frame())

	// at 60 bpm the audio-locked tempo now comes first
	require.NoError(t, tm.ChangeInitialTempo(60, 4))

	audio := tm.TempoSectionAt(240000)
	assert.Equal(t, AudioTime, audio.PositionLockStyle())
	assert.Equal(t, NewTempo(90, 4), audio.Tempo)
	assert.InDelta(t, 1.25, audio.Pulse(), 1e-9)

	music := tm.TempoSectionAt(1 << 40)
	assert.Equal(t, MusicTime, music.PositionLockStyle())
	assert.Equal(t, NewTempo(100, 4), music.Tempo)
	assert.Equal(t, 2.0, music.Pulse())
	assert.LessOrEqual(t, abs64(music.Frame()-336000), int64(1))

	// and back again
	require.NoError(t, tm.ChangeInitialTempo(120, 4))
	assert.Equal(t, int64(192000), tm.TempoSectionAt(200000).Frame())
	assert.Equal(t, NewTempo(90, 4), tm.TempoAt(1<<40))
}

func TestChangeInitialTempoReordersMeters(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	_, err := tm.AddMeter(NewMeter(3, 4), BBT{Bars: 9, Beats: 1})
	require.NoError(t, err)
	_, err = tm.AddMeterAtFrame(NewMeter(2, 4), 912000)
	require.NoError(t, err)
	require.Equal(t, BBT{Bars: 11, Beats: 1}, tm.MeterSectionAt(1<<40).BBT())

	require.NoError(t, tm.ChangeInitialTempo(60, 4))

	audio := tm.MeterSectionAt(1000000)
	assert.Equal(t, NewMeter(2, 4), audio.Meter)
	assert.Equal(t, int64(912000), audio.Frame())
	assert.Equal(t, BBT{Bars: 6, Beats: 1}, audio.BBT())

	music := tm.MeterSectionAt(1 << 40)
	assert.Equal(t, NewMeter(3, 4), music.Meter)
	assert.Equal(t, BBT{Bars: 9, Beats: 1}, music.BBT())
	assert.LessOrEqual(t, abs64(music.Frame()-1200000), int64(1))
}

func TestPredictTempo(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	ts, err := tm.AddTempo(NewTempo(120, 4), 4, Constant)
	require.NoError(t, err)
	before := mustState(t, tm)

	frame, err := tm.PredictTempoFrame(ts, ts.Tempo, BBT{Bars: 3, Beats: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(192000), frame)

	pulse, err := tm.PredictTempoPulse(ts, ts.Tempo, 96000)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pulse, 1e-9)

	_, err = tm.PredictTempoPulse(ts, ts.Tempo, 0)
	assert.True(t, errors.IsError(err, ErrUnsolvable))

	assert.Equal(t, before, mustState(t, tm))
}

func TestGuiStretchTempoEnd(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	require.NoError(t, tm.ReplaceTempo(tm.FirstTempo(), NewTempo(120, 4), 0, Ramp))
	next, err := tm.AddTempo(NewTempo(120, 4), 8, Constant)
	require.NoError(t, err)
	assert.Equal(t, int64(768000), next.Frame())

	require.NoError(t, tm.GuiStretchTempoEnd(tm.FirstTempo(), 800000))
	next = tm.TempoSectionAt(1 << 40)
	assert.LessOrEqual(t, abs64(next.Frame()-800000), int64(1))
	assert.Equal(t, 8.0, next.Pulse())
	assert.Less(t, tm.FirstTempo().C(), 0.0)
	assert.Less(t, next.BeatsPerMinute(), 120.0)

	_, err = tm.AddTempoAtFrame(NewTempo(100, 4), 900000, Constant)
	require.NoError(t, err)
	err = tm.GuiStretchTempoEnd(tm.TempoSectionAt(850000), 850000)
	assert.True(t, errors.IsError(err, ErrUnsolvable))
}

func TestSignalEmission(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	emitted := 0
	tempos := 0
	conn := tm.MetricPositionChanged.Connect(func() {
		emitted++
		// the lock is released before handlers run
		tempos = tm.NTempos()
	})

	ts, err := tm.AddTempo(NewTempo(100, 4), 4, Constant)
	require.NoError(t, err)
	assert.Equal(t, 1, emitted)
	assert.Equal(t, 2, tempos)

	require.NoError(t, tm.RemoveTempo(ts, false))
	assert.Equal(t, 1, emitted)

	assert.Error(t, tm.RemoveTempo(tm.FirstTempo(), true))
	assert.Equal(t, 1, emitted)

	tm.Clear()
	assert.Equal(t, 2, emitted)

	conn.Disconnect()
	conn.Disconnect()
	require.NoError(t, tm.SetLength(100))
	assert.Equal(t, 2, emitted)
}

func TestSignalOrder(t *testing.T) {
	t.Parallel()

	var s Signal
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		s.Connect(func() { order = append(order, i) })
	}
	s.Emit()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)

	var empty Connection
	empty.Disconnect()
}
