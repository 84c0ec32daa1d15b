package tempo

import (
	"fmt"
	"testing"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBusyMap builds five tempos of mixed type and lock style and three meters.
func newBusyMap(t *testing.T) *TempoMap {
	tm := newTestMap(t, WithLength(2400000))
	require.NoError(t, tm.ReplaceTempo(tm.FirstTempo(), NewTempo(120, 4), 0, Ramp))

	_, err := tm.AddTempo(NewTempo(140, 4), 4, Constant)
	require.NoError(t, err)
	_, err = tm.AddTempoAtFrame(NewTempo(100, 4), 500000, Ramp)
	require.NoError(t, err)
	_, err = tm.AddTempo(NewTempo(90, 4), 16, Constant)
	require.NoError(t, err)
	_, err = tm.AddTempoAtFrame(NewTempo(110, 8), 2000000, Constant)
	require.NoError(t, err)

	_, err = tm.AddMeter(NewMeter(3, 4), BBT{Bars: 3, Beats: 1})
	require.NoError(t, err)
	_, err = tm.AddMeterAtFrame(NewMeter(7, 8), 1000000)
	require.NoError(t, err)

	require.Equal(t, 5, tm.NTempos())
	require.Equal(t, 3, tm.NMeters())
	return tm
}

type gridLine struct {
	frame     int64
	bar, beat int32
	meter     Meter
	tempo     Tempo
	c         float64
}

func gridLines(tm *TempoMap, end int64) []gridLine {
	var lines []gridLine
	for _, p := range tm.Grid(0, end) {
		lines = append(lines, gridLine{p.Frame, p.Bar, p.Beat, p.Meter.Meter, p.Tempo, p.C})
	}
	return lines
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	tm := newBusyMap(t)
	data, err := tm.State()
	require.NoError(t, err)
	grid := gridLines(tm, 2400000)
	require.NotEmpty(t, grid)

	tm.Clear()
	require.Equal(t, 1, tm.NTempos())

	require.NoError(t, tm.SetState(data, CurrentStateVersion))
	assert.Equal(t, 5, tm.NTempos())
	assert.Equal(t, 3, tm.NMeters())
	assert.Equal(t, int64(2400000), tm.Length())
	assert.Equal(t, grid, gridLines(tm, 2400000))

	again, err := tm.State()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))

	other := newTestMap(t)
	require.NoError(t, other.SetState(data, CurrentStateVersion))
	assert.Equal(t, grid, gridLines(other, 2400000))
}

func TestStateFormat(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	_, err := tm.AddTempo(NewTempo(90, 8), 2, Ramp)
	require.NoError(t, err)

	want := `<TempoMap frame-rate="48000" length="0">
  <Tempo beats-per-minute="120" note-type="4" frame="0" movable="no" active="yes" type="Constant" lock-style="AudioTime"></Tempo>
  <Meter divisions-per-bar="4" note-type="4" beat="0" bbt="1|1|0" frame="0" movable="no" lock-style="AudioTime"></Meter>
  <Tempo beats-per-minute="90" note-type="8" pulse="2" movable="yes" active="yes" type="Ramp" lock-style="MusicTime"></Tempo>
</TempoMap>`
	data, err := tm.State()
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
}

func TestSetStateSignals(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	data, err := newBusyMap(t).State()
	require.NoError(t, err)

	emitted := 0
	tm.MetricPositionChanged.Connect(func() { emitted++ })
	require.NoError(t, tm.SetState(data, CurrentStateVersion))
	assert.Equal(t, 1, emitted)

	assert.Error(t, tm.SetState([]byte("<TempoMap"), CurrentStateVersion))
	assert.Equal(t, 1, emitted)
}

const minimalSections = `
  <Tempo beats-per-minute="120" note-type="4" frame="0" movable="no" active="yes" type="Constant" lock-style="AudioTime"/>
  <Meter divisions-per-bar="4" note-type="4" beat="0" bbt="1|1|0" frame="0" movable="no" lock-style="AudioTime"/>`

func stateDoc(body string) []byte {
	return []byte(fmt.Sprintf(`<TempoMap frame-rate="48000" length="96000">%s
</TempoMap>`, body))
}

func TestSetStateRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		data    []byte
		version int
		want    error
	}{
		{"too old", stateDoc(minimalSections), MinStateVersion - 1, ErrUnsupportedVersion},
		{"too new", stateDoc(minimalSections), CurrentStateVersion + 1, ErrUnsupportedVersion},
		{"truncated", []byte(`<TempoMap frame-rate="48000"`), CurrentStateVersion, ErrInvalidState},
		{"wrong root", []byte(`<Session/>`), CurrentStateVersion, ErrInvalidState},
		{"bad frame rate", []byte(`<TempoMap frame-rate="zero">` + minimalSections + `</TempoMap>`), CurrentStateVersion, ErrInvalidState},
		{"negative length", []byte(`<TempoMap length="-5">` + minimalSections + `</TempoMap>`), CurrentStateVersion, ErrInvalidState},
		{"no meter", stateDoc(`
  <Tempo beats-per-minute="120" note-type="4" frame="0" movable="no" active="yes" type="Constant" lock-style="AudioTime"/>`), CurrentStateVersion, ErrInvalidState},
		{"two initial tempos", stateDoc(minimalSections + `
  <Tempo beats-per-minute="100" note-type="4" frame="1000" movable="no" active="yes" type="Constant" lock-style="AudioTime"/>`), CurrentStateVersion, ErrInvalidState},
		{"pulse and frame", stateDoc(minimalSections + `
  <Tempo beats-per-minute="100" note-type="4" pulse="1" frame="1000" movable="yes" active="yes" type="Constant"/>`), CurrentStateVersion, ErrInvalidState},
		{"conflicting lock style", stateDoc(minimalSections + `
  <Tempo beats-per-minute="100" note-type="4" pulse="1" movable="yes" active="yes" type="Constant" lock-style="AudioTime"/>`), CurrentStateVersion, ErrInvalidState},
		{"negative tempo", stateDoc(minimalSections + `
  <Tempo beats-per-minute="-100" note-type="4" pulse="1" movable="yes"/>`), CurrentStateVersion, ErrInvalidState},
		{"missing note type", stateDoc(minimalSections + `
  <Tempo beats-per-minute="100" pulse="1" movable="yes"/>`), CurrentStateVersion, ErrInvalidState},
		{"unknown tempo type", stateDoc(minimalSections + `
  <Tempo beats-per-minute="100" note-type="4" pulse="1" movable="yes" type="Swing"/>`), CurrentStateVersion, ErrInvalidState},
		{"meter off the bar", stateDoc(minimalSections + `
  <Meter divisions-per-bar="3" note-type="4" bbt="2|2|0" movable="yes"/>`), CurrentStateVersion, ErrInvalidState},
		{"bad bbt", stateDoc(minimalSections + `
  <Meter divisions-per-bar="3" note-type="4" bbt="2|1" movable="yes"/>`), CurrentStateVersion, ErrInvalidState},
		{"bad bool", stateDoc(minimalSections + `
  <Meter divisions-per-bar="3" note-type="4" bbt="2|1|0" movable="maybe"/>`), CurrentStateVersion, ErrInvalidState},
		{"unsolvable order", stateDoc(minimalSections + `
  <Tempo beats-per-minute="100" note-type="4" frame="2000" movable="yes"/>
  <Tempo beats-per-minute="100" note-type="4" frame="1000" movable="yes"/>`), CurrentStateVersion, ErrInvalidState},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			tm := newTestMap(t)
			before := mustState(t, tm)
			err := tm.SetState(c.data, c.version)
			assert.True(t, errors.IsError(err, c.want), "got %v", err)
			assert.Equal(t, before, mustState(t, tm))
		})
	}
}

func TestSetStateIgnoresUnknownElements(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	data := stateDoc(minimalSections + `
  <Marker name="verse" frame="96000"/>`)
	require.NoError(t, tm.SetState(data, CurrentStateVersion))
	assert.Equal(t, 1, tm.NTempos())
	assert.Equal(t, int64(96000), tm.Length())
}

func TestSetStateKeepsFrameRate(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	data := []byte(`<TempoMap frame-rate="44100">` + minimalSections + `
  <Tempo beats-per-minute="60" note-type="4" frame="96000" movable="yes" active="yes" type="Constant"/>
</TempoMap>`)
	require.NoError(t, tm.SetState(data, CurrentStateVersion))
	assert.Equal(t, int64(testRate), tm.FrameRate())
	assert.Equal(t, int64(96000), tm.TempoSectionAt(96000).Frame())
	assert.Equal(t, NewTempo(60, 4), tm.TempoAt(96000))
}

func TestSetStateUpgradesLegacySessions(t *testing.T) {
	t.Parallel()

	// sessions before note-type anchored tempos to a bbt and meters had no coordinate
	legacy := []byte(`<TempoMap>
  <Tempo beats-per-minute="120" start="1|1|0" movable="no"/>
  <Meter divisions-per-bar="4" note-type="4" start="1|1|0" movable="no"/>
  <Meter divisions-per-bar="3" note-type="4" start="2|1|0" movable="yes"/>
  <Tempo beats-per-minute="90" start="3|1|0" movable="yes"/>
</TempoMap>`)

	tm := newTestMap(t)
	require.NoError(t, tm.SetState(legacy, MinStateVersion))

	require.Equal(t, 2, tm.NTempos())
	ts := tm.TempoSectionAt(1 << 40)
	assert.Equal(t, int64(168000), ts.Frame())
	assert.Equal(t, 1.75, ts.Pulse())
	assert.Equal(t, MusicTime, ts.PositionLockStyle())
	assert.Equal(t, NewTempo(90, 4), ts.Tempo)
	bbt, ok := ts.LegacyBBT()
	assert.True(t, ok)
	assert.Equal(t, BBT{Bars: 3, Beats: 1}, bbt)

	assert.Equal(t, BBT{Bars: 3, Beats: 1}, tm.BBTTime(168000))
	assert.Equal(t, int64(96000), tm.MeterSectionAt(100000).Frame())

	_, ok = tm.FirstTempo().LegacyBBT()
	assert.True(t, ok)
	assert.Equal(t, int64(0), tm.FirstTempo().Frame())
}
