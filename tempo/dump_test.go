package tempo

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t, WithLength(96000))
	require.NoError(t, tm.ReplaceTempo(tm.FirstTempo(), NewTempo(120, 4), 0, Ramp))
	_, err := tm.AddTempo(NewTempo(60, 4), 1.75, Constant)
	require.NoError(t, err)
	_, err = tm.AddMeter(NewMeter(3, 4), BBT{Bars: 2, Beats: 1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tm.Dump(&buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "TempoMap @ 48000 Hz, length 96000", lines[0])
	assert.Contains(t, lines[1], "bbt 1|1|0")
	assert.Contains(t, lines[1], "-> ")
	assert.Contains(t, lines[2], "Meter")
	assert.Contains(t, lines[4], "bbt 3|1|0")
	assert.NotContains(t, lines[4], "->")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDumpReportsWriteErrors(t *testing.T) {
	t.Parallel()

	tm := newTestMap(t)
	assert.EqualError(t, tm.Dump(failingWriter{}), "disk full")
}
