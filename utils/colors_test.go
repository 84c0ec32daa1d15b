package utils

import (
	"testing"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRGBFromString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "#ff0000", GetRGBFromString("#FF0000").Hex())
	assert.Equal(t, "#0000ff", GetRGBFromString("Blue").Hex())
	assert.Equal(t, "#ffffff", GetRGBFromString("not a color").Hex())
}

func TestMeterColorsDiffer(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		c := MeterColor(i)
		require.True(t, c.IsValid())
		seen[c.Hex()] = true
	}
	assert.Len(t, seen, 8)
}

func TestTempoColor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TempoColor(40, 60, 180).Hex(), TempoColor(60, 60, 180).Hex())
	assert.Equal(t, TempoColor(400, 60, 180).Hex(), TempoColor(180, 60, 180).Hex())
	assert.NotEqual(t, TempoColor(60, 60, 180).Hex(), TempoColor(180, 60, 180).Hex())

	// a degenerate range still yields a usable color
	assert.True(t, TempoColor(120, 120, 120).IsValid())
}

func TestDim(t *testing.T) {
	t.Parallel()

	red := colorful.Color{R: 1}
	assert.Equal(t, "#000000", Dim(red, 0).Hex())
	assert.Equal(t, "#ff0000", Dim(red, 1).Hex())
	assert.Equal(t, "#ff0000", Dim(red, 2).Hex())
	assert.Equal(t, "#800000", Dim(red, 0.5).Hex())
}

func TestGetFadeValue(t *testing.T) {
	t.Parallel()

	target := 250
	step := 15
	numSteps := 30
	expected := 129

	value := GetFadeValue(target, step, numSteps)
	require.Equal(t, expected, value)

	assert.Equal(t, 250, GetFadeValue(250, 29, 30))
	assert.Equal(t, 0, GetFadeValue(250, 0, 30))
	assert.Equal(t, 7, GetFadeValue(7, 0, 1))
}

func TestClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, clamp(5, 0, 1))
	assert.Equal(t, 0.0, clamp(-5, 1, 0))
	assert.Equal(t, 0.5, clamp(0.5, 0, 1))
}
