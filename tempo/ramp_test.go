package tempo

import (
	"math"
	"testing"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRampClosedForms(t *testing.T) {
	t.Parallel()

	// 60 bpm quarter ramping to 120 bpm over 60 pulses
	ts := newTempoSection(NewTempo(60, 4), Ramp, AudioTime)
	ts.c = ts.computeCFuncPulse(30, 60)
	assert.Equal(t, 0.25, ts.c)

	assert.InDelta(t, 22.5, ts.pulseTempoAtPulse(30), 1e-12)
	assert.InDelta(t, 4*math.Ln2, ts.timeAtPulse(60), 1e-12)
	assert.InDelta(t, 60.0, ts.pulseAtTime(4*math.Ln2), 1e-9)
	assert.InDelta(t, 30.0, ts.pulseTempoAtTime(4*math.Ln2), 1e-9)
	assert.InDelta(t, 90.0, ts.TempoAtPulse(30), 1e-9)
	assert.InDelta(t, 30.0, ts.PulseAtTempo(90), 1e-9)
}

func TestRampSeriesMatchesClosedForm(t *testing.T) {
	t.Parallel()

	// tiny coefficients use the series form; it must agree with the closed form
	for _, c := range []float64{1e-12, -1e-12, 1e-10} {
		assert.InDelta(t, 30.0*2, rampPulses(30, c, 2), 1e-6)
		assert.InDelta(t, 2.0, rampMinutes(30, c, 60), 1e-6)
	}
	assert.True(t, math.IsInf(rampMinutes(10, -1, 20), 1))
}

func TestComputeCFuncFrame(t *testing.T) {
	t.Parallel()

	ts := newTempoSection(NewTempo(60, 4), Ramp, AudioTime)
	endFrame := int64(60 * 48000)
	ts.c = ts.computeCFuncFrame(30, endFrame, 48000)

	assert.InDelta(t, math.Ln2, ts.c, 1e-12)
	assert.InDelta(t, 120.0, ts.TempoAtFrame(endFrame, 48000), 1e-9)
	assert.InDelta(t, float64(endFrame), float64(ts.FrameAtTempo(120, 48000)), 1)
}

func TestSolveRampCoefficient(t *testing.T) {
	t.Parallel()

	minutes := 4 * math.Ln2
	for _, seed := range []float64{0.25, 0.2, 0, 1} {
		c, err := solveRampCoefficient(15, 60, minutes, seed)
		require.NoError(t, err, "seed %g", seed)
		assert.InDelta(t, 0.25, c, 1e-9, "seed %g", seed)
	}
}

func TestSolveRampCoefficientRejectsEmptySpan(t *testing.T) {
	t.Parallel()

	_, err := solveRampCoefficient(15, 0, 1, 0)
	assert.True(t, errors.IsError(err, ErrUnsolvable))

	_, err = solveRampCoefficient(15, 60, 0, 0)
	assert.True(t, errors.IsError(err, ErrUnsolvable))
}

func TestSolveRampCoefficientDiverges(t *testing.T) {
	t.Parallel()

	// no real coefficient covers this many pulses this quickly from a dead start
	_, err := solveRampCoefficient(1e-300, 1e300, 1e-300, 0)
	assert.Error(t, err)
}

func TestFrameMinuteConversion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, frameToMinute(2880000, 48000))
	assert.Equal(t, int64(2880000), minuteToFrame(1, 48000))
	assert.Equal(t, int64(math.MaxInt64), minuteToFrame(math.Inf(1), 48000))
	assert.Equal(t, int64(math.MaxInt64), minuteToFrame(math.NaN(), 48000))
}
