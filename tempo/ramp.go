package tempo

import (
	"math"

	"github.com/gruntwork-io/go-commons/errors"
)

const (
	// residual bound, in pulses, for the secant ramp solver (scaled by the span for long spans)
	rampTolerance = 1e-12
	// iteration bound for the secant ramp solver
	rampMaxIterations = 50
	// below this |c·t| the series form of the ramp is used
	rampSeriesThreshold = 1e-9
)

func frameToMinute(frame, sr int64) float64 {
	return float64(frame) / (float64(sr) * 60.0)
}

func minuteToFrame(minutes float64, sr int64) int64 {
	f := math.Round(minutes * 60.0 * float64(sr))
	if math.IsNaN(f) || f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}

// T(t) = T0·e^(ct)
func pulseTempoAtTime(t0, c, minutes float64) float64 {
	return t0 * math.Exp(c*minutes)
}

// t(T) = ln(T/T0)/c
func timeAtPulseTempo(t0, c, ppm float64) float64 {
	return math.Log(ppm/t0) / c
}

// cFunc returns the coefficient taking t0 to tEnd in the given number of minutes.
func cFunc(t0, tEnd, minutes float64) float64 {
	return math.Log(tEnd/t0) / minutes
}

// rampPulses is P(t) = (T0/c)(e^(ct) − 1).
func rampPulses(t0, c, minutes float64) float64 {
	ct := c * minutes
	if math.Abs(ct) < rampSeriesThreshold {
		return t0 * minutes * (1 + ct/2)
	}
	return (t0 / c) * math.Expm1(ct)
}

// rampMinutes is t(P) = ln(1 + cP/T0)/c.
func rampMinutes(t0, c, pulses float64) float64 {
	x := c * pulses / t0
	if math.Abs(x) < rampSeriesThreshold {
		return (pulses / t0) * (1 - x/2)
	}
	if x <= -1 {
		// the ramp never gets this far before its tempo reaches zero
		return math.Inf(1)
	}
	return math.Log1p(x) / c
}

// solveRampCoefficient finds c such that a ramp starting at pulse-tempo t0 covers
// pulses pulses in exactly minutes minutes. seed is the first estimate, usually the
// linear-in-pulse coefficient (T_end − T0)/P_end.
func solveRampCoefficient(t0, pulses, minutes, seed float64) (float64, error) {
	if !(pulses > 0) || !(minutes > 0) || !validPositive(t0) {
		return 0, errors.WithStackTrace(ErrUnsolvable)
	}

	residual := func(c float64) float64 {
		return rampPulses(t0, c, minutes) - pulses
	}
	tolerance := rampTolerance * math.Max(1, pulses)

	c0 := seed
	c1 := seed + 1e-3*math.Max(math.Abs(seed), 1e-3)
	f0 := residual(c0)
	if math.Abs(f0) <= tolerance {
		return c0, nil
	}
	f1 := residual(c1)

	for i := 0; i < rampMaxIterations; i++ {
		if math.Abs(f1) <= tolerance {
			return c1, nil
		}
		if f1 == f0 || math.IsNaN(f1) || math.IsInf(f1, 0) {
			break
		}
		c0, c1 = c1, c1-f1*(c1-c0)/(f1-f0)
		f0, f1 = f1, residual(c1)
	}
	if math.Abs(f1) <= tolerance {
		return c1, nil
	}
	return 0, errors.WithStackTrace(ErrDivergence)
}
