package utils

import "math"

func clamp(t, min, max float64) float64 {
	min, max = math.Min(min, max), math.Max(min, max)
	return math.Max(math.Min(t, max), min)
}

// GetFadeValue returns the value reached at step of a linear fade from 0 to target over
// numSteps steps. The last step always lands on target.
func GetFadeValue(target, step, numSteps int) int {
	if numSteps < 2 {
		return target
	}
	progress := float64(step) / float64(numSteps-1)
	if progress >= 1 {
		return target
	}

	out := clamp(progress*float64(target), 0, math.Max(0, float64(target)))
	return int(out)
}
