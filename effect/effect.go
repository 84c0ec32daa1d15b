// Package effect shapes how strongly a beat is drawn as it moves away from the downbeat.
package effect

import (
	"errors"
	"math"

	"github.com/fogleman/ease"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrUnknownEasing is returned by NewEffect for a type it has no curve for.
var ErrUnknownEasing = errors.New("effect: unknown easing")

var easings = map[string]func(float64) float64{
	"linear":      ease.Linear,
	"in_quart":    ease.InQuart,
	"out_cubic":   ease.OutCubic,
	"in_out_sine": ease.InOutSine,
	"out_expo":    ease.OutExpo,
}

// Easings returns the names NewEffect accepts, sorted.
func Easings() []string {
	names := maps.Keys(easings)
	slices.Sort(names)
	return names
}

type Effect struct {
	// The type of the effect, one of Easings
	Type string

	// Floor is the level the envelope decays to
	Floor float64

	curve func(float64) float64
}

// Create a new Effect of type t decaying to floor
func NewEffect(t string, floor float64) (*Effect, error) {
	curve, ok := easings[t]
	if !ok {
		return nil, ErrUnknownEasing
	}
	return &Effect{
		Type:  t,
		Floor: math.Max(0, math.Min(1, floor)),
		curve: curve,
	}, nil
}

// Update returns the level at position of length, falling from 1 at 0 to Floor at length.
func (e *Effect) Update(position, length float64) float64 {
	if length <= 0 || position <= 0 {
		return 1
	}
	t := math.Min(position/length, 1)
	return 1 - (1-e.Floor)*e.curve(t)
}
