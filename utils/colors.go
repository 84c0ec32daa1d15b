package utils

import (
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

var namedColors = map[string]string{
	"white": "#FFFFFF",
	"black": "#000000",
	"red":   "#FF0000",
	"green": "#00FF00",
	"blue":  "#0000FF",
	"grey":  "#808080",
	"gray":  "#808080",
}

var (
	slowColor = colorful.Color{R: 0.2, G: 0.4, B: 1}
	fastColor = colorful.Color{R: 1, G: 0.3, B: 0.2}
)

// GetRGBFromString returns a color from a hex string like "#FF0000" or a basic color name.
// Anything else is white.
func GetRGBFromString(s string) colorful.Color {
	if hex, ok := namedColors[strings.ToLower(s)]; ok {
		s = hex
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{R: 1, G: 1, B: 1}
	}
	return c
}

// MeterColor picks a distinct color for the nth meter section of a map.
func MeterColor(n int) colorful.Color {
	// golden angle steps keep neighbouring meters far apart on the wheel
	hue := math.Mod(float64(n)*137.508, 360)
	return colorful.Hcl(hue, 0.5, 0.75).Clamped()
}

// TempoColor places bpm between slow and fast on a blue to red scale.
func TempoColor(bpm, slow, fast float64) colorful.Color {
	if fast <= slow {
		return slowColor.BlendHcl(fastColor, 0.5).Clamped()
	}
	t := clamp((bpm-slow)/(fast-slow), 0, 1)
	return slowColor.BlendHcl(fastColor, t).Clamped()
}

// Dim scales the lightness of c by level in [0, 1].
func Dim(c colorful.Color, level float64) colorful.Color {
	h, s, v := c.Hsv()
	return colorful.Hsv(h, s, v*clamp(level, 0, 1))
}
