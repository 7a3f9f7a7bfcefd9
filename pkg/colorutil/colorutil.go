// Package colorutil provides shared color utilities for the ball tracker.
package colorutil

import (
	"image/color"
	"math"
)

// Common overlay colors used throughout the application.
var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Gray   = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	Red    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Blue   = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// RGBToHSV converts RGB (0-255) to HSV (OpenCV convention: H 0-180, S 0-255, V 0-255).
func RGBToHSV(r, g, b float64) (h, s, v float64) {
	r /= 255.0
	g /= 255.0
	b /= 255.0

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	diff := maxC - minC

	v = maxC * 255.0 // V in 0-255

	if maxC == 0 {
		s = 0
	} else {
		s = (diff / maxC) * 255.0 // S in 0-255
	}

	if diff == 0 {
		h = 0
	} else if maxC == r {
		h = 60 * math.Mod((g-b)/diff, 6)
	} else if maxC == g {
		h = 60 * ((b-r)/diff + 2)
	} else {
		h = 60 * ((r-g)/diff + 4)
	}

	if h < 0 {
		h += 360
	}

	h = h / 2 // Convert to OpenCV's 0-180 range

	return h, s, v
}

// HSVToRGB is the inverse of RGBToHSV, taking OpenCV-scaled HSV and
// returning 8-bit RGB components.
func HSVToRGB(h, s, v float64) (r, g, b uint8) {
	hd := math.Mod(h*2, 360)
	if hd < 0 {
		hd += 360
	}
	sf := s / 255.0
	vf := v / 255.0

	c := vf * sf
	x := c * (1 - math.Abs(math.Mod(hd/60, 2)-1))
	m := vf - c

	var rf, gf, bf float64
	switch {
	case hd < 60:
		rf, gf, bf = c, x, 0
	case hd < 120:
		rf, gf, bf = x, c, 0
	case hd < 180:
		rf, gf, bf = 0, c, x
	case hd < 240:
		rf, gf, bf = 0, x, c
	case hd < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}

	return to8(rf + m), to8(gf + m), to8(bf + m)
}

func to8(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
}
