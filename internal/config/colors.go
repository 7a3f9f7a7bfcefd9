package config

import (
	"fmt"
	"strings"
)

// Label identifies one ball color class.
type Label int

const (
	LabelRed Label = iota
	LabelBlue
	LabelYellow
)

// Labels lists every color class in canonical iteration order.
var Labels = []Label{LabelRed, LabelBlue, LabelYellow}

func (l Label) String() string {
	switch l {
	case LabelRed:
		return "red"
	case LabelBlue:
		return "blue"
	case LabelYellow:
		return "yellow"
	default:
		return fmt.Sprintf("label(%d)", int(l))
	}
}

// ParseLabel converts a color name into a Label.
func ParseLabel(s string) (Label, error) {
	for _, l := range Labels {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown color label %q", s)
}

// MarshalText encodes the label as its name.
func (l Label) MarshalText() ([]byte, error) {
	if l < LabelRed || l > LabelYellow {
		return nil, fmt.Errorf("invalid color label %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText decodes a label name.
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ColorSpace selects which 3-channel representation a ColorRange thresholds.
type ColorSpace int

const (
	// SpaceHSV thresholds hue/saturation/value (OpenCV scale: H 0-180, S and V 0-255).
	SpaceHSV ColorSpace = iota
	// SpaceBGR thresholds raw blue/green/red channels (0-255).
	SpaceBGR
)

func (s ColorSpace) String() string {
	switch s {
	case SpaceHSV:
		return "hsv"
	case SpaceBGR:
		return "bgr"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

// MarshalText encodes the color space as its name.
func (s ColorSpace) MarshalText() ([]byte, error) {
	if s != SpaceHSV && s != SpaceBGR {
		return nil, fmt.Errorf("invalid color space %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes "hsv" or "bgr". An empty string means HSV.
func (s *ColorSpace) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "hsv":
		*s = SpaceHSV
	case "bgr", "rgb":
		*s = SpaceBGR
	default:
		return fmt.Errorf("unknown color space %q", string(text))
	}
	return nil
}

// MaxHue is the largest hue value in OpenCV's 8-bit HSV encoding.
const MaxHue = 179

// Bound is one inclusive (lower, upper) box in a 3-channel color space.
type Bound struct {
	Lower [3]float64 `json:"lower"`
	Upper [3]float64 `json:"upper"`
}

// ColorRange is a named color class made of one or more bounds. A pixel
// belongs to the class when it falls inside any of the bounds.
type ColorRange struct {
	Label  Label      `json:"label"`
	Space  ColorSpace `json:"space,omitempty"`
	Bounds []Bound    `json:"bounds"`
}

// NewHueRange builds an HSV ColorRange. When hMin > hMax the hue interval
// crosses the circular boundary and is split into [hMin, 179] ∪ [0, hMax].
func NewHueRange(label Label, hMin, hMax, sMin, sMax, vMin, vMax float64) ColorRange {
	r := ColorRange{Label: label, Space: SpaceHSV}
	if hMin <= hMax {
		r.Bounds = []Bound{{
			Lower: [3]float64{hMin, sMin, vMin},
			Upper: [3]float64{hMax, sMax, vMax},
		}}
		return r
	}
	r.Bounds = []Bound{
		{Lower: [3]float64{hMin, sMin, vMin}, Upper: [3]float64{MaxHue, sMax, vMax}},
		{Lower: [3]float64{0, sMin, vMin}, Upper: [3]float64{hMax, sMax, vMax}},
	}
	return r
}

// Validate checks every bound is ordered component-wise and inside the
// channel limits of its color space.
func (r ColorRange) Validate() error {
	if len(r.Bounds) == 0 {
		return fmt.Errorf("color %s: no bounds", r.Label)
	}
	limits := [3]float64{255, 255, 255}
	if r.Space == SpaceHSV {
		limits[0] = 180
	}
	for i, b := range r.Bounds {
		for c := 0; c < 3; c++ {
			if b.Lower[c] < 0 || b.Upper[c] > limits[c] {
				return fmt.Errorf("color %s bound %d channel %d: [%g, %g] outside [0, %g]",
					r.Label, i, c, b.Lower[c], b.Upper[c], limits[c])
			}
			if b.Lower[c] > b.Upper[c] {
				return fmt.Errorf("color %s bound %d channel %d: lower %g > upper %g",
					r.Label, i, c, b.Lower[c], b.Upper[c])
			}
		}
	}
	return nil
}
