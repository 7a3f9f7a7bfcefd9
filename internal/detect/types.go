// Package detect extracts circle candidates from color masks and picks the
// single best circle per frame.
package detect

import (
	"fmt"
	"strings"

	"balltrack/internal/config"
	"balltrack/pkg/geometry"
)

// Algorithm selects a circle extraction strategy.
type Algorithm int

const (
	// ContourFit traces external mask boundaries and fits a minimum enclosing circle.
	ContourFit Algorithm = iota
	// Hough runs the gradient circle Hough transform on the masked grayscale frame.
	Hough
)

func (a Algorithm) String() string {
	switch a {
	case ContourFit:
		return "contour"
	case Hough:
		return "hough"
	default:
		return "unknown"
	}
}

// MarshalText encodes the algorithm name.
func (a Algorithm) MarshalText() ([]byte, error) {
	if a != ContourFit && a != Hough {
		return nil, fmt.Errorf("invalid algorithm %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText decodes an algorithm name.
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAlgorithm converts "contour" or "hough" into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "contour":
		return ContourFit, nil
	case "hough":
		return Hough, nil
	default:
		return 0, fmt.Errorf("unknown algorithm %q", s)
	}
}

// ParseAlgorithms parses a list of names, keeping their order.
func ParseAlgorithms(names []string) ([]Algorithm, error) {
	algos := make([]Algorithm, 0, len(names))
	for _, n := range names {
		a, err := ParseAlgorithm(n)
		if err != nil {
			return nil, err
		}
		algos = append(algos, a)
	}
	return algos, nil
}

// Candidate is one circle found in one color mask by one algorithm.
// Units are image pixels.
type Candidate struct {
	Center      geometry.Point2D `json:"center"`
	Radius      float64          `json:"radius"`
	Label       config.Label     `json:"label"`
	Source      Algorithm        `json:"source"`
	SupportArea float64          `json:"support_area"`
}

// Diameter returns twice the radius.
func (c Candidate) Diameter() float64 {
	return 2 * c.Radius
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s/%s (%.1f, %.1f) r=%.1f", c.Label, c.Source, c.Center.X, c.Center.Y, c.Radius)
}
