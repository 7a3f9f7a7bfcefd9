package distance

import (
	"fmt"

	"balltrack/internal/config"
	"balltrack/internal/detect"

	"gonum.org/v1/gonum/stat"
)

// FocalResult is the outcome of a focal-length calibration session.
type FocalResult struct {
	Samples        int     `json:"samples"`
	MeanDiameter   float64 `json:"mean_diameter"`
	StdDevDiameter float64 `json:"stddev_diameter"`
	FocalLength    float64 `json:"focal_length"`
	KnownDistance  float64 `json:"known_distance"`
	RealDiameter   float64 `json:"real_diameter"`
}

// FocalSampler collects pixel-diameter samples of a target held at a known
// distance. It has no timeout: callers keep offering detections until Done.
type FocalSampler struct {
	N             int
	MinRadius     float64
	RealDiameter  float64
	KnownDistance float64

	diameters []float64
	rejected  int
}

// NewFocalSampler creates a sampler from the distance configuration.
func NewFocalSampler(p config.DistanceParams) *FocalSampler {
	return &FocalSampler{
		N:             p.FocalSamples,
		MinRadius:     p.MinRadius,
		RealDiameter:  p.RealDiameter,
		KnownDistance: p.KnownDistance,
	}
}

// Offer records the candidate's diameter when its radius reaches MinRadius
// and the sampler is not yet full. It reports whether the sample was kept.
func (s *FocalSampler) Offer(c detect.Candidate) bool {
	if s.Done() {
		return false
	}
	if c.Radius < s.MinRadius {
		s.rejected++
		return false
	}
	s.diameters = append(s.diameters, c.Diameter())
	return true
}

// Done reports whether N samples have been collected.
func (s *FocalSampler) Done() bool {
	return len(s.diameters) >= s.N
}

// Len returns the number of accepted samples.
func (s *FocalSampler) Len() int {
	return len(s.diameters)
}

// Rejected returns how many offers fell below the radius floor.
func (s *FocalSampler) Rejected() int {
	return s.rejected
}

// Result averages the collected diameters and derives the focal length.
// It fails with ErrInsufficientSamples until N samples are in.
func (s *FocalSampler) Result() (FocalResult, error) {
	if !s.Done() || s.N < 1 {
		return FocalResult{}, fmt.Errorf("%w: have %d of %d focal samples", ErrInsufficientSamples, len(s.diameters), s.N)
	}
	mean, std := stat.MeanStdDev(s.diameters, nil)
	if len(s.diameters) == 1 {
		std = 0
	}
	focal, err := FocalLength(mean, s.KnownDistance, s.RealDiameter)
	if err != nil {
		return FocalResult{}, err
	}
	return FocalResult{
		Samples:        len(s.diameters),
		MeanDiameter:   mean,
		StdDevDiameter: std,
		FocalLength:    focal,
		KnownDistance:  s.KnownDistance,
		RealDiameter:   s.RealDiameter,
	}, nil
}
