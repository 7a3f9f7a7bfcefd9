// Package distance converts between apparent ball size and distance along
// the optical axis using the pinhole camera model.
package distance

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateDiameter is returned when a pixel or real diameter is not positive.
	ErrDegenerateDiameter = errors.New("degenerate diameter")
	// ErrInsufficientSamples is returned when too few samples or pairs are available.
	ErrInsufficientSamples = errors.New("insufficient samples")
)

// Distance returns realDiameter * focalLength / pixelDiameter. The result
// is in the units of realDiameter.
func Distance(realDiameter, focalLength, pixelDiameter float64) (float64, error) {
	if pixelDiameter <= 0 {
		return 0, fmt.Errorf("%w: pixel diameter %g", ErrDegenerateDiameter, pixelDiameter)
	}
	if realDiameter <= 0 {
		return 0, fmt.Errorf("%w: real diameter %g", ErrDegenerateDiameter, realDiameter)
	}
	if focalLength <= 0 {
		return 0, fmt.Errorf("focal length must be positive, got %g", focalLength)
	}
	return realDiameter * focalLength / pixelDiameter, nil
}

// FocalLength returns pixelDiameter * knownDistance / realDiameter, the
// focal length in pixels implied by a target of known size at a known
// distance.
func FocalLength(pixelDiameter, knownDistance, realDiameter float64) (float64, error) {
	if pixelDiameter <= 0 {
		return 0, fmt.Errorf("%w: pixel diameter %g", ErrDegenerateDiameter, pixelDiameter)
	}
	if realDiameter <= 0 {
		return 0, fmt.Errorf("%w: real diameter %g", ErrDegenerateDiameter, realDiameter)
	}
	if knownDistance <= 0 {
		return 0, fmt.Errorf("known distance must be positive, got %g", knownDistance)
	}
	return pixelDiameter * knownDistance / realDiameter, nil
}

// Estimator maps a pixel diameter to a distance.
type Estimator interface {
	Estimate(pixelDiameter float64) (float64, error)
	Name() string
}

// PinholeModel estimates distance from a focal length in pixels and the
// real target diameter.
type PinholeModel struct {
	Focal        float64 `json:"focal"`
	RealDiameter float64 `json:"real_diameter"`
}

// Estimate implements Estimator.
func (m PinholeModel) Estimate(pixelDiameter float64) (float64, error) {
	return Distance(m.RealDiameter, m.Focal, pixelDiameter)
}

// Name implements Estimator.
func (m PinholeModel) Name() string { return "pinhole" }

// InverseModel is the linear inverse-distance approximation
// distance = A / pixelDiameter + B.
type InverseModel struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Estimate implements Estimator.
func (m InverseModel) Estimate(pixelDiameter float64) (float64, error) {
	if pixelDiameter <= 0 {
		return 0, fmt.Errorf("%w: pixel diameter %g", ErrDegenerateDiameter, pixelDiameter)
	}
	return m.A/pixelDiameter + m.B, nil
}

// Name implements Estimator.
func (m InverseModel) Name() string { return "inverse-linear" }
