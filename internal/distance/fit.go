package distance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Pair is one measured (distance, pixel diameter) observation.
type Pair struct {
	Distance      float64 `json:"distance"`
	PixelDiameter float64 `json:"pixel_diameter"`
}

// ReferencePairs returns a hand-measured series of a ball held at 5 cm
// steps from 0.05 m to 1.00 m in front of the reference camera.
func ReferencePairs() []Pair {
	diameters := []float64{
		657.70, 400.12, 278.09, 217.17, 180.26, 153.56, 132.53, 116.98, 104.10, 93.64,
		86.22, 79.87, 73.14, 67.84, 63.43, 59.58, 55.59, 52.74, 49.91, 47.12,
	}
	pairs := make([]Pair, len(diameters))
	for i, d := range diameters {
		pairs[i] = Pair{
			Distance:      math.Round(float64(i+1)*5) / 100,
			PixelDiameter: d,
		}
	}
	return pairs
}

// FitInverse fits distance = A / pixelDiameter + B by least squares on
// 1/pixelDiameter. At least two pairs with distinct diameters are required.
func FitInverse(pairs []Pair) (InverseModel, error) {
	if len(pairs) < 2 {
		return InverseModel{}, fmt.Errorf("%w: inverse fit needs 2 pairs, got %d", ErrInsufficientSamples, len(pairs))
	}
	x := make([]float64, len(pairs))
	y := make([]float64, len(pairs))
	for i, p := range pairs {
		if p.PixelDiameter <= 0 {
			return InverseModel{}, fmt.Errorf("pair %d: %w: pixel diameter %g", i, ErrDegenerateDiameter, p.PixelDiameter)
		}
		x[i] = 1 / p.PixelDiameter
		y[i] = p.Distance
	}
	if stat.Variance(x, nil) == 0 {
		return InverseModel{}, fmt.Errorf("%w: all pixel diameters are equal", ErrInsufficientSamples)
	}

	// LinearRegression returns the intercept first, then the slope.
	b, a := stat.LinearRegression(x, y, nil, false)
	return InverseModel{A: a, B: b}, nil
}

// FitPinhole derives a focal length from every pair and averages them.
func FitPinhole(pairs []Pair, realDiameter float64) (PinholeModel, error) {
	if len(pairs) == 0 {
		return PinholeModel{}, fmt.Errorf("%w: pinhole fit needs at least 1 pair", ErrInsufficientSamples)
	}
	focals := make([]float64, len(pairs))
	for i, p := range pairs {
		f, err := FocalLength(p.PixelDiameter, p.Distance, realDiameter)
		if err != nil {
			return PinholeModel{}, fmt.Errorf("pair %d: %w", i, err)
		}
		focals[i] = f
	}
	return PinholeModel{Focal: stat.Mean(focals, nil), RealDiameter: realDiameter}, nil
}

// Evaluation scores an estimator against measured pairs.
type Evaluation struct {
	Model     string    `json:"model"`
	MAE       float64   `json:"mae"`
	Predicted []float64 `json:"predicted"`
}

// MeanAbsoluteError returns the mean |estimate - distance| over pairs.
func MeanAbsoluteError(est Estimator, pairs []Pair) (Evaluation, error) {
	if len(pairs) == 0 {
		return Evaluation{}, fmt.Errorf("%w: no pairs to evaluate", ErrInsufficientSamples)
	}
	ev := Evaluation{Model: est.Name(), Predicted: make([]float64, len(pairs))}
	errs := make([]float64, len(pairs))
	for i, p := range pairs {
		d, err := est.Estimate(p.PixelDiameter)
		if err != nil {
			return Evaluation{}, fmt.Errorf("pair %d: %w", i, err)
		}
		ev.Predicted[i] = d
		errs[i] = math.Abs(d - p.Distance)
	}
	ev.MAE = stat.Mean(errs, nil)
	return ev, nil
}
