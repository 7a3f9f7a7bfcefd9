package segment

import (
	"fmt"
	"image"
	"math"

	"balltrack/internal/config"
	"balltrack/pkg/geometry"

	"gocv.io/x/gocv"
)

// Tolerance is the half-width added around a sampled HSV mean.
type Tolerance struct {
	Hue, Sat, Val float64
}

// DefaultTolerance is a moderate window for sampling a ball held in front
// of the camera.
var DefaultTolerance = Tolerance{Hue: 10, Sat: 60, Val: 60}

// SampleHSV returns the mean HSV of a region of a BGR frame, after the same
// median filter used by Segment.
func (s *Segmenter) SampleHSV(frame gocv.Mat, region geometry.RectInt) ([3]float64, error) {
	var mean [3]float64
	if frame.Empty() {
		return mean, fmt.Errorf("empty frame")
	}
	if frame.Channels() != 3 {
		return mean, fmt.Errorf("expected 3-channel BGR frame, got %d channels", frame.Channels())
	}

	rect := region.Image().Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if rect.Empty() {
		return mean, fmt.Errorf("sample region %v outside frame", region)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.MedianBlur(frame, &blurred, s.params.MedianKernel)

	roi := blurred.Region(rect)
	defer roi.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorBGRToHSV)

	var total [3]float64
	count := 0
	for y := 0; y < hsv.Rows(); y++ {
		for x := 0; x < hsv.Cols(); x++ {
			for c := 0; c < 3; c++ {
				total[c] += float64(hsv.GetUCharAt(y, x*3+c))
			}
			count++
		}
	}
	for c := range mean {
		mean[c] = total[c] / float64(count)
	}
	return mean, nil
}

// SampleRange samples the mean HSV of a region and builds a ColorRange
// around it. Hue windows that cross 0/180 are split by NewHueRange.
func (s *Segmenter) SampleRange(frame gocv.Mat, region geometry.RectInt, label config.Label, tol Tolerance) (config.ColorRange, error) {
	mean, err := s.SampleHSV(frame, region)
	if err != nil {
		return config.ColorRange{}, err
	}
	return RangeAround(label, mean, tol), nil
}

// RangeAround builds an HSV ColorRange centered on (h, s, v).
func RangeAround(label config.Label, hsv [3]float64, tol Tolerance) config.ColorRange {
	hMin := wrapHue(hsv[0] - tol.Hue)
	hMax := wrapHue(hsv[0] + tol.Hue)
	if tol.Hue*2 >= config.MaxHue {
		hMin, hMax = 0, config.MaxHue
	}
	return config.NewHueRange(label,
		hMin, hMax,
		clampF(hsv[1]-tol.Sat, 0, 255), clampF(hsv[1]+tol.Sat, 0, 255),
		clampF(hsv[2]-tol.Val, 0, 255), clampF(hsv[2]+tol.Val, 0, 255))
}

func wrapHue(h float64) float64 {
	h = math.Mod(math.Round(h), config.MaxHue+1)
	if h < 0 {
		h += config.MaxHue + 1
	}
	return h
}

func clampF(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// Coverage is the fraction of a region claimed by each color mask and by
// their union.
type Coverage struct {
	ByLabel map[config.Label]float64
	Any     float64
}

// Coverage segments frame and measures how much of region each mask covers.
func (s *Segmenter) Coverage(frame gocv.Mat, region geometry.RectInt) (Coverage, error) {
	rect := region.Image().Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if rect.Empty() {
		return Coverage{}, fmt.Errorf("coverage region %v outside frame", region)
	}
	masks, err := s.Segment(frame)
	if err != nil {
		return Coverage{}, err
	}
	defer masks.Close()

	area := float64(rect.Dx() * rect.Dy())
	fraction := func(m gocv.Mat) float64 {
		roi := m.Region(rect)
		defer roi.Close()
		return float64(gocv.CountNonZero(roi)) / area
	}

	cov := Coverage{ByLabel: make(map[config.Label]float64, len(masks))}
	for _, m := range masks {
		cov.ByLabel[m.Label] = fraction(m.Mat)
	}
	union := masks.Combined()
	defer union.Close()
	cov.Any = fraction(union)
	return cov, nil
}
