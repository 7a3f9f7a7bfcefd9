// Package segment turns BGR frames into one binary candidate mask per
// configured color class.
package segment

import (
	"fmt"
	"image"

	"balltrack/internal/config"

	"gocv.io/x/gocv"
)

// Mask is the binary candidate field for one color class. Set pixels are 255.
type Mask struct {
	Label config.Label
	Mat   gocv.Mat
}

// Masks holds one Mask per color range, in color table order.
type Masks []Mask

// Close releases every mask.
func (m Masks) Close() {
	for i := range m {
		m[i].Mat.Close()
	}
}

// Get returns the mask for a label.
func (m Masks) Get(l config.Label) (gocv.Mat, bool) {
	for _, mask := range m {
		if mask.Label == l {
			return mask.Mat, true
		}
	}
	return gocv.Mat{}, false
}

// Combined returns the union of all masks. The caller owns the result.
func (m Masks) Combined() gocv.Mat {
	if len(m) == 0 {
		return gocv.NewMat()
	}
	first := m[0].Mat
	out := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), first.Rows(), first.Cols(), gocv.MatTypeCV8U)
	for _, mask := range m {
		gocv.BitwiseOr(out, mask.Mat, &out)
	}
	return out
}

// Segmenter produces color masks. It is stateless apart from its
// configuration and safe for concurrent use.
type Segmenter struct {
	params config.SegmentParams
	ranges []config.ColorRange
}

// New creates a Segmenter from the configuration's color table and
// segmentation parameters.
func New(cfg config.Config) *Segmenter {
	return &Segmenter{
		params: cfg.Segment,
		ranges: append([]config.ColorRange(nil), cfg.Colors...),
	}
}

// Ranges returns the color table in iteration order.
func (s *Segmenter) Ranges() []config.ColorRange {
	return s.ranges
}

// Segment median-filters the BGR frame, converts it to HSV and thresholds
// each color range, then cleans every mask with a morphological opening.
// The caller must Close the returned masks.
func (s *Segmenter) Segment(frame gocv.Mat) (Masks, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	if frame.Channels() != 3 {
		return nil, fmt.Errorf("expected 3-channel BGR frame, got %d channels", frame.Channels())
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.MedianBlur(frame, &blurred, s.params.MedianKernel)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(blurred, &hsv, gocv.ColorBGRToHSV)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(s.params.OpenKernel, s.params.OpenKernel))
	defer kernel.Close()

	masks := make(Masks, 0, len(s.ranges))
	for _, r := range s.ranges {
		src := hsv
		if r.Space == config.SpaceBGR {
			src = blurred
		}
		mask := rangeMask(src, r.Bounds)
		open(&mask, kernel, s.params.OpenIterations)
		masks = append(masks, Mask{Label: r.Label, Mat: mask})
	}
	return masks, nil
}

// rangeMask ORs the inRange result of every bound.
func rangeMask(src gocv.Mat, bounds []config.Bound) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), src.Rows(), src.Cols(), gocv.MatTypeCV8U)
	part := gocv.NewMat()
	defer part.Close()
	for _, b := range bounds {
		lb := gocv.NewScalar(b.Lower[0], b.Lower[1], b.Lower[2], 0)
		ub := gocv.NewScalar(b.Upper[0], b.Upper[1], b.Upper[2], 0)
		gocv.InRangeWithScalar(src, lb, ub, &part)
		gocv.BitwiseOr(mask, part, &mask)
	}
	return mask
}

// open erodes iterations times and then dilates iterations times, matching
// MORPH_OPEN with an iteration count.
func open(mask *gocv.Mat, kernel gocv.Mat, iterations int) {
	for i := 0; i < iterations; i++ {
		gocv.Erode(*mask, mask, kernel)
	}
	for i := 0; i < iterations; i++ {
		gocv.Dilate(*mask, mask, kernel)
	}
}
