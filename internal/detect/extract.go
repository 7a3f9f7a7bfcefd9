package detect

import (
	"fmt"
	"math"
	"sync"

	"balltrack/internal/config"
	"balltrack/internal/segment"
	"balltrack/pkg/geometry"

	"gocv.io/x/gocv"
)

// Extractor runs the circle extraction algorithms with fixed parameters.
type Extractor struct {
	contour  config.ContourParams
	hough    config.HoughParams
	parallel bool
}

// NewExtractor creates an Extractor from the contour and Hough sections of cfg.
func NewExtractor(cfg config.Config) *Extractor {
	return &Extractor{
		contour:  cfg.Contour,
		hough:    cfg.Hough,
		parallel: cfg.Parallel,
	}
}

// Extract returns every qualifying circle in mask. gray is the grayscale
// frame and is only read by Hough. An empty or all-zero mask, or an empty
// gray frame for Hough, yields no candidates and no error.
func (e *Extractor) Extract(mask segment.Mask, algo Algorithm, gray gocv.Mat) ([]Candidate, error) {
	if mask.Mat.Empty() || gocv.CountNonZero(mask.Mat) == 0 {
		return nil, nil
	}
	switch algo {
	case ContourFit:
		return e.contourFit(mask), nil
	case Hough:
		if gray.Empty() {
			return nil, nil
		}
		if gray.Rows() != mask.Mat.Rows() || gray.Cols() != mask.Mat.Cols() {
			return nil, fmt.Errorf("hough: gray %dx%d does not match mask %dx%d",
				gray.Cols(), gray.Rows(), mask.Mat.Cols(), mask.Mat.Rows())
		}
		return e.houghCircles(mask, gray), nil
	default:
		return nil, fmt.Errorf("unknown algorithm %d", int(algo))
	}
}

// contourFit finds external boundaries and fits a minimum enclosing circle
// to each one whose area reaches MinArea.
func (e *Extractor) contourFit(mask segment.Mask) []Candidate {
	src := mask.Mat
	if e.contour.EdgePass {
		edges := gocv.NewMat()
		defer edges.Close()
		gocv.Canny(mask.Mat, &edges, float32(e.contour.CannyLow), float32(e.contour.CannyHigh))
		src = edges
	}

	contours := gocv.FindContours(src, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var candidates []Candidate
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < e.contour.MinArea {
			continue
		}
		x, y, r := gocv.MinEnclosingCircle(contour)
		candidates = append(candidates, Candidate{
			Center:      geometry.Point2D{X: float64(x), Y: float64(y)},
			Radius:      float64(r),
			Label:       mask.Label,
			Source:      ContourFit,
			SupportArea: area,
		})
	}
	return candidates
}

// houghCircles runs the circle Hough transform on gray restricted to the
// mask. The transform reports no area, so SupportArea is the circle area
// and the same MinArea filter applies.
func (e *Extractor) houghCircles(mask segment.Mask, gray gocv.Mat) []Candidate {
	masked := gocv.NewMat()
	defer masked.Close()
	gocv.BitwiseAnd(gray, mask.Mat, &masked)

	circles := gocv.NewMat()
	defer circles.Close()

	gocv.HoughCirclesWithParams(masked, &circles, gocv.HoughGradient,
		e.hough.DP, e.hough.MinDist,
		e.hough.Param1, e.hough.Param2,
		e.hough.MinRadius, e.hough.MaxRadius)

	if circles.Empty() || circles.Cols() == 0 {
		return nil
	}

	var candidates []Candidate
	for i := 0; i < circles.Cols(); i++ {
		r := float64(circles.GetFloatAt(0, i*3+2))
		area := math.Pi * r * r
		if area < e.contour.MinArea {
			continue
		}
		candidates = append(candidates, Candidate{
			Center: geometry.Point2D{
				X: float64(circles.GetFloatAt(0, i*3)),
				Y: float64(circles.GetFloatAt(0, i*3+1)),
			},
			Radius:      r,
			Label:       mask.Label,
			Source:      Hough,
			SupportArea: area,
		})
	}
	return candidates
}

// ExtractAll runs every algorithm over every mask and concatenates the
// results in mask order, then algorithm order. With parallel extraction
// each (mask, algorithm) pair runs in its own goroutine but results are
// still assembled in that fixed order, so selection ties break the same way.
func (e *Extractor) ExtractAll(masks segment.Masks, algos []Algorithm, gray gocv.Mat) ([]Candidate, error) {
	n := len(masks) * len(algos)
	slots := make([][]Candidate, n)
	errs := make([]error, n)

	run := func(idx int) {
		mask := masks[idx/len(algos)]
		algo := algos[idx%len(algos)]
		slots[idx], errs[idx] = e.Extract(mask, algo, gray)
	}

	if e.parallel && n > 1 {
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				run(idx)
			}(i)
		}
		wg.Wait()
	} else {
		for i := 0; i < n; i++ {
			run(i)
		}
	}

	var all []Candidate
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			return nil, fmt.Errorf("%s/%s: %w", masks[i/len(algos)].Label, algos[i%len(algos)], errs[i])
		}
		all = append(all, slots[i]...)
	}
	return all, nil
}
