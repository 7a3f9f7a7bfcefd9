// Package calib estimates camera intrinsics from checkerboard captures and
// removes lens distortion from frames.
package calib

import (
	"errors"
	"fmt"
	"image"

	"balltrack/internal/config"
	"balltrack/internal/monitoring"
	"balltrack/pkg/geometry"

	"gocv.io/x/gocv"
)

// MinObservations is the fewest accepted captures Solve will work with.
const MinObservations = 5

// ErrInsufficientData is returned by Solve with fewer than MinObservations captures.
var ErrInsufficientData = errors.New("insufficient calibration data")

// Grid is the checkerboard geometry: inner corner counts and the physical
// side of one square.
type Grid struct {
	Cols       int
	Rows       int
	SquareSize float64
}

// PatternSize returns the inner corner count in OpenCV (cols, rows) order.
func (g Grid) PatternSize() image.Point {
	return image.Pt(g.Cols, g.Rows)
}

// ObjectPoints returns the planar grid corners in row-major order, the
// order FindChessboardCorners reports them in.
func (g Grid) ObjectPoints() []gocv.Point3f {
	pts := make([]gocv.Point3f, 0, g.Cols*g.Rows)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			pts = append(pts, gocv.Point3f{
				X: float32(float64(c) * g.SquareSize),
				Y: float32(float64(r) * g.SquareSize),
				Z: 0,
			})
		}
	}
	return pts
}

// Observation is one accepted checkerboard capture.
type Observation struct {
	ObjectPoints []gocv.Point3f
	ImagePoints  []gocv.Point2f
}

// Calibrator accumulates observations in acquisition order and solves for
// intrinsics. It is owned by a single goroutine.
type Calibrator struct {
	grid         Grid
	window       int
	criteria     gocv.TermCriteria
	size         geometry.Size
	observations []Observation
}

// NewCalibrator creates a Calibrator for the configured checkerboard.
func NewCalibrator(p config.GridParams) *Calibrator {
	return &Calibrator{
		grid:     Grid{Cols: p.Cols, Rows: p.Rows, SquareSize: p.SquareSize},
		window:   p.SubPixWindow,
		criteria: gocv.NewTermCriteria(gocv.MaxIter+gocv.EPS, p.MaxIter, p.Epsilon),
	}
}

// Grid returns the checkerboard geometry.
func (c *Calibrator) Grid() Grid {
	return c.grid
}

// Len returns the number of accepted observations.
func (c *Calibrator) Len() int {
	return len(c.observations)
}

// Observations returns a copy of the accepted observations.
func (c *Calibrator) Observations() []Observation {
	return append([]Observation(nil), c.observations...)
}

// FindCorners locates the checkerboard in a BGR or grayscale frame and
// refines the corners to sub-pixel precision. found is false when the
// pattern is not visible.
func (c *Calibrator) FindCorners(frame gocv.Mat) (corners []gocv.Point2f, found bool, err error) {
	if frame.Empty() {
		return nil, false, fmt.Errorf("empty frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	switch frame.Channels() {
	case 1:
		frame.CopyTo(&gray)
	case 3:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	default:
		return nil, false, fmt.Errorf("unsupported frame with %d channels", frame.Channels())
	}

	cornerMat := gocv.NewMat()
	defer cornerMat.Close()
	flags := gocv.CalibCBAdaptiveThresh + gocv.CalibCBNormalizeImage + gocv.CalibCBFastCheck
	if !gocv.FindChessboardCorners(gray, c.grid.PatternSize(), &cornerMat, flags) {
		return nil, false, nil
	}

	gocv.CornerSubPix(gray, &cornerMat, image.Pt(c.window, c.window), image.Pt(-1, -1), c.criteria)

	vec := gocv.NewPoint2fVectorFromMat(cornerMat)
	defer vec.Close()
	return vec.ToPoints(), true, nil
}

// AddObservation detects the checkerboard in frame and, when found, appends
// an observation. It returns false without changing state otherwise.
func (c *Calibrator) AddObservation(frame gocv.Mat) (bool, error) {
	corners, found, err := c.FindCorners(frame)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	size := geometry.Size{Width: frame.Cols(), Height: frame.Rows()}
	if err := c.AddCorners(size, corners); err != nil {
		return false, err
	}
	return true, nil
}

// AddCorners appends an observation from corners detected elsewhere. All
// observations must come from frames of one size.
func (c *Calibrator) AddCorners(size geometry.Size, corners []gocv.Point2f) error {
	if size.IsZero() {
		return fmt.Errorf("invalid frame size %dx%d", size.Width, size.Height)
	}
	if want := c.grid.Cols * c.grid.Rows; len(corners) != want {
		return fmt.Errorf("expected %d corners, got %d", want, len(corners))
	}
	if !c.size.IsZero() && c.size != size {
		return fmt.Errorf("frame size %dx%d differs from earlier captures %dx%d",
			size.Width, size.Height, c.size.Width, c.size.Height)
	}
	c.size = size
	c.observations = append(c.observations, Observation{
		ObjectPoints: c.grid.ObjectPoints(),
		ImagePoints:  append([]gocv.Point2f(nil), corners...),
	})
	monitoring.Logf("calib: observation %d accepted", len(c.observations))
	return nil
}

// Solve runs the camera calibration over every observation.
func (c *Calibrator) Solve() (*Intrinsics, error) {
	if len(c.observations) < MinObservations {
		return nil, fmt.Errorf("%w: have %d observations, need %d",
			ErrInsufficientData, len(c.observations), MinObservations)
	}

	objPts := gocv.NewPoints3fVector()
	defer objPts.Close()
	imgPts := gocv.NewPoints2fVector()
	defer imgPts.Close()

	for _, obs := range c.observations {
		ov := gocv.NewPoint3fVectorFromPoints(obs.ObjectPoints)
		objPts.Append(ov)
		ov.Close()

		iv := gocv.NewPoint2fVectorFromPoints(obs.ImagePoints)
		imgPts.Append(iv)
		iv.Close()
	}

	k := gocv.NewMat()
	defer k.Close()
	dist := gocv.NewMat()
	defer dist.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	rms := gocv.CalibrateCamera(objPts, imgPts, c.size.Point(), &k, &dist, &rvecs, &tvecs, 0)
	if k.Empty() || dist.Empty() {
		return nil, fmt.Errorf("calibration produced no camera matrix")
	}

	in := intrinsicsFromMats(k, dist, c.size)
	in.RMS = rms
	in.Observations = len(c.observations)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("calibration result rejected: %w", err)
	}
	monitoring.Logf("calib: solved from %d observations, rms=%.4f px, fx=%.2f",
		in.Observations, rms, in.FocalLength())
	return in, nil
}
