package calib

import (
	"fmt"
	"image"
	"sync"

	"balltrack/internal/monitoring"

	"gocv.io/x/gocv"
)

// Undistorter removes lens distortion using fixed intrinsics. The optimal
// new camera matrix is derived once per frame size and cached.
type Undistorter struct {
	intrinsics *Intrinsics
	alpha      float64

	k    gocv.Mat
	dist gocv.Mat

	mu    sync.Mutex
	cache map[image.Point]gocv.Mat
}

// NewUndistorter creates an Undistorter. alpha is the free scaling
// parameter: 0 crops to valid pixels, 1 keeps the whole field of view.
func NewUndistorter(in *Intrinsics, alpha float64) (*Undistorter, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &Undistorter{
		intrinsics: in,
		alpha:      alpha,
		k:          in.cameraMat(),
		dist:       in.distMat(),
		cache:      make(map[image.Point]gocv.Mat),
	}, nil
}

// LoadUndistorter reads a calibration artifact and builds an Undistorter.
func LoadUndistorter(path string, alpha float64) (*Undistorter, error) {
	in, err := LoadIntrinsics(path)
	if err != nil {
		return nil, err
	}
	return NewUndistorter(in, alpha)
}

// OpenUndistorter loads the artifact at path, or falls back to
// ReferenceIntrinsics when path is empty.
func OpenUndistorter(path string, alpha float64) (*Undistorter, error) {
	if path == "" {
		return NewUndistorter(ReferenceIntrinsics(), alpha)
	}
	return LoadUndistorter(path, alpha)
}

// Intrinsics returns the parameters the undistorter was built with.
func (u *Undistorter) Intrinsics() *Intrinsics {
	return u.intrinsics
}

// MatchesCalibration reports whether frames of size were the resolution the
// intrinsics were solved at. An artifact without a recorded size matches any.
func (u *Undistorter) MatchesCalibration(size image.Point) bool {
	cal := u.intrinsics.ImageSize
	return cal.IsZero() || size == cal.Point()
}

// optimalMatrix returns the cached new camera matrix for a frame size. The
// first frame of a size other than the calibrated one logs a warning.
func (u *Undistorter) optimalMatrix(size image.Point) gocv.Mat {
	u.mu.Lock()
	defer u.mu.Unlock()
	if m, ok := u.cache[size]; ok {
		return m
	}
	if !u.MatchesCalibration(size) {
		cal := u.intrinsics.ImageSize
		monitoring.Logf("calib: warning: %dx%d frames undistorted with intrinsics solved at %dx%d",
			size.X, size.Y, cal.Width, cal.Height)
	}
	m, _ := gocv.GetOptimalNewCameraMatrixWithParams(u.k, u.dist, size, u.alpha, size, false)
	u.cache[size] = m
	return m
}

// CachedSizes returns how many frame sizes have a derived matrix.
func (u *Undistorter) CachedSizes() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.cache)
}

// Undistort writes the corrected frame to dst.
func (u *Undistorter) Undistort(src gocv.Mat, dst *gocv.Mat) error {
	if src.Empty() {
		return fmt.Errorf("empty frame")
	}
	newK := u.optimalMatrix(image.Pt(src.Cols(), src.Rows()))
	gocv.Undistort(src, dst, u.k, u.dist, newK)
	return nil
}

// Close releases the matrices held by the undistorter.
func (u *Undistorter) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for size, m := range u.cache {
		m.Close()
		delete(u.cache, size)
	}
	u.k.Close()
	u.dist.Close()
}
