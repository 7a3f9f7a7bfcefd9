package calib

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"balltrack/pkg/geometry"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// ArtifactVersion is the current intrinsics file format version.
const ArtifactVersion = 1

// Intrinsics is the camera matrix and distortion coefficients
// (k1, k2, p1, p2, k3) produced by a calibration run. It is the one piece
// of state persisted across runs.
type Intrinsics struct {
	Version      int           `json:"version"`
	ID           string        `json:"id"`
	Created      time.Time     `json:"created"`
	ImageSize    geometry.Size `json:"image_size"`
	CameraMatrix [3][3]float64 `json:"camera_matrix"`
	Distortion   []float64     `json:"distortion"`
	RMS          float64       `json:"rms"`          // reprojection error in pixels
	Observations int           `json:"observations"` // checkerboard captures used
}

// NewIntrinsics wraps a camera matrix and distortion vector in a fresh
// artifact with a new ID.
func NewIntrinsics(k [3][3]float64, dist []float64, size geometry.Size) *Intrinsics {
	return &Intrinsics{
		Version:      ArtifactVersion,
		ID:           uuid.NewString(),
		Created:      time.Now().UTC(),
		ImageSize:    size,
		CameraMatrix: k,
		Distortion:   append([]float64(nil), dist...),
	}
}

// ReferenceIntrinsics returns the calibration of the camera used when the
// tracker was first deployed. OpenUndistorter falls back to it for runs
// without a calibration file.
func ReferenceIntrinsics() *Intrinsics {
	return NewIntrinsics(
		[3][3]float64{
			{750.10059546, 0, 704.54913907},
			{0, 746.54075486, 445.7714058},
			{0, 0, 1},
		},
		[]float64{0.04739503, -0.07422041, 0.00880341, 0.0123376, 0.02295108},
		geometry.Size{Width: 1280, Height: 720},
	)
}

// FocalLength returns the horizontal focal length in pixels.
func (in *Intrinsics) FocalLength() float64 {
	return in.CameraMatrix[0][0]
}

// Validate rejects camera matrices that cannot come from a real solve:
// non-positive focal lengths, a bottom row other than (0, 0, 1), singular
// or badly conditioned matrices and non-finite distortion.
func (in *Intrinsics) Validate() error {
	k := in.CameraMatrix
	if k[0][0] <= 0 || k[1][1] <= 0 {
		return fmt.Errorf("camera matrix focal lengths must be positive, got fx=%g fy=%g", k[0][0], k[1][1])
	}
	if k[2][0] != 0 || k[2][1] != 0 || k[2][2] != 1 {
		return fmt.Errorf("camera matrix bottom row must be (0, 0, 1), got %v", k[2])
	}

	dense := mat.NewDense(3, 3, []float64{
		k[0][0], k[0][1], k[0][2],
		k[1][0], k[1][1], k[1][2],
		k[2][0], k[2][1], k[2][2],
	})
	if det := mat.Det(dense); math.Abs(det) < 1e-9 {
		return fmt.Errorf("camera matrix is singular (det=%g)", det)
	}
	if cond := mat.Cond(dense, 2); math.IsInf(cond, 0) || cond > 1e12 {
		return fmt.Errorf("camera matrix is ill-conditioned (cond=%g)", cond)
	}

	if len(in.Distortion) == 0 {
		return fmt.Errorf("distortion coefficients missing")
	}
	for i, d := range in.Distortion {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("distortion coefficient %d is not finite", i)
		}
	}
	return nil
}

// cameraMat returns the camera matrix as a 3x3 CV_64F Mat. The caller owns it.
func (in *Intrinsics) cameraMat() gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, in.CameraMatrix[r][c])
		}
	}
	return m
}

// distMat returns the distortion coefficients as a 1xN CV_64F Mat.
func (in *Intrinsics) distMat() gocv.Mat {
	m := gocv.NewMatWithSize(1, len(in.Distortion), gocv.MatTypeCV64F)
	for i, d := range in.Distortion {
		m.SetDoubleAt(0, i, d)
	}
	return m
}

// intrinsicsFromMats copies solver output into an artifact.
func intrinsicsFromMats(k, dist gocv.Mat, size geometry.Size) *Intrinsics {
	var km [3][3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			km[r][c] = k.GetDoubleAt(r, c)
		}
	}
	n := dist.Rows() * dist.Cols()
	coeffs := make([]float64, n)
	for i := 0; i < n; i++ {
		if dist.Rows() == 1 {
			coeffs[i] = dist.GetDoubleAt(0, i)
		} else {
			coeffs[i] = dist.GetDoubleAt(i, 0)
		}
	}
	return NewIntrinsics(km, coeffs, size)
}

// LoadIntrinsics reads and validates an intrinsics artifact.
func LoadIntrinsics(path string) (*Intrinsics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read intrinsics: %w", err)
	}

	var in Intrinsics
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse intrinsics: %w", err)
	}
	if in.Version > ArtifactVersion {
		return nil, fmt.Errorf("intrinsics version %d is newer than supported %d", in.Version, ArtifactVersion)
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid intrinsics %s: %w", path, err)
	}
	return &in, nil
}

// Save writes the artifact as indented JSON.
func (in *Intrinsics) Save(path string) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
