// Package frame supplies BGR frames from capture devices and image files.
package frame

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"balltrack/internal/monitoring"

	"gocv.io/x/gocv"
)

// ErrEndOfStream reports that a source has no more frames. It is a clean
// shutdown signal, not a failure.
var ErrEndOfStream = errors.New("end of stream")

// Source supplies BGR frames on demand.
type Source interface {
	// Read fills dst with the next frame or returns ErrEndOfStream.
	Read(dst *gocv.Mat) error
	Close() error
}

// CameraOptions configures a capture device.
type CameraOptions struct {
	Device string // device index ("0") or path ("/dev/video4")
	Width  int
	Height int
	FPS    float64
}

// Camera reads frames from a video capture device.
type Camera struct {
	vc *gocv.VideoCapture
}

// OpenCamera opens a capture device and applies the requested mode.
func OpenCamera(opts CameraOptions) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(opts.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %s: %w", opts.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %s did not open", opts.Device)
	}
	if opts.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
	}
	if opts.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}
	if opts.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, opts.FPS)
	}
	monitoring.Logf("frame: camera %s opened at %.0fx%.0f", opts.Device,
		vc.Get(gocv.VideoCaptureFrameWidth), vc.Get(gocv.VideoCaptureFrameHeight))
	return &Camera{vc: vc}, nil
}

// Read implements Source. A failed or empty read ends the stream.
func (c *Camera) Read(dst *gocv.Mat) error {
	if ok := c.vc.Read(dst); !ok || dst.Empty() {
		return ErrEndOfStream
	}
	return nil
}

// Close releases the device.
func (c *Camera) Close() error {
	return c.vc.Close()
}

// Open returns a Directory source when dir is set, otherwise the camera.
func Open(dir string, cam CameraOptions) (Source, error) {
	if dir != "" {
		d, err := OpenDirectory(dir)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	c, err := OpenCamera(cam)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Directory replays the image files of a directory in name order.
type Directory struct {
	paths []string
	next  int
}

// OpenDirectory lists the supported image files in dir.
func OpenDirectory(dir string) (*Directory, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsSupportedFormat(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	monitoring.Logf("frame: %d images in %s", len(paths), dir)
	return &Directory{paths: paths}, nil
}

// Len returns the number of frames in the directory.
func (d *Directory) Len() int {
	return len(d.paths)
}

// Read implements Source.
func (d *Directory) Read(dst *gocv.Mat) error {
	if d.next >= len(d.paths) {
		return ErrEndOfStream
	}
	path := d.paths[d.next]
	d.next++

	img, err := LoadImage(path)
	if err != nil {
		return err
	}
	m := ImageToMat(img)
	defer m.Close()
	m.CopyTo(dst)
	return nil
}

// Close implements Source.
func (d *Directory) Close() error {
	return nil
}

// Mats replays in-memory frames. It does not take ownership of them.
type Mats struct {
	frames []gocv.Mat
	next   int
}

// NewMats creates a source over the given frames.
func NewMats(frames ...gocv.Mat) *Mats {
	return &Mats{frames: frames}
}

// Read implements Source.
func (s *Mats) Read(dst *gocv.Mat) error {
	if s.next >= len(s.frames) {
		return ErrEndOfStream
	}
	s.frames[s.next].CopyTo(dst)
	s.next++
	return nil
}

// Close implements Source.
func (s *Mats) Close() error {
	return nil
}
