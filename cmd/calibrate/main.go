// Command calibrate captures checkerboard views and solves for the camera
// intrinsics, writing the calibration artifact as JSON.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"balltrack/internal/calib"
	"balltrack/internal/config"
	"balltrack/internal/frame"

	"gocv.io/x/gocv"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to JSON configuration (defaults built in)")
	device := flag.String("device", "0", "Capture device index or path")
	dir := flag.String("dir", "", "Read checkerboard images from this directory instead of a camera")
	width := flag.Int("width", 1280, "Capture width")
	height := flag.Int("height", 720, "Capture height")
	count := flag.Int("count", 15, "Number of checkerboard views to collect")
	skip := flag.Int("skip", 10, "Frames to skip after each accepted camera view")
	out := flag.String("out", "intrinsics.json", "Output calibration artifact")
	flag.Parse()

	if *count < calib.MinObservations {
		fmt.Fprintf(os.Stderr, "-count must be at least %d\n", calib.MinObservations)
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	src, err := frame.Open(*dir, frame.CameraOptions{Device: *device, Width: *width, Height: *height})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open frame source: %v\n", err)
		return 1
	}
	defer src.Close()

	cal := calib.NewCalibrator(cfg.Grid)
	g := cal.Grid()
	fmt.Printf("Checkerboard: %dx%d inner corners, square %.2f\n", g.Cols, g.Rows, g.SquareSize)
	fmt.Printf("Collecting %d views -> %s\n", *count, *out)

	img := gocv.NewMat()
	defer img.Close()

	frames, skipping := 0, 0
	for cal.Len() < *count {
		if err := src.Read(&img); err != nil {
			if errors.Is(err, frame.ErrEndOfStream) {
				break
			}
			fmt.Fprintf(os.Stderr, "Failed to read frame: %v\n", err)
			return 1
		}
		frames++
		if skipping > 0 {
			skipping--
			continue
		}

		ok, err := cal.AddObservation(img)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Frame %d: %v\n", frames, err)
			return 1
		}
		if ok {
			fmt.Printf("  view %d/%d accepted (frame %d)\n", cal.Len(), *count, frames)
			if *dir == "" {
				skipping = *skip
			}
		}
	}

	fmt.Printf("\nSolving with %d views from %d frames...\n", cal.Len(), frames)
	in, err := cal.Solve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Calibration failed: %v\n", err)
		return 1
	}

	k := in.CameraMatrix
	fmt.Printf("RMS reprojection error: %.4f px\n", in.RMS)
	fmt.Printf("Camera matrix:\n")
	for _, row := range k {
		fmt.Printf("  [%12.4f %12.4f %12.4f]\n", row[0], row[1], row[2])
	}
	fmt.Printf("Distortion: %v\n", in.Distortion)
	fmt.Printf("Focal length: %.4f px\n", in.FocalLength())

	if err := in.Save(*out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save intrinsics: %v\n", err)
		return 1
	}
	fmt.Printf("Saved %s (id %s)\n", *out, in.ID)
	return 0
}
