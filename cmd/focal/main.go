// Command focal measures the focal length in pixels from a ball held at a
// known distance, averaging the detected diameter over many frames.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"balltrack/internal/calib"
	"balltrack/internal/config"
	"balltrack/internal/distance"
	"balltrack/internal/frame"
	"balltrack/internal/pipeline"

	"gocv.io/x/gocv"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to JSON configuration (defaults built in)")
	device := flag.String("device", "0", "Capture device index or path")
	dir := flag.String("dir", "", "Read frames from this directory instead of a camera")
	width := flag.Int("width", 1280, "Capture width")
	height := flag.Int("height", 720, "Capture height")
	known := flag.Float64("distance", 0, "Known ball distance in meters (overrides config)")
	samples := flag.Int("samples", 0, "Number of samples (overrides config)")
	intrinsicsPath := flag.String("intrinsics", "", "Calibration artifact for undistortion")
	reference := flag.Bool("reference-intrinsics", false, "Undistort with the built-in reference calibration when -intrinsics is unset")
	write := flag.String("write", "", "Save the configuration with the measured focal length to this path")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if *known > 0 {
		cfg.Distance.KnownDistance = *known
	}
	if *samples > 0 {
		cfg.Distance.FocalSamples = *samples
	}

	var opts []pipeline.Option
	if *intrinsicsPath != "" || *reference {
		u, err := calib.OpenUndistorter(*intrinsicsPath, cfg.Grid.Alpha)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load intrinsics: %v\n", err)
			return 1
		}
		defer u.Close()
		opts = append(opts, pipeline.WithUndistorter(u))
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		return 1
	}

	src, err := frame.Open(*dir, frame.CameraOptions{Device: *device, Width: *width, Height: *height})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open frame source: %v\n", err)
		return 1
	}
	defer src.Close()

	sampler := distance.NewFocalSampler(cfg.Distance)
	fmt.Printf("Known distance: %.3f m, ball diameter: %.3f m\n", sampler.KnownDistance, sampler.RealDiameter)
	fmt.Printf("Collecting %d samples (min radius %.0f px)...\n", sampler.N, sampler.MinRadius)

	sink := pipeline.SinkFunc(func(_ gocv.Mat, res pipeline.Result) error {
		if res.Selected == nil {
			return nil
		}
		if sampler.Offer(*res.Selected) {
			fmt.Printf("  sample %d/%d: diameter %.2f px\n", sampler.Len(), sampler.N, res.Selected.Diameter())
		}
		if sampler.Done() {
			return pipeline.ErrStop
		}
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stats, err := p.Run(ctx, src, sink)
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Frame loop failed: %v\n", err)
		return 1
	}

	res, err := sampler.Result()
	if errors.Is(err, distance.ErrInsufficientSamples) {
		fmt.Fprintf(os.Stderr, "Source ended after %d frames: %v (%d rejected)\n", stats.Frames, err, sampler.Rejected())
		return 1
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "Focal estimate failed: %v\n", err)
		return 1
	}

	fmt.Printf("\nFrames: %d, samples: %d, rejected: %d\n", stats.Frames, res.Samples, sampler.Rejected())
	fmt.Printf("Mean diameter: %.2f px (stddev %.2f)\n", res.MeanDiameter, res.StdDevDiameter)
	fmt.Printf("Focal length: %.2f px\n", res.FocalLength)

	if *write != "" {
		if err := cfg.WithFocalLength(res.FocalLength).Save(*write); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save configuration: %v\n", err)
			return 1
		}
		fmt.Printf("Saved %s\n", *write)
	}
	return 0
}
