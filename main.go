// Package main provides the live ball tracker: frames from a camera or an
// image directory are segmented, the largest ball is selected and its
// distance estimated, and the result is shown in a window.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"balltrack/internal/calib"
	"balltrack/internal/config"
	"balltrack/internal/frame"
	"balltrack/internal/pipeline"
	"balltrack/internal/render"
	"balltrack/internal/version"
)

const appTitle = "Ball Tracker"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to JSON configuration (defaults built in)")
	device := flag.String("device", "0", "Capture device index or path")
	dir := flag.String("dir", "", "Replay image files from this directory instead of a camera")
	width := flag.Int("width", 1280, "Capture width")
	height := flag.Int("height", 720, "Capture height")
	fps := flag.Float64("fps", 30, "Capture frame rate")
	intrinsicsPath := flag.String("intrinsics", "", "Calibration artifact for undistortion (overrides config)")
	reference := flag.Bool("reference-intrinsics", false, "Undistort with the built-in reference calibration when no artifact is configured")
	focal := flag.Float64("focal", 0, "Focal length in pixels for distance estimates (overrides config)")
	headless := flag.Bool("headless", false, "Do not open a display window")
	showAll := flag.Bool("candidates", false, "Outline every candidate, not only the selection")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s %s", appTitle, version.Get())

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	if *focal > 0 {
		cfg = cfg.WithFocalLength(*focal)
	}
	if *intrinsicsPath != "" {
		cfg.IntrinsicsPath = *intrinsicsPath
	}

	log.Printf("Algorithms: %v (parallel=%v)", cfg.Algorithms, cfg.Parallel)
	for _, r := range cfg.Colors {
		log.Printf("  %s [%s]: %v", r.Label, r.Space, r.Bounds)
	}

	var opts []pipeline.Option
	if cfg.IntrinsicsPath != "" || *reference {
		u, err := calib.OpenUndistorter(cfg.IntrinsicsPath, cfg.Grid.Alpha)
		if err != nil {
			log.Printf("Failed to load intrinsics: %v", err)
			return 1
		}
		defer u.Close()
		opts = append(opts, pipeline.WithUndistorter(u))
		in := u.Intrinsics()
		log.Printf("Undistorting with %s (fx=%.2f, rms=%.4f)", in.ID, in.FocalLength(), in.RMS)
		if cfg.Distance.FocalLength == 0 {
			cfg = cfg.WithFocalLength(in.FocalLength())
		}
	}
	if cfg.Distance.FocalLength > 0 {
		log.Printf("Distance: pinhole f=%.2f px, diameter %.3f m", cfg.Distance.FocalLength, cfg.Distance.RealDiameter)
	} else {
		log.Printf("Distance: disabled (no focal length)")
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		log.Printf("Failed to build pipeline: %v", err)
		return 1
	}

	src, err := frame.Open(*dir, frame.CameraOptions{Device: *device, Width: *width, Height: *height, FPS: *fps})
	if err != nil {
		log.Printf("Failed to open frame source: %v", err)
		return 1
	}
	defer src.Close()

	sink := render.Discard
	if !*headless {
		ropts := render.DefaultOptions()
		ropts.Candidates = *showAll
		win := render.NewWindow(appTitle, ropts, 1)
		defer win.Close()
		sink = win
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := p.Run(ctx, src, sink)
	log.Printf("Processed %d frames, %d with a detection", stats.Frames, stats.Detections)
	if err != nil && ctx.Err() == nil {
		log.Printf("Tracking stopped: %v", err)
		return 1
	}
	return 0
}
