// Command evaldetect runs a timed accuracy trial: a ball is held at a known
// image position and every detection strategy is scored against it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"balltrack/internal/calib"
	"balltrack/internal/config"
	"balltrack/internal/eval"
	"balltrack/internal/frame"
	"balltrack/internal/pipeline"
	"balltrack/internal/render"

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
	duration := flag.Duration("duration", 0, "Trial length (overrides config)")
	minRadius := flag.Float64("min-radius", 0, "Ignore candidates smaller than this radius in pixels")
	intrinsicsPath := flag.String("intrinsics", "", "Calibration artifact for undistortion")
	reference := flag.Bool("reference-intrinsics", false, "Undistort with the built-in reference calibration when -intrinsics is unset")
	show := flag.Bool("show", false, "Display frames while the trial runs")
	jsonOut := flag.String("json", "", "Write the report as JSON to this path")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	trial := *duration
	if trial <= 0 {
		if trial, err = cfg.Eval.Duration(); err != nil {
			fmt.Fprintf(os.Stderr, "Bad trial duration: %v\n", err)
			return 1
		}
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

	truth := eval.GroundTruthFromConfig(cfg.Eval)
	fmt.Printf("Ground truth: center (%.0f, %.0f) radius %.0f, tolerance %.0f px, ratio %.2f-%.2f\n",
		truth.Center.X, truth.Center.Y, truth.Radius, truth.Tolerance, truth.RatioMin, truth.RatioMax)
	fmt.Printf("Strategies: %v + %s, trial %s\n", cfg.Algorithms, pipeline.StrategyPooled, trial)

	var display pipeline.Sink
	if *show {
		win := render.NewWindow("evaldetect", render.DefaultOptions(), 1)
		defer win.Close()
		display = win
	}

	ev := eval.New(truth, nil)
	ev.StartTrial(trial)

	scorer := pipeline.SinkFunc(func(_ gocv.Mat, res pipeline.Result) error {
		if *minRadius > 0 {
			res = res.WithMinRadius(*minRadius)
		}
		if !ev.RecordFrame(res.Strategies(p.Algorithms())) {
			return pipeline.ErrStop
		}
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	if _, err := p.Run(ctx, src, pipeline.Tee(scorer, display)); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Frame loop failed: %v\n", err)
		return 1
	}
	if ev.IsRunning() {
		fmt.Printf("Source ended %s into the trial\n", time.Since(start).Round(time.Millisecond))
	}

	report := ev.Report()
	fmt.Printf("\nFrames: %d in %s\n", report.TotalFrames, report.Elapsed.Round(time.Millisecond))
	fmt.Printf("%-12s %8s %8s\n", "Strategy", "Hits", "Rate")
	for _, s := range report.Strategies {
		fmt.Printf("%-12s %8d %7.2f%%\n", s, report.Hits[s], report.Rates[s])
	}

	if *jsonOut != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal report: %v\n", err)
			return 1
		}
		if err := os.WriteFile(*jsonOut, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
			return 1
		}
	}
	return 0
}
