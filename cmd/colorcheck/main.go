// Command colorcheck samples the box at the center of the frame and prints
// the HSV range that would segment it, optionally saving it into a
// configuration. It needs no display.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"balltrack/internal/config"
	"balltrack/internal/frame"
	"balltrack/internal/segment"
	"balltrack/pkg/colorutil"
	"balltrack/pkg/geometry"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
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
	labelName := flag.String("label", "red", "Color label to sample (red, blue, yellow)")
	box := flag.Int("box", 40, "Side of the centered sample box in pixels")
	frames := flag.Int("frames", 30, "Number of frames to average")
	tolH := flag.Float64("tol-h", segment.DefaultTolerance.Hue, "Hue half-width")
	tolS := flag.Float64("tol-s", segment.DefaultTolerance.Sat, "Saturation half-width")
	tolV := flag.Float64("tol-v", segment.DefaultTolerance.Val, "Value half-width")
	rgb := flag.String("rgb", "", "Build the range around this \"r,g,b\" color instead of sampling frames")
	write := flag.String("write", "", "Save the configuration with the new range to this path")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	label, err := config.ParseLabel(*labelName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid label: %v\n", err)
		return 1
	}
	tol := segment.Tolerance{Hue: *tolH, Sat: *tolS, Val: *tolV}

	var mean [3]float64
	last := gocv.NewMat()
	defer last.Close()
	if *rgb != "" {
		r, g, b, err := parseRGB(*rgb)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -rgb: %v\n", err)
			return 1
		}
		mean[0], mean[1], mean[2] = colorutil.RGBToHSV(r, g, b)
	} else {
		src, err := frame.Open(*dir, frame.CameraOptions{Device: *device, Width: *width, Height: *height})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open frame source: %v\n", err)
			return 1
		}
		defer src.Close()

		mean, err = sampleFrames(segment.New(cfg), src, &last, *box, *frames)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Sampling failed: %v\n", err)
			return 1
		}
	}

	rng := segment.RangeAround(label, mean, tol)
	r, g, b := colorutil.HSVToRGB(mean[0], mean[1], mean[2])
	fmt.Printf("Mean HSV: %.1f %.1f %.1f (#%02x%02x%02x)\n", mean[0], mean[1], mean[2], r, g, b)
	fmt.Printf("Range %s [%s]: %v\n", rng.Label, rng.Space, rng.Bounds)

	updated := cfg.WithColor(rng)
	if err := updated.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Sampled range is unusable: %v\n", err)
		return 1
	}

	if !last.Empty() {
		region := geometry.CenteredRect(last.Cols()/2, last.Rows()/2, *box)
		single, err := segment.New(cfg).SampleRange(last, region, label, tol)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Sampling last frame failed: %v\n", err)
			return 1
		}
		fmt.Printf("Last frame alone: %v\n", single.Bounds)

		cov, err := segment.New(updated).Coverage(last, region)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Coverage check failed: %v\n", err)
			return 1
		}
		fmt.Printf("Box coverage: %s %.0f%%, any color %.0f%%\n", label, 100*cov.ByLabel[label], 100*cov.Any)
	}

	if *write != "" {
		if err := updated.Save(*write); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save configuration: %v\n", err)
			return 1
		}
		fmt.Printf("Saved %s\n", *write)
	}
	return 0
}

// sampleFrames averages the centered box HSV over up to n frames, leaving
// the last frame read in last.
func sampleFrames(seg *segment.Segmenter, src frame.Source, last *gocv.Mat, box, n int) ([3]float64, error) {
	var channels [3][]float64
	for i := 0; i < n; i++ {
		if err := src.Read(last); err != nil {
			if errors.Is(err, frame.ErrEndOfStream) {
				break
			}
			return [3]float64{}, err
		}
		region := geometry.CenteredRect(last.Cols()/2, last.Rows()/2, box)
		hsv, err := seg.SampleHSV(*last, region)
		if err != nil {
			return [3]float64{}, err
		}
		for c := range channels {
			channels[c] = append(channels[c], hsv[c])
		}
	}
	if len(channels[0]) == 0 {
		return [3]float64{}, errors.New("no frames read")
	}
	var mean [3]float64
	for c := range mean {
		mean[c] = stat.Mean(channels[c], nil)
	}
	fmt.Printf("Sampled %d frames\n", len(channels[0]))
	return mean, nil
}

func parseRGB(s string) (r, g, b float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("want r,g,b, got %q", s)
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return 0, 0, 0, fmt.Errorf("component %q is not 0-255", p)
		}
		vals[i] = float64(v)
	}
	return vals[0], vals[1], vals[2], nil
}
