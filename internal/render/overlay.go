// Package render draws pipeline results onto frames and displays them.
package render

import (
	"fmt"
	"image"
	"image/color"

	"balltrack/internal/config"
	"balltrack/internal/detect"
	"balltrack/internal/pipeline"
	"balltrack/pkg/colorutil"

	"gocv.io/x/gocv"
)

// LabelColor returns the overlay color for a ball label.
func LabelColor(l config.Label) color.RGBA {
	switch l {
	case config.LabelRed:
		return colorutil.Red
	case config.LabelBlue:
		return colorutil.Blue
	case config.LabelYellow:
		return colorutil.Yellow
	}
	return colorutil.White
}

// Options controls what Overlay draws.
type Options struct {
	Candidates bool // outline every candidate, not just the selection
	Info       bool // print radius and distance in the corner
}

// DefaultOptions draws the selection with its text panel.
func DefaultOptions() Options {
	return Options{Info: true}
}

// Overlay returns a copy of img annotated with res. img is not modified.
// The caller owns the result.
func Overlay(img gocv.Mat, res pipeline.Result, opts Options) gocv.Mat {
	out := img.Clone()

	if opts.Candidates {
		for _, c := range res.Candidates {
			gocv.Circle(&out, c.Center.Round(), int(c.Radius+0.5), colorutil.Gray, 1)
		}
	}

	if res.Selected != nil {
		drawSelected(&out, *res.Selected)
	}
	if opts.Info {
		drawInfo(&out, res)
	}
	return out
}

func drawSelected(dst *gocv.Mat, c detect.Candidate) {
	col := LabelColor(c.Label)
	center := c.Center.Round()
	gocv.Circle(dst, center, int(c.Radius+0.5), col, 2)
	gocv.Circle(dst, center, 3, colorutil.Green, -1)

	labelPos := image.Point{X: center.X - int(c.Radius), Y: center.Y - int(c.Radius) - 8}
	if labelPos.Y < 15 {
		labelPos.Y = center.Y + int(c.Radius) + 18
	}
	gocv.PutText(dst, fmt.Sprintf("%s %s", c.Label, c.Source), labelPos,
		gocv.FontHersheyPlain, 1.2, col, 2)
}

func drawInfo(dst *gocv.Mat, res pipeline.Result) {
	lines := []string{"no detection"}
	if res.Selected != nil {
		lines = []string{
			fmt.Sprintf("radius: %.1f px", res.Selected.Radius),
			fmt.Sprintf("center: (%.0f, %.0f)", res.Selected.Center.X, res.Selected.Center.Y),
		}
		if res.Distance != nil {
			lines = append(lines, fmt.Sprintf("distance: %.3f m", *res.Distance))
		}
	}
	for i, line := range lines {
		gocv.PutText(dst, line, image.Pt(10, 25+i*22), gocv.FontHersheySimplex, 0.6, colorutil.White, 2)
	}
}
