// Package pipeline wires segmentation, extraction, selection and distance
// estimation into a per-frame process and a frame loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"balltrack/internal/calib"
	"balltrack/internal/config"
	"balltrack/internal/detect"
	"balltrack/internal/distance"
	"balltrack/internal/frame"
	"balltrack/internal/monitoring"
	"balltrack/internal/segment"

	"gocv.io/x/gocv"
)

// StrategyPooled names the selection over every algorithm's candidates.
const StrategyPooled = "pooled"

// Result is the outcome of one frame.
type Result struct {
	Candidates []detect.Candidate // in color then algorithm order
	Selected   *detect.Candidate  // nil when nothing qualified
	Distance   *float64           // nil when no estimator or no selection
}

// Strategies returns the best candidate per algorithm plus the pooled
// selection, keyed by name. Missing detections map to nil.
func (r Result) Strategies(algos []detect.Algorithm) map[string]*detect.Candidate {
	out := make(map[string]*detect.Candidate, len(algos)+1)
	for _, a := range algos {
		if best, ok := detect.Select(detect.BySource(r.Candidates, a)); ok {
			out[a.String()] = &best
		} else {
			out[a.String()] = nil
		}
	}
	out[StrategyPooled] = r.Selected
	return out
}

// WithMinRadius drops candidates below minRadius and reselects. The
// distance estimate is not carried over.
func (r Result) WithMinRadius(minRadius float64) Result {
	out := Result{Candidates: detect.FilterMinRadius(r.Candidates, minRadius)}
	if best, ok := detect.Select(out.Candidates); ok {
		out.Selected = &best
	}
	return out
}

// Pipeline processes frames with a fixed configuration.
type Pipeline struct {
	segmenter   *segment.Segmenter
	extractor   *detect.Extractor
	algos       []detect.Algorithm
	undistorter *calib.Undistorter
	estimator   distance.Estimator
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithUndistorter removes lens distortion before segmentation in Run.
func WithUndistorter(u *calib.Undistorter) Option {
	return func(p *Pipeline) { p.undistorter = u }
}

// WithEstimator sets the distance model applied to the selected circle.
func WithEstimator(e distance.Estimator) Option {
	return func(p *Pipeline) { p.estimator = e }
}

// New creates a Pipeline. When the configuration carries a known focal
// length a pinhole estimator is installed unless an option overrides it.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	algos, err := detect.ParseAlgorithms(cfg.Algorithms)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		segmenter: segment.New(cfg),
		extractor: detect.NewExtractor(cfg),
		algos:     algos,
	}
	if cfg.Distance.FocalLength > 0 {
		p.estimator = distance.PinholeModel{Focal: cfg.Distance.FocalLength, RealDiameter: cfg.Distance.RealDiameter}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Algorithms returns the extraction algorithms in run order.
func (p *Pipeline) Algorithms() []detect.Algorithm {
	return p.algos
}

func (p *Pipeline) needsGray() bool {
	for _, a := range p.algos {
		if a == detect.Hough {
			return true
		}
	}
	return false
}

// Process runs segmentation, extraction and selection on one BGR frame
// that has already been undistorted. No detection is not an error.
func (p *Pipeline) Process(img gocv.Mat) (Result, error) {
	masks, err := p.segmenter.Segment(img)
	if err != nil {
		return Result{}, err
	}
	defer masks.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if p.needsGray() {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}

	candidates, err := p.extractor.ExtractAll(masks, p.algos, gray)
	if err != nil {
		return Result{}, err
	}

	res := Result{Candidates: candidates}
	best, ok := detect.Select(candidates)
	if !ok {
		return res, nil
	}
	res.Selected = &best

	if p.estimator != nil {
		if d, err := p.estimator.Estimate(best.Diameter()); err == nil {
			res.Distance = &d
		}
	}
	return res, nil
}

// ProcessStrategies runs Process and returns the per-strategy selections
// alongside the full result, as the accuracy evaluator consumes them.
func (p *Pipeline) ProcessStrategies(img gocv.Mat) (map[string]*detect.Candidate, Result, error) {
	res, err := p.Process(img)
	if err != nil {
		return nil, Result{}, err
	}
	return res.Strategies(p.algos), res, nil
}

// ErrStop may be returned by a Sink to end Run cleanly.
var ErrStop = errors.New("stop requested")

// Sink consumes each processed frame. It must not retain img.
type Sink interface {
	Show(img gocv.Mat, res Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(img gocv.Mat, res Result) error

// Show implements Sink.
func (f SinkFunc) Show(img gocv.Mat, res Result) error {
	return f(img, res)
}

// Tee fans each frame out to several sinks in order, stopping at the
// first error.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(img gocv.Mat, res Result) error {
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Show(img, res); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats counts what Run processed.
type Stats struct {
	Frames     int
	Detections int
}

// Run reads frames until the source ends, the sink asks to stop or ctx is
// cancelled. End of stream and ErrStop return a nil error; cancellation
// returns ctx.Err(). Each frame is finished before the next is read.
func (p *Pipeline) Run(ctx context.Context, src frame.Source, sink Sink) (Stats, error) {
	var stats Stats

	raw := gocv.NewMat()
	defer raw.Close()
	fixed := gocv.NewMat()
	defer fixed.Close()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if err := src.Read(&raw); err != nil {
			if errors.Is(err, frame.ErrEndOfStream) {
				monitoring.Logf("pipeline: end of stream after %d frames", stats.Frames)
				return stats, nil
			}
			return stats, fmt.Errorf("read frame %d: %w", stats.Frames, err)
		}

		img := raw
		if p.undistorter != nil {
			if err := p.undistorter.Undistort(raw, &fixed); err != nil {
				return stats, fmt.Errorf("undistort frame %d: %w", stats.Frames, err)
			}
			img = fixed
		}

		res, err := p.Process(img)
		if err != nil {
			return stats, fmt.Errorf("process frame %d: %w", stats.Frames, err)
		}
		stats.Frames++
		if res.Selected != nil {
			stats.Detections++
		}

		if sink == nil {
			continue
		}
		if err := sink.Show(img, res); err != nil {
			if errors.Is(err, ErrStop) {
				return stats, nil
			}
			return stats, err
		}
	}
}
