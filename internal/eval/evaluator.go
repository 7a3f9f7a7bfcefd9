// Package eval scores detection strategies against a fixed ground-truth
// circle over a wall-clock trial window.
package eval

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"balltrack/internal/config"
	"balltrack/internal/detect"
	"balltrack/internal/timeutil"
	"balltrack/pkg/geometry"
)

// GroundTruth is the known circle a detection must reproduce.
type GroundTruth struct {
	Center    geometry.Point2D `json:"center"`
	Radius    float64          `json:"radius"`
	Tolerance float64          `json:"tolerance"`
	RatioMin  float64          `json:"ratio_min"`
	RatioMax  float64          `json:"ratio_max"`
}

// GroundTruthFromConfig builds the ground truth from the eval section.
func GroundTruthFromConfig(p config.EvalParams) GroundTruth {
	return GroundTruth{
		Center:    geometry.Point2D{X: p.CenterX, Y: p.CenterY},
		Radius:    p.Radius,
		Tolerance: p.Tolerance,
		RatioMin:  p.RatioMin,
		RatioMax:  p.RatioMax,
	}
}

// Matches reports whether c's center lies within Tolerance of the truth
// center and its radius within [RatioMin, RatioMax] times the truth radius.
// Both bounds are inclusive.
func (g GroundTruth) Matches(c detect.Candidate) bool {
	if g.Center.Distance(c.Center) > g.Tolerance {
		return false
	}
	lo := g.Radius * g.RatioMin
	hi := g.Radius * g.RatioMax
	return c.Radius >= lo && c.Radius <= hi
}

// Report is the outcome of a trial. Rates are percentages of TotalFrames.
type Report struct {
	TotalFrames int                `json:"total_frames"`
	Hits        map[string]int     `json:"hits"`
	Rates       map[string]float64 `json:"rates"`
	Strategies  []string           `json:"strategies"`
	Elapsed     time.Duration      `json:"elapsed"`
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "frames=%d elapsed=%s", r.TotalFrames, r.Elapsed.Round(time.Millisecond))
	for _, s := range r.Strategies {
		fmt.Fprintf(&b, " %s=%.2f%% (%d)", s, r.Rates[s], r.Hits[s])
	}
	return b.String()
}

// Evaluator accumulates hits per strategy during a timed trial. It is owned
// by the frame loop and is not safe for concurrent use.
type Evaluator struct {
	truth GroundTruth
	clock timeutil.Clock

	started  bool
	start    time.Time
	duration time.Duration
	total    int
	hits     map[string]int
}

// New creates an Evaluator. A nil clock uses the wall clock.
func New(truth GroundTruth, clock timeutil.Clock) *Evaluator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Evaluator{
		truth: truth,
		clock: clock,
		hits:  make(map[string]int),
	}
}

// StartTrial resets the counters and opens a window of duration d.
func (e *Evaluator) StartTrial(d time.Duration) {
	e.started = true
	e.start = e.clock.Now()
	e.duration = d
	e.total = 0
	e.hits = make(map[string]int)
}

// IsRunning reports whether the trial window is still open.
func (e *Evaluator) IsRunning() bool {
	return e.started && e.clock.Since(e.start) < e.duration
}

// RecordFrame counts one frame and one hit for every strategy whose
// detection matches the ground truth. A nil detection is a miss. Frames
// arriving after the window closes are ignored and RecordFrame returns false.
func (e *Evaluator) RecordFrame(detections map[string]*detect.Candidate) bool {
	if !e.IsRunning() {
		return false
	}
	e.total++
	for name, c := range detections {
		if _, ok := e.hits[name]; !ok {
			e.hits[name] = 0
		}
		if c != nil && e.truth.Matches(*c) {
			e.hits[name]++
		}
	}
	return true
}

// Report returns the counters and hit rates so far.
func (e *Evaluator) Report() Report {
	r := Report{
		TotalFrames: e.total,
		Hits:        make(map[string]int, len(e.hits)),
		Rates:       make(map[string]float64, len(e.hits)),
	}
	if e.started {
		r.Elapsed = e.clock.Since(e.start)
		if r.Elapsed > e.duration {
			r.Elapsed = e.duration
		}
	}
	for name, h := range e.hits {
		r.Strategies = append(r.Strategies, name)
		r.Hits[name] = h
		if e.total > 0 {
			r.Rates[name] = float64(h) / float64(e.total) * 100
		} else {
			r.Rates[name] = 0
		}
	}
	sort.Strings(r.Strategies)
	return r
}
