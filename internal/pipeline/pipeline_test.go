package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"balltrack/internal/calib"
	"balltrack/internal/config"
	"balltrack/internal/detect"
	"balltrack/internal/distance"
	"balltrack/internal/frame"
	"balltrack/pkg/colorutil"
	"balltrack/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func newFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC3)
}

func drawBall(m *gocv.Mat, cx, cy, r int, h, s, v float64) {
	red, green, blue := colorutil.HSVToRGB(h, s, v)
	gocv.Circle(m, image.Pt(cx, cy), r, color.RGBA{R: red, G: green, B: blue}, -1)
}

// twoBalls draws a large red ball and a small blue one.
func twoBalls() gocv.Mat {
	m := newFrame()
	drawBall(&m, 100, 120, 40, 170, 200, 220)
	drawBall(&m, 240, 100, 20, 105, 180, 220)
	return m
}

func TestProcessSelectsLargest(t *testing.T) {
	img := twoBalls()
	defer img.Close()

	cfg := config.Default().WithFocalLength(455)
	p, err := New(cfg)
	require.NoError(t, err)

	res, err := p.Process(img)
	require.NoError(t, err)
	require.NotNil(t, res.Selected)
	assert.Equal(t, config.LabelRed, res.Selected.Label)
	assert.InDelta(t, 40, res.Selected.Radius, 3)
	assert.InDelta(t, 100, res.Selected.Center.X, 3)

	require.NotNil(t, res.Distance)
	want := cfg.Distance.RealDiameter * 455 / res.Selected.Diameter()
	assert.InDelta(t, want, *res.Distance, 1e-12)

	labels := map[config.Label]bool{}
	for _, c := range res.Candidates {
		labels[c.Label] = true
	}
	assert.True(t, labels[config.LabelBlue], "blue ball is a candidate too")

	strategies := res.Strategies(p.Algorithms())
	require.Contains(t, strategies, "contour")
	require.Contains(t, strategies, "hough")
	require.Contains(t, strategies, StrategyPooled)
	require.NotNil(t, strategies["contour"])
	assert.Equal(t, detect.ContourFit, strategies["contour"].Source)
	assert.Equal(t, res.Selected, strategies[StrategyPooled])

	again, res2, err := p.ProcessStrategies(img)
	require.NoError(t, err)
	assert.Equal(t, strategies, again)
	assert.Equal(t, res.Candidates, res2.Candidates)
}

func TestProcessNoDetection(t *testing.T) {
	img := newFrame()
	defer img.Close()

	p, err := New(config.Default().WithFocalLength(455))
	require.NoError(t, err)
	res, err := p.Process(img)
	require.NoError(t, err)
	assert.Nil(t, res.Selected)
	assert.Nil(t, res.Distance)
	assert.Empty(t, res.Candidates)

	s := res.Strategies(p.Algorithms())
	assert.Nil(t, s["contour"])
	assert.Nil(t, s[StrategyPooled])
}

func TestProcessWithoutFocalHasNoDistance(t *testing.T) {
	img := twoBalls()
	defer img.Close()

	p, err := New(config.Default().WithAlgorithms("contour"))
	require.NoError(t, err)
	res, err := p.Process(img)
	require.NoError(t, err)
	require.NotNil(t, res.Selected)
	assert.Nil(t, res.Distance)
	for _, c := range res.Candidates {
		assert.Equal(t, detect.ContourFit, c.Source)
	}
}

func TestWithEstimatorOverrides(t *testing.T) {
	img := twoBalls()
	defer img.Close()

	inv := distance.InverseModel{A: 48.5, B: -0.02}
	p, err := New(config.Default().WithFocalLength(455), WithEstimator(inv))
	require.NoError(t, err)
	res, err := p.Process(img)
	require.NoError(t, err)
	require.NotNil(t, res.Distance)
	want, _ := inv.Estimate(res.Selected.Diameter())
	assert.InDelta(t, want, *res.Distance, 1e-12)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Segment.MedianKernel = 2
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRunUntilEndOfStream(t *testing.T) {
	a := twoBalls()
	defer a.Close()
	blank := newFrame()
	defer blank.Close()

	p, err := New(config.Default())
	require.NoError(t, err)

	var seen []*detect.Candidate
	sink := SinkFunc(func(img gocv.Mat, res Result) error {
		assert.False(t, img.Empty())
		seen = append(seen, res.Selected)
		return nil
	})

	stats, err := p.Run(context.Background(), frame.NewMats(a, blank, a), sink)
	require.NoError(t, err)
	assert.Equal(t, Stats{Frames: 3, Detections: 2}, stats)
	require.Len(t, seen, 3)
	assert.NotNil(t, seen[0])
	assert.Nil(t, seen[1])
	assert.NotNil(t, seen[2])
}

func TestRunStopsOnSinkRequest(t *testing.T) {
	a := twoBalls()
	defer a.Close()

	p, err := New(config.Default())
	require.NoError(t, err)

	calls := 0
	stop := SinkFunc(func(gocv.Mat, Result) error {
		calls++
		return ErrStop
	})
	other := SinkFunc(func(gocv.Mat, Result) error {
		t.Fatal("tee continued past stop")
		return nil
	})

	stats, err := p.Run(context.Background(), frame.NewMats(a, a, a), Tee(nil, stop, other))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Frames)
	assert.Equal(t, 1, calls)
}

func TestRunCancelled(t *testing.T) {
	a := twoBalls()
	defer a.Close()

	p, err := New(config.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sink := SinkFunc(func(gocv.Mat, Result) error {
		cancel()
		return nil
	})
	stats, err := p.Run(ctx, frame.NewMats(a, a, a), sink)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, stats.Frames)
}

type failingSource struct{}

func (failingSource) Read(*gocv.Mat) error { return errors.New("device unplugged") }
func (failingSource) Close() error         { return nil }

func TestRunSourceError(t *testing.T) {
	p, err := New(config.Default())
	require.NoError(t, err)
	_, err = p.Run(context.Background(), failingSource{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
}

func TestRunWithUndistorter(t *testing.T) {
	a := twoBalls()
	defer a.Close()

	in := calib.NewIntrinsics(
		[3][3]float64{{300, 0, 160}, {0, 300, 120}, {0, 0, 1}},
		[]float64{0, 0, 0, 0, 0},
		geometry.Size{Width: 320, Height: 240},
	)
	u, err := calib.NewUndistorter(in, 0)
	require.NoError(t, err)
	defer u.Close()

	p, err := New(config.Default().WithAlgorithms("contour"), WithUndistorter(u))
	require.NoError(t, err)

	var got *detect.Candidate
	stats, err := p.Run(context.Background(), frame.NewMats(a), SinkFunc(func(_ gocv.Mat, res Result) error {
		got = res.Selected
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Detections)
	require.NotNil(t, got)
	assert.InDelta(t, 40, got.Radius, 3)
	assert.Equal(t, 1, u.CachedSizes())
}

func TestResultWithMinRadius(t *testing.T) {
	res := Result{Candidates: []detect.Candidate{
		{Radius: 8, Label: config.LabelRed, Source: detect.ContourFit},
		{Radius: 12, Label: config.LabelBlue, Source: detect.Hough},
		{Radius: 30, Label: config.LabelYellow, Source: detect.ContourFit},
	}}
	best, _ := detect.Select(res.Candidates)
	res.Selected = &best

	gated := res.WithMinRadius(10)
	assert.Len(t, gated.Candidates, 2)
	require.NotNil(t, gated.Selected)
	assert.Equal(t, config.LabelYellow, gated.Selected.Label)

	none := res.WithMinRadius(50)
	assert.Empty(t, none.Candidates)
	assert.Nil(t, none.Selected)
	assert.Nil(t, none.Strategies([]detect.Algorithm{detect.Hough})["hough"])
}
