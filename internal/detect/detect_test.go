package detect

import (
	"image"
	"image/color"
	"testing"

	"balltrack/internal/config"
	"balltrack/internal/segment"
	"balltrack/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

func newMask(label config.Label, w, h int) segment.Mask {
	return segment.Mask{
		Label: label,
		Mat:   gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8U),
	}
}

func fillDisk(m *gocv.Mat, cx, cy, r int, c color.RGBA) {
	gocv.Circle(m, image.Pt(cx, cy), r, c, -1)
}

// grayWithDisks draws the same disks as the mask at a mid-gray intensity.
func grayWithDisks(w, h int, disks ...[3]int) gocv.Mat {
	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8U)
	for _, d := range disks {
		fillDisk(&gray, d[0], d[1], d[2], color.RGBA{R: 200, G: 200, B: 200, A: 255})
	}
	return gray
}

func TestExtractEmptyMask(t *testing.T) {
	mask := newMask(config.LabelRed, 320, 240)
	defer mask.Mat.Close()
	gray := grayWithDisks(320, 240)
	defer gray.Close()

	ex := NewExtractor(config.Default())
	for _, algo := range []Algorithm{ContourFit, Hough} {
		got, err := ex.Extract(mask, algo, gray)
		require.NoError(t, err, algo.String())
		assert.Empty(t, got, algo.String())
	}

	// Hough on an empty mask does not need a gray frame
	got, err := ex.Extract(mask, Hough, gocv.NewMat())
	require.NoError(t, err)
	assert.Empty(t, got)

	unset := segment.Mask{Label: config.LabelRed, Mat: gocv.NewMat()}
	defer unset.Mat.Close()
	got, err = ex.Extract(unset, ContourFit, gray)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestContourFitSingleDisk(t *testing.T) {
	mask := newMask(config.LabelBlue, 320, 240)
	defer mask.Mat.Close()
	fillDisk(&mask.Mat, 150, 110, 40, white)

	got, err := NewExtractor(config.Default()).Extract(mask, ContourFit, gocv.Mat{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.InDelta(t, 150, c.Center.X, 1.0)
	assert.InDelta(t, 110, c.Center.Y, 1.0)
	assert.InDelta(t, 40, c.Radius, 1.5)
	assert.Equal(t, config.LabelBlue, c.Label)
	assert.Equal(t, ContourFit, c.Source)
	assert.Greater(t, c.SupportArea, 300.0)
	assert.InDelta(t, 80, c.Diameter(), 3)
}

func TestContourFitMinArea(t *testing.T) {
	mask := newMask(config.LabelRed, 320, 240)
	defer mask.Mat.Close()
	fillDisk(&mask.Mat, 80, 120, 30, white)  // area ~2800
	fillDisk(&mask.Mat, 240, 120, 8, white)  // area ~200, below 300
	fillDisk(&mask.Mat, 160, 40, 15, white)  // area ~700

	got, err := NewExtractor(config.Default()).Extract(mask, ContourFit, gocv.Mat{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.GreaterOrEqual(t, c.SupportArea, 300.0)
		assert.Greater(t, c.Radius, 10.0)
	}
}

func TestContourFitEdgePassSameQualifyingSet(t *testing.T) {
	mask := newMask(config.LabelRed, 320, 240)
	defer mask.Mat.Close()
	fillDisk(&mask.Mat, 80, 120, 30, white)
	fillDisk(&mask.Mat, 240, 120, 8, white)
	fillDisk(&mask.Mat, 220, 50, 20, white)

	plain, err := NewExtractor(config.Default()).Extract(mask, ContourFit, gocv.Mat{})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Contour.EdgePass = true
	edged, err := NewExtractor(cfg).Extract(mask, ContourFit, gocv.Mat{})
	require.NoError(t, err)

	require.Len(t, plain, 2)
	require.Len(t, edged, len(plain))
	for _, p := range plain {
		found := false
		for _, e := range edged {
			if p.Center.Distance(e.Center) < 2 {
				found = true
				assert.InDelta(t, p.Radius, e.Radius, 2)
			}
		}
		assert.True(t, found, "edge pass lost %v", p)
	}
}

func TestHoughSingleDisk(t *testing.T) {
	mask := newMask(config.LabelYellow, 320, 240)
	defer mask.Mat.Close()
	fillDisk(&mask.Mat, 160, 120, 50, white)
	gray := grayWithDisks(320, 240, [3]int{160, 120, 50})
	defer gray.Close()

	got, err := NewExtractor(config.Default()).Extract(mask, Hough, gray)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	best, ok := Select(got)
	require.True(t, ok)
	assert.InDelta(t, 160, best.Center.X, 4)
	assert.InDelta(t, 120, best.Center.Y, 4)
	assert.InDelta(t, 50, best.Radius, 5)
	assert.Equal(t, Hough, best.Source)
	assert.Equal(t, config.LabelYellow, best.Label)
	assert.InDelta(t, 3.14159*best.Radius*best.Radius, best.SupportArea, 1)
}

func TestHoughGrayInput(t *testing.T) {
	mask := newMask(config.LabelRed, 100, 100)
	defer mask.Mat.Close()
	fillDisk(&mask.Mat, 50, 50, 20, white)

	ex := NewExtractor(config.Default())
	empty := gocv.NewMat()
	defer empty.Close()
	got, err := ex.Extract(mask, Hough, empty)
	require.NoError(t, err)
	assert.Empty(t, got, "empty gray frame is no detection")

	small := grayWithDisks(50, 50)
	defer small.Close()
	_, err = ex.Extract(mask, Hough, small)
	assert.Error(t, err)

	_, err = ex.Extract(mask, Algorithm(7), small)
	assert.Error(t, err)
}

func TestExtractAllOrder(t *testing.T) {
	red := newMask(config.LabelRed, 320, 240)
	defer red.Mat.Close()
	blue := newMask(config.LabelBlue, 320, 240)
	defer blue.Mat.Close()
	fillDisk(&red.Mat, 80, 120, 30, white)
	fillDisk(&blue.Mat, 240, 120, 30, white)
	gray := grayWithDisks(320, 240, [3]int{80, 120, 30}, [3]int{240, 120, 30})
	defer gray.Close()

	masks := segment.Masks{red, blue}
	algos := []Algorithm{ContourFit, Hough}

	seq, err := NewExtractor(config.Default()).ExtractAll(masks, algos, gray)
	require.NoError(t, err)
	require.NotEmpty(t, seq)

	// label-major, algorithm-minor
	assert.Equal(t, config.LabelRed, seq[0].Label)
	assert.Equal(t, ContourFit, seq[0].Source)
	assert.Equal(t, config.LabelBlue, seq[len(seq)-1].Label)
	lastLabel := config.LabelRed
	for _, c := range seq {
		assert.GreaterOrEqual(t, int(c.Label), int(lastLabel))
		lastLabel = c.Label
	}

	cfg := config.Default()
	cfg.Parallel = true
	par, err := NewExtractor(cfg).ExtractAll(masks, algos, gray)
	require.NoError(t, err)
	assert.Equal(t, seq, par)

	// equal contour radii: the red disk comes first and wins
	contours := BySource(seq, ContourFit)
	require.Len(t, contours, 2)
	best, ok := Select(contours)
	require.True(t, ok)
	assert.Equal(t, config.LabelRed, best.Label)
}

func TestExtractAllPropagatesErrors(t *testing.T) {
	red := newMask(config.LabelRed, 100, 100)
	defer red.Mat.Close()
	fillDisk(&red.Mat, 50, 50, 20, white)

	small := grayWithDisks(50, 50)
	defer small.Close()
	_, err := NewExtractor(config.Default()).ExtractAll(segment.Masks{red}, []Algorithm{Hough}, small)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "red/hough")
}

func TestSelect(t *testing.T) {
	_, ok := Select(nil)
	assert.False(t, ok)

	cands := []Candidate{
		{Center: geometry.Point2D{X: 1}, Radius: 10, Label: config.LabelRed},
		{Center: geometry.Point2D{X: 2}, Radius: 25, Label: config.LabelBlue},
		{Center: geometry.Point2D{X: 3}, Radius: 25, Label: config.LabelYellow},
		{Center: geometry.Point2D{X: 4}, Radius: 5, Label: config.LabelRed},
	}
	best, ok := Select(cands)
	require.True(t, ok)
	assert.Equal(t, 2.0, best.Center.X, "first of equal radii wins")

	// swapping the tied pair swaps the winner
	cands[1], cands[2] = cands[2], cands[1]
	best, _ = Select(cands)
	assert.Equal(t, 3.0, best.Center.X)

	one, ok := Select(cands[3:])
	require.True(t, ok)
	assert.Equal(t, 5.0, one.Radius)
}

func TestFilterMinRadius(t *testing.T) {
	cands := []Candidate{{Radius: 9.9}, {Radius: 10}, {Radius: 30}}
	got := FilterMinRadius(cands, 10)
	require.Len(t, got, 2)
	assert.Equal(t, 10.0, got[0].Radius)
}

func TestParseAlgorithms(t *testing.T) {
	got, err := ParseAlgorithms([]string{"hough", "Contour"})
	require.NoError(t, err)
	assert.Equal(t, []Algorithm{Hough, ContourFit}, got)

	_, err = ParseAlgorithms([]string{"ransac"})
	assert.Error(t, err)

	text, err := Hough.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "hough", string(text))
}

func TestParseAlgorithmAgreesWithConfig(t *testing.T) {
	for _, name := range []string{"contour", "Contour", "HOUGH", "contourfit", "contour-fit", "sift", ""} {
		_, parseErr := ParseAlgorithm(name)
		validateErr := config.Default().WithAlgorithms(name).Validate()
		assert.Equal(t, parseErr == nil, validateErr == nil, "algorithm %q", name)
	}
}
