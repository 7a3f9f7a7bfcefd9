package main

import (
	"os"
	"path/filepath"
	"testing"

	"balltrack/internal/config"
	"balltrack/internal/segment"
	"balltrack/pkg/colorutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRGB(t *testing.T) {
	r, g, b, err := parseRGB("200, 30,0")
	require.NoError(t, err)
	assert.Equal(t, [3]float64{200, 30, 0}, [3]float64{r, g, b})

	for _, bad := range []string{"", "1,2", "1,2,3,4", "256,0,0", "-1,0,0", "a,b,c"} {
		_, _, _, err := parseRGB(bad)
		assert.Error(t, err, bad)
	}
}

func TestRunWritesRangeForRGB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colors.json")
	args := os.Args
	defer func() { os.Args = args }()
	os.Args = []string{"colorcheck", "-label", "blue", "-rgb", "30,60,200", "-write", path}

	require.Equal(t, 0, run())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	got, ok := cfg.Range(config.LabelBlue)
	require.True(t, ok)
	var hsv [3]float64
	hsv[0], hsv[1], hsv[2] = colorutil.RGBToHSV(30, 60, 200)
	assert.Equal(t, segment.RangeAround(config.LabelBlue, hsv, segment.DefaultTolerance).Bounds, got.Bounds)
	_, ok = cfg.Range(config.LabelRed)
	assert.True(t, ok, "other labels kept")
}
