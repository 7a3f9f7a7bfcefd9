// Package config holds the load-once configuration surface of the ball
// tracker: color tables, segmentation and extraction thresholds, checkerboard
// geometry, evaluation ground truth and distance calibration constants.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SegmentParams controls denoising and mask cleanup.
type SegmentParams struct {
	MedianKernel   int `json:"median_kernel"`   // odd aperture, >= 3
	OpenKernel     int `json:"open_kernel"`     // elliptical structuring element size
	OpenIterations int `json:"open_iterations"` // erosions followed by as many dilations
}

// ContourParams controls the Contour-Fit extractor.
type ContourParams struct {
	MinArea   float64 `json:"min_area"`
	EdgePass  bool    `json:"edge_pass"` // run Canny on the mask before tracing boundaries
	CannyLow  float64 `json:"canny_low"`
	CannyHigh float64 `json:"canny_high"`
}

// HoughParams controls the circle Hough transform.
type HoughParams struct {
	DP        float64 `json:"dp"`
	MinDist   float64 `json:"min_dist"`
	Param1    float64 `json:"param1"`
	Param2    float64 `json:"param2"`
	MinRadius int     `json:"min_radius"`
	MaxRadius int     `json:"max_radius"`
}

// GridParams describes the calibration checkerboard.
type GridParams struct {
	Cols         int     `json:"cols"`        // inner corners per row
	Rows         int     `json:"rows"`        // inner corners per column
	SquareSize   float64 `json:"square_size"` // millimetres
	SubPixWindow int     `json:"subpix_window"`
	MaxIter      int     `json:"max_iter"`
	Epsilon      float64 `json:"epsilon"`
	Alpha        float64 `json:"alpha"` // free scaling for the optimal new camera matrix
}

// EvalParams is the ground-truth circle used by accuracy trials.
type EvalParams struct {
	CenterX       float64 `json:"center_x"`
	CenterY       float64 `json:"center_y"`
	Radius        float64 `json:"radius"`
	Tolerance     float64 `json:"tolerance"` // max center offset in pixels
	RatioMin      float64 `json:"ratio_min"`
	RatioMax      float64 `json:"ratio_max"`
	TrialDuration string  `json:"trial_duration"` // duration string like "10s"
}

// DistanceParams configures focal-length calibration and distance estimation.
type DistanceParams struct {
	RealDiameter  float64 `json:"real_diameter"`  // metres
	KnownDistance float64 `json:"known_distance"` // metres, used during focal calibration
	FocalSamples  int     `json:"focal_samples"`
	MinRadius     float64 `json:"min_radius"`   // pixel noise floor for focal samples
	FocalLength   float64 `json:"focal_length"` // pixels, 0 = unknown
}

// Config is the root configuration value. It is built once at start-up and
// passed explicitly to each component.
type Config struct {
	Colors         []ColorRange   `json:"colors"`
	Algorithms     []string       `json:"algorithms"`
	Parallel       bool           `json:"parallel"`
	Segment        SegmentParams  `json:"segment"`
	Contour        ContourParams  `json:"contour"`
	Hough          HoughParams    `json:"hough"`
	Grid           GridParams     `json:"grid"`
	Eval           EvalParams     `json:"eval"`
	Distance       DistanceParams `json:"distance"`
	IntrinsicsPath string         `json:"intrinsics_path,omitempty"`
}

// Default returns the configuration of the reference deployment.
// Color tables are per-deployment calibration data; these values suit the
// indoor lighting they were tuned under and should be overridden by file.
func Default() Config {
	return Config{
		Colors: []ColorRange{
			NewHueRange(LabelRed, 165, 175, 105, 250, 115, 255),
			NewHueRange(LabelBlue, 90, 120, 90, 225, 100, 255),
			NewHueRange(LabelYellow, 10, 40, 70, 135, 140, 255),
		},
		Algorithms: []string{"contour", "hough"},
		Segment: SegmentParams{
			MedianKernel:   5,
			OpenKernel:     5,
			OpenIterations: 2,
		},
		Contour: ContourParams{
			MinArea:   300,
			CannyLow:  50,
			CannyHigh: 150,
		},
		Hough: HoughParams{
			DP:        1.2,
			MinDist:   50,
			Param1:    100,
			Param2:    30,
			MinRadius: 10,
			MaxRadius: 150,
		},
		Grid: GridParams{
			Cols:         7,
			Rows:         7,
			SquareSize:   25,
			SubPixWindow: 11,
			MaxIter:      30,
			Epsilon:      0.001,
			Alpha:        1,
		},
		Eval: EvalParams{
			CenterX:       640,
			CenterY:       360,
			Radius:        100,
			Tolerance:     50,
			RatioMin:      0.8,
			RatioMax:      1.2,
			TrialDuration: "10s",
		},
		Distance: DistanceParams{
			RealDiameter:  0.065,
			KnownDistance: 0.5,
			FocalSamples:  30,
			MinRadius:     10,
		},
	}
}

// Load reads a JSON configuration file. Fields omitted from the file keep
// their Default values, so partial files are safe. A "colors" entry
// replaces the whole default table.
func Load(path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	// Decode colors into a fresh slice so file entries never merge into
	// the default table element by element.
	cfg := Default()
	defaultColors := cfg.Colors
	cfg.Colors = nil
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if cfg.Colors == nil {
		cfg.Colors = defaultColors
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns Default when path is empty.
func LoadOrDefault(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Save writes the configuration as indented JSON.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that every parameter is usable.
func (c Config) Validate() error {
	if len(c.Colors) == 0 {
		return fmt.Errorf("colors: at least one color range is required")
	}
	seen := make(map[Label]bool)
	for _, r := range c.Colors {
		if seen[r.Label] {
			return fmt.Errorf("colors: duplicate label %s", r.Label)
		}
		seen[r.Label] = true
		if err := r.Validate(); err != nil {
			return fmt.Errorf("colors: %w", err)
		}
	}

	if len(c.Algorithms) == 0 {
		return fmt.Errorf("algorithms: at least one algorithm is required")
	}
	for _, a := range c.Algorithms {
		switch strings.ToLower(a) {
		case "contour", "hough":
		default:
			return fmt.Errorf("algorithms: unknown algorithm %q", a)
		}
	}

	s := c.Segment
	if s.MedianKernel < 3 || s.MedianKernel%2 == 0 {
		return fmt.Errorf("segment.median_kernel must be odd and >= 3, got %d", s.MedianKernel)
	}
	if s.OpenKernel < 1 {
		return fmt.Errorf("segment.open_kernel must be >= 1, got %d", s.OpenKernel)
	}
	if s.OpenIterations < 0 {
		return fmt.Errorf("segment.open_iterations must be >= 0, got %d", s.OpenIterations)
	}

	if c.Contour.MinArea < 0 {
		return fmt.Errorf("contour.min_area must be >= 0, got %g", c.Contour.MinArea)
	}
	if c.Contour.EdgePass && c.Contour.CannyLow > c.Contour.CannyHigh {
		return fmt.Errorf("contour.canny_low %g exceeds canny_high %g", c.Contour.CannyLow, c.Contour.CannyHigh)
	}

	h := c.Hough
	if h.DP <= 0 {
		return fmt.Errorf("hough.dp must be positive, got %g", h.DP)
	}
	if h.MinDist <= 0 {
		return fmt.Errorf("hough.min_dist must be positive, got %g", h.MinDist)
	}
	if h.Param1 <= 0 || h.Param2 <= 0 {
		return fmt.Errorf("hough.param1 and hough.param2 must be positive")
	}
	if h.MinRadius < 0 || h.MaxRadius < h.MinRadius {
		return fmt.Errorf("hough radius window [%d, %d] is invalid", h.MinRadius, h.MaxRadius)
	}

	g := c.Grid
	if g.Cols < 2 || g.Rows < 2 {
		return fmt.Errorf("grid must have at least 2x2 inner corners, got %dx%d", g.Cols, g.Rows)
	}
	if g.SquareSize <= 0 {
		return fmt.Errorf("grid.square_size must be positive, got %g", g.SquareSize)
	}
	if g.SubPixWindow < 1 || g.MaxIter < 1 || g.Epsilon <= 0 {
		return fmt.Errorf("grid sub-pixel refinement parameters are invalid")
	}
	if g.Alpha < 0 || g.Alpha > 1 {
		return fmt.Errorf("grid.alpha must be in [0, 1], got %g", g.Alpha)
	}

	e := c.Eval
	if e.Radius <= 0 || e.Tolerance < 0 {
		return fmt.Errorf("eval ground truth radius/tolerance is invalid")
	}
	if e.RatioMin <= 0 || e.RatioMax < e.RatioMin {
		return fmt.Errorf("eval ratio band [%g, %g] is invalid", e.RatioMin, e.RatioMax)
	}
	if _, err := e.Duration(); err != nil {
		return err
	}

	d := c.Distance
	if d.RealDiameter <= 0 {
		return fmt.Errorf("distance.real_diameter must be positive, got %g", d.RealDiameter)
	}
	if d.KnownDistance <= 0 {
		return fmt.Errorf("distance.known_distance must be positive, got %g", d.KnownDistance)
	}
	if d.FocalSamples < 1 {
		return fmt.Errorf("distance.focal_samples must be >= 1, got %d", d.FocalSamples)
	}
	if d.MinRadius < 0 || d.FocalLength < 0 {
		return fmt.Errorf("distance.min_radius and distance.focal_length must be >= 0")
	}
	return nil
}

// Duration parses TrialDuration.
func (e EvalParams) Duration() (time.Duration, error) {
	d, err := time.ParseDuration(e.TrialDuration)
	if err != nil {
		return 0, fmt.Errorf("eval.trial_duration: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("eval.trial_duration must be positive, got %s", d)
	}
	return d, nil
}

// Range returns the color range for a label.
func (c Config) Range(l Label) (ColorRange, bool) {
	for _, r := range c.Colors {
		if r.Label == l {
			return r, true
		}
	}
	return ColorRange{}, false
}

// WithColors returns a copy of the config using the given color table.
func (c Config) WithColors(ranges ...ColorRange) Config {
	c.Colors = append([]ColorRange(nil), ranges...)
	return c
}

// WithColor returns a copy of the config with r replacing the range of the
// same label, or appended when the label is new.
func (c Config) WithColor(r ColorRange) Config {
	colors := append([]ColorRange(nil), c.Colors...)
	for i := range colors {
		if colors[i].Label == r.Label {
			colors[i] = r
			c.Colors = colors
			return c
		}
	}
	c.Colors = append(colors, r)
	return c
}

// WithAlgorithms returns a copy of the config running only the named
// extraction algorithms, in the given order.
func (c Config) WithAlgorithms(names ...string) Config {
	c.Algorithms = append([]string(nil), names...)
	return c
}

// WithFocalLength returns a copy of the config with a known focal length in pixels.
func (c Config) WithFocalLength(f float64) Config {
	c.Distance.FocalLength = f
	return c
}
