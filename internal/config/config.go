package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"virtual-hair-salon/internal/core"
	"virtual-hair-salon/internal/layers"
)

// Config is the complete application configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Camera    CameraConfig    `yaml:"camera"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	Render    RenderConfig    `yaml:"render"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// CameraConfig selects the capture device
type CameraConfig struct {
	Device string  `yaml:"device"` // index ("0"), file path or stream URL
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	FPS    float64 `yaml:"fps"`
}

// SegmenterConfig describes the segmentation model
type SegmenterConfig struct {
	ModelPath    string    `yaml:"model_path"`
	ConfigPath   string    `yaml:"config_path"` // optional network description for two-file formats
	Backend      string    `yaml:"backend"`
	Target       string    `yaml:"target"`
	InputWidth   int       `yaml:"input_width"`
	InputHeight  int       `yaml:"input_height"`
	Scale        float64   `yaml:"scale"`
	Mean         []float64 `yaml:"mean"`
	SwapRB       bool      `yaml:"swap_rb"`
	Layout       string    `yaml:"layout"`       // auto, nchw, nhwc
	RunningMode  string    `yaml:"running_mode"` // VIDEO, IMAGE
	Refine       []string  `yaml:"refine"`       // e.g. [opening, closing]
	RefineKernel int       `yaml:"refine_kernel"`
}

// OverlayConfig holds the initial tint
type OverlayConfig struct {
	Color                  string  `yaml:"color"`
	Opacity                float64 `yaml:"opacity"`
	RestartOnOpacityChange bool    `yaml:"restart_on_opacity_change"`
}

// RenderConfig sizes and paces the output surface
type RenderConfig struct {
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	FPS     float64 `yaml:"fps"`
	Scaling string  `yaml:"scaling"` // nearest, bilinear
}

// SnapshotConfig controls photo export
type SnapshotConfig struct {
	Dir      string `yaml:"dir"`
	FileName string `yaml:"file_name"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Camera: CameraConfig{
			Device: "0",
			Width:  core.DefaultWidth,
			Height: core.DefaultHeight,
			FPS:    30,
		},
		Segmenter: SegmenterConfig{
			ModelPath:   "models/hair_segmenter.tflite",
			Backend:     "default",
			Target:      "cpu",
			InputWidth:  512,
			InputHeight: 512,
			Scale:       1.0 / 255.0,
			SwapRB:      true,
			Layout:      "auto",
			RunningMode: "VIDEO",
		},
		Overlay: OverlayConfig{
			Color:                  "#3bb3ff",
			Opacity:                0.2,
			RestartOnOpacityChange: true,
		},
		Render: RenderConfig{
			Width:   core.DefaultWidth,
			Height:  core.DefaultHeight,
			FPS:     30,
			Scaling: "bilinear",
		},
		Snapshot: SnapshotConfig{FileName: "hair-color-photo.png"},
	}
}

// Load reads a YAML file over the defaults and validates the result. An empty path
// returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, Validate(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

var (
	logLevels    = []string{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"}
	logFormats   = []string{"text", "json"}
	layouts      = []string{"auto", "nchw", "nhwc"}
	runningModes = []string{"VIDEO", "IMAGE"}
)

// Validate reports every problem in cfg at once.
func Validate(cfg *Config) error {
	var err error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			err = multierr.Append(err, errors.Errorf(format, args...))
		}
	}

	check(oneOf(strings.ToLower(cfg.Logging.Level), logLevels), "logging.level %q is not one of %v", cfg.Logging.Level, logLevels)
	check(oneOf(strings.ToLower(cfg.Logging.Format), logFormats), "logging.format %q is not one of %v", cfg.Logging.Format, logFormats)

	check(strings.TrimSpace(cfg.Camera.Device) != "", "camera.device must be set")
	check(cfg.Camera.Width >= 0 && cfg.Camera.Height >= 0, "camera size %dx%d is negative", cfg.Camera.Width, cfg.Camera.Height)
	check(cfg.Camera.FPS >= 0, "camera.fps must not be negative")

	check(strings.TrimSpace(cfg.Segmenter.ModelPath) != "", "segmenter.model_path must be set")
	check(cfg.Segmenter.InputWidth > 0 && cfg.Segmenter.InputHeight > 0,
		"segmenter input size %dx%d must be positive", cfg.Segmenter.InputWidth, cfg.Segmenter.InputHeight)
	check(cfg.Segmenter.Scale > 0, "segmenter.scale must be positive")
	check(len(cfg.Segmenter.Mean) == 0 || len(cfg.Segmenter.Mean) == 3, "segmenter.mean needs 3 values, got %d", len(cfg.Segmenter.Mean))
	check(oneOf(strings.ToLower(cfg.Segmenter.Layout), layouts), "segmenter.layout %q is not one of %v", cfg.Segmenter.Layout, layouts)
	check(oneOf(strings.ToUpper(cfg.Segmenter.RunningMode), runningModes),
		"segmenter.running_mode %q is not one of %v", cfg.Segmenter.RunningMode, runningModes)
	check(cfg.Segmenter.RefineKernel >= 0 && cfg.Segmenter.RefineKernel <= 15, "segmenter.refine_kernel must be within [0,15]")

	_, colorErr := core.ParseHexColor(cfg.Overlay.Color)
	check(colorErr == nil, "overlay.color %q is not a hex color", cfg.Overlay.Color)
	check(cfg.Overlay.Opacity >= 0 && cfg.Overlay.Opacity <= 1, "overlay.opacity %v must be within [0,1]", cfg.Overlay.Opacity)

	check(cfg.Render.Width > 0 && cfg.Render.Height > 0, "render size %dx%d must be positive", cfg.Render.Width, cfg.Render.Height)
	check(cfg.Render.FPS > 0 && cfg.Render.FPS <= 120, "render.fps %v must be within (0,120]", cfg.Render.FPS)
	_, scalingErr := layers.ParseScaling(cfg.Render.Scaling)
	check(scalingErr == nil, "render.scaling %q is not nearest or bilinear", cfg.Render.Scaling)

	return err
}

// FrameInterval is the render loop period for Render.FPS.
func (c *Config) FrameInterval() time.Duration {
	if c.Render.FPS <= 0 {
		return core.DefaultFrameInterval
	}
	return time.Duration(float64(time.Second) / c.Render.FPS)
}

// TintColor returns the parsed overlay color.
func (c *Config) TintColor() (core.RGB, error) {
	return core.ParseHexColor(c.Overlay.Color)
}

func oneOf(v string, options []string) bool {
	for _, o := range options {
		if strings.EqualFold(v, o) {
			return true
		}
	}
	return false
}
