// Package config loads the luxmeter configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/plantlight/luxmeter"
	"github.com/plantlight/luxmeter/camera"
	"github.com/plantlight/luxmeter/meter"
)

// Drivers are the camera driver names accepted in camera.driver.
var Drivers = []string{"ffmpeg", "gstreamer", "imagesnap"}

// Config represents the luxmeter configuration
type Config struct {
	Camera  CameraConfig  `yaml:"camera"`
	Sampler SamplerConfig `yaml:"sampler"`
	Loop    LoopConfig    `yaml:"loop"`
	Log     LogConfig     `yaml:"log"`
}

// CameraConfig selects the capture driver and device
type CameraConfig struct {
	Driver   string   `yaml:"driver"`   // ffmpeg, gstreamer or imagesnap (default: imagesnap on macOS, gstreamer elsewhere)
	Device   string   `yaml:"device"`   // Device ID, empty picks by facing
	Facing   string   `yaml:"facing"`   // environment or user (default: environment)
	Interval Duration `yaml:"interval"` // How often the capture tool writes a frame, 0 = driver default
	Verbose  bool     `yaml:"verbose"`  // Pass capture tool output through to stderr
}

// SamplerConfig controls frame reduction and pixel sampling
type SamplerConfig struct {
	Width  int    `yaml:"width"`  // Raster width (default: 100)
	Height int    `yaml:"height"` // Raster height (default: 100)
	Filter string `yaml:"filter"` // Resample filter (default: nearest)
	Stride int    `yaml:"stride"` // Sample every n-th pixel (default: 4)
}

// LoopConfig controls the analysis loop
type LoopConfig struct {
	RefreshRate float64 `yaml:"refresh_rate"` // Cycles per second (default: 60)
	Smoothing   int     `yaml:"smoothing"`    // Cycles to average over, 0 = off
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultDriver returns the capture driver for the current OS.
func DefaultDriver() string {
	if runtime.GOOS == "darwin" {
		return "imagesnap"
	}
	return "gstreamer"
}

// Default returns the configuration used without a config file.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// Load reads and parses the configuration file. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses a YAML configuration, expanding environment variables and
// applying defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Camera.Driver == "" {
		cfg.Camera.Driver = DefaultDriver()
	}
	if cfg.Camera.Facing == "" {
		cfg.Camera.Facing = string(camera.FacingEnvironment)
	}

	if cfg.Sampler.Width == 0 {
		cfg.Sampler.Width = luxmeter.DefaultWidth
	}
	if cfg.Sampler.Height == 0 {
		cfg.Sampler.Height = luxmeter.DefaultHeight
	}
	if cfg.Sampler.Filter == "" {
		cfg.Sampler.Filter = "nearest"
	}
	if cfg.Sampler.Stride == 0 {
		cfg.Sampler.Stride = luxmeter.DefaultStride
	}

	if cfg.Loop.RefreshRate == 0 {
		cfg.Loop.RefreshRate = meter.DefaultRefreshRate
	}
	// Smoothing defaults to 0 (off), no need to set

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks the configuration for settings the engine cannot run with,
// such as a stride that samples no pixel of the raster.
func (cfg *Config) Validate() error {
	if !knownDriver(cfg.Camera.Driver) {
		return fmt.Errorf("camera.driver: unknown driver %q, need one of %v", cfg.Camera.Driver, Drivers)
	}
	if _, err := camera.ParseFacing(cfg.Camera.Facing); err != nil {
		return fmt.Errorf("camera.facing: %v", err)
	}
	if cfg.Camera.Interval < 0 {
		return fmt.Errorf("camera.interval: must be >= 0, got %v", cfg.Camera.Interval.Duration())
	}
	if cfg.Sampler.Width <= 0 || cfg.Sampler.Height <= 0 {
		return fmt.Errorf("sampler: invalid raster size %dx%d", cfg.Sampler.Width, cfg.Sampler.Height)
	}
	if _, err := luxmeter.ParseFilter(cfg.Sampler.Filter); err != nil {
		return fmt.Errorf("sampler.filter: %v", err)
	}
	if err := luxmeter.ValidateStride(cfg.Sampler.Stride, cfg.Sampler.Width, cfg.Sampler.Height); err != nil {
		return fmt.Errorf("sampler.stride: %w", err)
	}
	if cfg.Loop.RefreshRate <= 0 {
		return fmt.Errorf("loop.refresh_rate: must be > 0, got %v", cfg.Loop.RefreshRate)
	}
	if cfg.Loop.Smoothing < 0 {
		return fmt.Errorf("loop.smoothing: must be >= 0, got %d", cfg.Loop.Smoothing)
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %v", err)
	}
	return nil
}

func knownDriver(name string) bool {
	for _, d := range Drivers {
		if d == name {
			return true
		}
	}
	return false
}

// LoopOpts returns the analysis loop options for a validated configuration.
func (cfg *Config) LoopOpts() (*meter.Opts, error) {
	facing, err := camera.ParseFacing(cfg.Camera.Facing)
	if err != nil {
		return nil, err
	}
	filter, err := luxmeter.ParseFilter(cfg.Sampler.Filter)
	if err != nil {
		return nil, err
	}
	return &meter.Opts{
		Facing:      facing,
		Width:       cfg.Sampler.Width,
		Height:      cfg.Sampler.Height,
		Filter:      filter,
		Stride:      cfg.Sampler.Stride,
		Smoothing:   cfg.Loop.Smoothing,
		RefreshRate: cfg.Loop.RefreshRate,
	}, nil
}

var envVarRe = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envVarRe.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return defaultVal
	})
}
