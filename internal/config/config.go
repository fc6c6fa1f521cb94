// Package config holds the handorbit runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/handorbit/internal/capture"
	"github.com/ayusman/handorbit/internal/detector"
	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/orientation"
)

// ErrInvalidTuning wraps every tuning validation failure.
var ErrInvalidTuning = errors.New("config: invalid tuning")

// Tuning groups every overridable constant of the control pipeline.
type Tuning struct {
	Gesture gesture.Tuning     `yaml:"gesture" json:"gesture"`
	Control orientation.Tuning `yaml:"control" json:"control"`
}

// DefaultTuning returns the built-in tuning.
func DefaultTuning() Tuning {
	return Tuning{
		Gesture: gesture.DefaultTuning(),
		Control: orientation.DefaultTuning(),
	}
}

// Validate checks both halves of the tuning.
func (t Tuning) Validate() error {
	if err := t.Gesture.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTuning, err)
	}
	if err := t.Control.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTuning, err)
	}
	return nil
}

// DefaultMotionThreshold is the motion gate threshold, in percent of pixels.
const DefaultMotionThreshold = 1.0

// Config holds configuration options for handorbit.
type Config struct {
	Listen       string          `yaml:"listen"`
	StaticDir    string          `yaml:"static_dir"`
	Database     string          `yaml:"database"`
	Camera       capture.Config  `yaml:"camera"`
	RenderFPS    int             `yaml:"render_fps"`
	BroadcastFPS int             `yaml:"broadcast_fps"`
	Tracking     bool            `yaml:"tracking"`
	Recording    bool            `yaml:"recording"`
	Tray         bool            `yaml:"tray"`
	Detector     detector.Config `yaml:"detector"`
	Tuning       Tuning          `yaml:"tuning"`

	// MotionThreshold is the percent of changed pixels that keeps the
	// estimator running while no hand is tracked. Zero disables the gate.
	MotionThreshold float64 `yaml:"motion_threshold"`
}

// DataDir returns ~/.handorbit, or .handorbit when there is no home directory.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handorbit"
	}
	return filepath.Join(home, ".handorbit")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:       ":8080",
		Database:     filepath.Join(DataDir(), "handorbit.db"),
		Camera:       capture.DefaultConfig(),
		RenderFPS:    60,
		BroadcastFPS: 30,
		Tracking:     true,
		Recording:    false,
		Tray:         false,
		Detector:     detector.DefaultConfig(),
		Tuning:       DefaultTuning(),

		MotionThreshold: DefaultMotionThreshold,
	}
}

// Load reads a YAML file over Default. Keys missing from the file keep their
// default values. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if c.RenderFPS <= 0 || c.BroadcastFPS <= 0 {
		return fmt.Errorf("frame rates must be positive (render %d, broadcast %d)", c.RenderFPS, c.BroadcastFPS)
	}
	if err := c.Camera.Validate(); err != nil {
		return err
	}
	if c.MotionThreshold < 0 {
		return fmt.Errorf("motion_threshold must not be negative, got %g", c.MotionThreshold)
	}
	if c.Detector.MaxHands < 1 {
		return errors.New("detector.max_hands must be at least 1")
	}
	return c.Tuning.Validate()
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
