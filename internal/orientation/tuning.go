package orientation

import (
	"errors"
	"fmt"
	"math"
)

// Controller defaults.
const (
	DefaultHandRotationFactor = math.Pi * 1.2 // radians of yaw across the full hand range
	DefaultGrabRate           = 6.0
	DefaultMaxDT              = 0.1
	DefaultBaseSpin           = 0.002 // idle auto-spin per tick
	DefaultIdleRelaxRate      = 0.5
	DefaultReleaseEpsilon     = 1e-4
	DefaultDragSensitivity    = 0.005 // radians per pixel
	DefaultWheelSensitivity   = 0.02
	DefaultPinchSensitivity   = 0.15
	DefaultMinZoom            = 12.0
	DefaultMaxZoom            = 55.0
	DefaultInitialZoom        = 32.0
	DefaultParallaxRate       = 4.0
	DefaultCameraRate         = 4.0
	DefaultParallaxX          = 4.0
	DefaultParallaxY          = 2.0
	DefaultLateralZoom        = 2.0 // extra distance per unit of |parallax x|
)

// ErrInvalidTuning is returned by Tuning.Validate.
var ErrInvalidTuning = errors.New("invalid control tuning")

// Tuning holds the controller's overridable constants.
type Tuning struct {
	HandRotationFactor float64 `yaml:"hand_rotation_factor" json:"hand_rotation_factor"`
	GrabRate           float64 `yaml:"grab_rate" json:"grab_rate"`
	MaxDT              float64 `yaml:"max_dt" json:"max_dt"`
	BaseSpin           float64 `yaml:"base_spin" json:"base_spin"`
	IdleRelaxRate      float64 `yaml:"idle_relax_rate" json:"idle_relax_rate"`
	ReleaseEpsilon     float64 `yaml:"release_epsilon" json:"release_epsilon"`
	DragSensitivity    float64 `yaml:"drag_sensitivity" json:"drag_sensitivity"`
	WheelSensitivity   float64 `yaml:"wheel_sensitivity" json:"wheel_sensitivity"`
	PinchSensitivity   float64 `yaml:"pinch_sensitivity" json:"pinch_sensitivity"`
	MinZoom            float64 `yaml:"min_zoom" json:"min_zoom"`
	MaxZoom            float64 `yaml:"max_zoom" json:"max_zoom"`
	InitialZoom        float64 `yaml:"initial_zoom" json:"initial_zoom"`
	ParallaxRate       float64 `yaml:"parallax_rate" json:"parallax_rate"`
	CameraRate         float64 `yaml:"camera_rate" json:"camera_rate"`
	ParallaxX          float64 `yaml:"parallax_x" json:"parallax_x"`
	ParallaxY          float64 `yaml:"parallax_y" json:"parallax_y"`
	LateralZoom        float64 `yaml:"lateral_zoom" json:"lateral_zoom"`
}

// DefaultTuning returns the controller defaults.
func DefaultTuning() Tuning {
	return Tuning{
		HandRotationFactor: DefaultHandRotationFactor,
		GrabRate:           DefaultGrabRate,
		MaxDT:              DefaultMaxDT,
		BaseSpin:           DefaultBaseSpin,
		IdleRelaxRate:      DefaultIdleRelaxRate,
		ReleaseEpsilon:     DefaultReleaseEpsilon,
		DragSensitivity:    DefaultDragSensitivity,
		WheelSensitivity:   DefaultWheelSensitivity,
		PinchSensitivity:   DefaultPinchSensitivity,
		MinZoom:            DefaultMinZoom,
		MaxZoom:            DefaultMaxZoom,
		InitialZoom:        DefaultInitialZoom,
		ParallaxRate:       DefaultParallaxRate,
		CameraRate:         DefaultCameraRate,
		ParallaxX:          DefaultParallaxX,
		ParallaxY:          DefaultParallaxY,
		LateralZoom:        DefaultLateralZoom,
	}
}

// Validate checks that the tuning can drive a Controller.
func (t Tuning) Validate() error {
	values := []float64{
		t.HandRotationFactor, t.GrabRate, t.MaxDT, t.BaseSpin, t.IdleRelaxRate,
		t.ReleaseEpsilon, t.DragSensitivity, t.WheelSensitivity, t.PinchSensitivity,
		t.MinZoom, t.MaxZoom, t.InitialZoom, t.ParallaxRate, t.CameraRate,
		t.ParallaxX, t.ParallaxY, t.LateralZoom,
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidTuning)
		}
	}
	if t.MaxDT <= 0 {
		return fmt.Errorf("%w: max dt must be positive", ErrInvalidTuning)
	}
	if t.GrabRate < 0 || t.IdleRelaxRate < 0 || t.ParallaxRate < 0 || t.CameraRate < 0 {
		return fmt.Errorf("%w: negative rate", ErrInvalidTuning)
	}
	if t.MinZoom <= 0 || t.MinZoom >= t.MaxZoom {
		return fmt.Errorf("%w: zoom range [%g, %g]", ErrInvalidTuning, t.MinZoom, t.MaxZoom)
	}
	if t.InitialZoom < t.MinZoom || t.InitialZoom > t.MaxZoom {
		return fmt.Errorf("%w: initial zoom %g outside range", ErrInvalidTuning, t.InitialZoom)
	}
	return nil
}
