package gesture

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ayusman/handorbit/internal/smoothing"
)

// Interpreter defaults. The windows and thresholds were tuned by hand against
// live MediaPipe output and are kept independent of each other.
const (
	DefaultInterval       = 100 * time.Millisecond // ~10 accepted frames per second
	DefaultPositionWindow = 8                      // wrist position samples
	DefaultRatioWindow    = 5                      // openness ratio samples
	DefaultFingerWindow   = 5                      // index and thumb tip samples
	DefaultOpenAbove      = 1.6                    // closed -> open when smoothed ratio exceeds this
	DefaultCloseBelow     = 1.2                    // open -> closed when smoothed ratio drops below this
	DefaultPinchDistance  = 0.05                   // thumb-index distance, image-normalised
	DefaultExtensionRatio = 1.1                    // tip/base wrist distance for an extended finger
	DefaultPullThreshold  = 0.02                   // smoothed index y change per accepted frame
	DefaultMissLimit      = 5                      // misses tolerated before the hand is dropped
)

// ErrInvalidTuning is returned by Tuning.Validate.
var ErrInvalidTuning = errors.New("invalid gesture tuning")

// Tuning holds the interpreter's overridable constants.
type Tuning struct {
	Interval       time.Duration        `yaml:"interval" json:"interval"`
	PositionWindow int                  `yaml:"position_window" json:"position_window"`
	RatioWindow    int                  `yaml:"ratio_window" json:"ratio_window"`
	FingerWindow   int                  `yaml:"finger_window" json:"finger_window"`
	Openness       smoothing.Hysteresis `yaml:"openness" json:"openness"`
	PinchDistance  float64              `yaml:"pinch_distance" json:"pinch_distance"`
	ExtensionRatio float64              `yaml:"extension_ratio" json:"extension_ratio"`
	PullThreshold  float64              `yaml:"pull_threshold" json:"pull_threshold"`
	MissLimit      int                  `yaml:"miss_limit" json:"miss_limit"`
}

// DefaultTuning returns the interpreter defaults.
func DefaultTuning() Tuning {
	return Tuning{
		Interval:       DefaultInterval,
		PositionWindow: DefaultPositionWindow,
		RatioWindow:    DefaultRatioWindow,
		FingerWindow:   DefaultFingerWindow,
		Openness: smoothing.Hysteresis{
			OpenAbove:  DefaultOpenAbove,
			CloseBelow: DefaultCloseBelow,
		},
		PinchDistance:  DefaultPinchDistance,
		ExtensionRatio: DefaultExtensionRatio,
		PullThreshold:  DefaultPullThreshold,
		MissLimit:      DefaultMissLimit,
	}
}

// Validate checks that the tuning can drive an Interpreter.
func (t Tuning) Validate() error {
	if t.Interval < 0 {
		return fmt.Errorf("%w: negative interval", ErrInvalidTuning)
	}
	if t.PositionWindow < 1 || t.RatioWindow < 1 || t.FingerWindow < 1 {
		return fmt.Errorf("%w: smoothing windows must hold at least one sample", ErrInvalidTuning)
	}
	for _, v := range []float64{t.PinchDistance, t.ExtensionRatio, t.PullThreshold, t.Openness.OpenAbove, t.Openness.CloseBelow} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidTuning)
		}
	}
	if err := t.Openness.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTuning, err)
	}
	if t.PinchDistance <= 0 || t.ExtensionRatio <= 0 {
		return fmt.Errorf("%w: pinch thresholds must be positive", ErrInvalidTuning)
	}
	if t.MissLimit < 0 {
		return fmt.Errorf("%w: negative miss limit", ErrInvalidTuning)
	}
	return nil
}
