package smoothing

import (
	"errors"
	"math"
)

// ErrInvalidBand is returned when a Hysteresis has OpenAbove <= CloseBelow.
var ErrInvalidBand = errors.New("hysteresis: open threshold must be above close threshold")

// Hysteresis is a two-threshold switch. The state turns on when the value
// rises above OpenAbove and off when it falls below CloseBelow; inside the
// band the previous state is held.
type Hysteresis struct {
	OpenAbove  float64 `yaml:"open_above" json:"open_above"`
	CloseBelow float64 `yaml:"close_below" json:"close_below"`
}

// Validate reports whether the band is well formed.
func (h Hysteresis) Validate() error {
	if math.IsNaN(h.OpenAbove) || math.IsNaN(h.CloseBelow) || h.OpenAbove <= h.CloseBelow {
		return ErrInvalidBand
	}
	return nil
}

// Next returns the state after observing v while in state on.
func (h Hysteresis) Next(on bool, v float64) bool {
	switch {
	case !on && v > h.OpenAbove:
		return true
	case on && v < h.CloseBelow:
		return false
	default:
		return on
	}
}

// Lerp linearly interpolates from a toward b by t.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
