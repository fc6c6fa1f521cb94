// Package input merges pointer, wheel and touch events with the gesture
// state into one target for the orientation controller.
package input

import (
	"fmt"
	"math"
)

// Kind identifies a device event.
type Kind string

const (
	PointerDown   Kind = "pointerdown"
	PointerMove   Kind = "pointermove"
	PointerUp     Kind = "pointerup"
	PointerLeave  Kind = "pointerleave"
	PointerCancel Kind = "pointercancel"
	Wheel         Kind = "wheel"
	TouchStart    Kind = "touchstart"
	TouchMove     Kind = "touchmove"
	TouchEnd      Kind = "touchend"
	TouchCancel   Kind = "touchcancel"
	Resize        Kind = "resize"
)

// Touch is one active touch point in client coordinates.
type Touch struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Event is a device event as sent by the rendering host. Coordinates are
// client pixels; Width and Height are only read for Resize.
type Event struct {
	Kind      Kind    `json:"kind"`
	PointerID int     `json:"pointer_id,omitempty"`
	Primary   bool    `json:"primary,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	DeltaY    float64 `json:"delta_y,omitempty"`
	Touches   []Touch `json:"touches,omitempty"`
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
}

// Validate rejects unknown kinds and non-finite coordinates.
func (e Event) Validate() error {
	switch e.Kind {
	case PointerDown, PointerMove, PointerUp, PointerLeave, PointerCancel,
		Wheel, TouchStart, TouchMove, TouchEnd, TouchCancel, Resize:
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	for _, v := range []float64{e.X, e.Y, e.DeltaY, e.Width, e.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: non-finite value", e.Kind)
		}
	}
	for _, t := range e.Touches {
		if math.IsNaN(t.X) || math.IsNaN(t.Y) || math.IsInf(t.X, 0) || math.IsInf(t.Y, 0) {
			return fmt.Errorf("%s: non-finite touch", e.Kind)
		}
	}
	return nil
}
