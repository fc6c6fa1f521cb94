package input

import (
	"math"

	"github.com/ayusman/handorbit/internal/gesture"
)

// Target is the consolidated control input for one controller tick.
// DragDeltaX, WheelDeltaY and PinchDistanceDelta are one-shot: they hold
// what happened since the previous Aggregate call and nothing more.
type Target struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	HandDetected bool    `json:"hand_detected"`

	// Dragging is true while a primary pointer is held down.
	Dragging bool `json:"dragging"`
	// DragReleased is true if a drag ended since the previous tick.
	DragReleased bool `json:"drag_released"`

	DragDeltaX         float64 `json:"drag_delta_x"`
	WheelDeltaY        float64 `json:"wheel_delta_y"`
	PinchDistanceDelta float64 `json:"pinch_distance_delta"`
}

// Aggregator tracks pointer and touch state between ticks. It is owned by
// the render loop and is not safe for concurrent use.
type Aggregator struct {
	width, height float64

	// pointer position normalised to [-1,1]
	pointerX, pointerY float64

	dragging    bool
	dragPointer int
	lastX       float64

	pinching      bool
	lastPinchDist float64

	released   bool
	dragDelta  float64
	wheelDelta float64
	pinchDelta float64
}

// NewAggregator creates an Aggregator for a viewport of the given size.
func NewAggregator(width, height float64) *Aggregator {
	return &Aggregator{width: width, height: height}
}

// Handle folds one device event into the pending deltas. Invalid events
// are ignored.
func (a *Aggregator) Handle(e Event) {
	if e.Validate() != nil {
		return
	}

	switch e.Kind {
	case Resize:
		if e.Width > 0 && e.Height > 0 {
			a.width, a.height = e.Width, e.Height
		}

	case PointerDown:
		a.track(e)
		if a.dragging || !e.Primary {
			return
		}
		a.dragging = true
		a.dragPointer = e.PointerID
		a.lastX = e.X

	case PointerMove:
		a.track(e)
		if !a.dragging || e.PointerID != a.dragPointer {
			return
		}
		dx := e.X - a.lastX
		a.lastX = e.X
		// a second touch point turns the gesture into a pinch
		if !a.pinching {
			a.dragDelta += dx
		}

	case PointerUp, PointerLeave, PointerCancel:
		if a.dragging && e.PointerID == a.dragPointer {
			a.dragging = false
			a.released = true
		}

	case Wheel:
		a.wheelDelta += e.DeltaY

	case TouchStart, TouchMove:
		if len(e.Touches) < 2 {
			return
		}
		d := touchDistance(e.Touches[0], e.Touches[1])
		if a.pinching {
			// fingers moving together give a positive delta and zoom out
			a.pinchDelta += a.lastPinchDist - d
		}
		a.pinching = true
		a.lastPinchDist = d

	case TouchEnd, TouchCancel:
		// the remaining pair may differ from the one measured, so the next
		// two-point event seeds a fresh distance
		a.pinching = false
		a.lastPinchDist = 0
	}
}

// Aggregate returns the target for this tick and clears every one-shot value.
// A detected hand owns the position; otherwise the pointer does.
func (a *Aggregator) Aggregate(g gesture.State) Target {
	t := Target{
		X:                  a.pointerX,
		Y:                  a.pointerY,
		HandDetected:       g.HandDetected,
		Dragging:           a.dragging,
		DragReleased:       a.released,
		DragDeltaX:         a.dragDelta,
		WheelDeltaY:        a.wheelDelta,
		PinchDistanceDelta: a.pinchDelta,
	}
	if g.HandDetected {
		t.X, t.Y = g.Position.X(), g.Position.Y()
	}

	a.released = false
	a.dragDelta = 0
	a.wheelDelta = 0
	a.pinchDelta = 0
	return t
}

// Pinching reports whether a two-point touch is active.
func (a *Aggregator) Pinching() bool {
	return a.pinching
}

// track updates the normalised pointer position used for parallax.
func (a *Aggregator) track(e Event) {
	if a.width <= 0 || a.height <= 0 {
		return
	}
	a.pointerX = clamp(e.X/a.width*2 - 1)
	a.pointerY = clamp(-(e.Y/a.height*2 - 1))
}

func touchDistance(a, b Touch) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
