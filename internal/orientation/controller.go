// Package orientation integrates control targets into a continuous object
// yaw, zoom and camera trajectory.
package orientation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ayusman/handorbit/internal/input"
)

// Controller advances the orientation state once per render tick.
// It is owned by the render loop and is not safe for concurrent use.
type Controller struct {
	tuning Tuning
	state  State
}

// NewController creates a Controller at rest. Invalid tuning falls back to
// DefaultTuning.
func NewController(t Tuning) *Controller {
	if t.Validate() != nil {
		t = DefaultTuning()
	}
	return &Controller{tuning: t, state: initialState(t)}
}

// Tuning returns the active tuning.
func (c *Controller) Tuning() Tuning {
	return c.tuning
}

// SetTuning replaces the tuning and pulls the zoom into the new range.
func (c *Controller) SetTuning(t Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	c.tuning = t
	c.state.ZoomLevel = clampZoom(c.state.ZoomLevel, t)
	return nil
}

// State returns the last computed state.
func (c *Controller) State() State {
	return c.state
}

// Reset returns the controller to its resting state.
func (c *Controller) Reset() {
	c.state = initialState(c.tuning)
}

// Tick advances the state by dt seconds using target. dt is clamped to
// [0, MaxDT]. A tick that would produce a non-finite value is discarded and
// the previous state is returned.
func (c *Controller) Tick(target input.Target, dt float64) State {
	dt = clampDT(dt, c.tuning.MaxDT)
	next := step(c.state, c.tuning, target, dt)
	if !next.finite() {
		return c.state
	}
	c.state = next
	return next
}

// step is one full controller update: zoom and parallax, mode transition,
// the mode's rotation rule, then the camera. Grab anchoring and following
// read this tick's parallax.
func step(s State, t Tuning, in input.Target, dt float64) State {
	s = applyZoom(s, t, in)
	s = followInput(s, t, in, dt)
	s = transition(s, t, in)

	switch s.Mode {
	case HandGrab:
		s = grab(s, t, dt)
	case Dragging:
		s = drag(s, t, in)
	default:
		s = idle(s, t, dt)
	}

	return followCamera(s, t, dt)
}

// transition applies the mode change triggered by in, if any.
func transition(s State, t Tuning, in input.Target) State {
	switch s.Mode {
	case Idle:
		if in.HandDetected {
			return enterGrab(s, t)
		}
		if in.Dragging || in.DragReleased {
			return enterDrag(s)
		}
	case Dragging:
		if in.HandDetected {
			return enterGrab(s, t)
		}
	case HandGrab:
		if !in.HandDetected {
			return releaseGrab(s, t)
		}
	}
	return s
}

// enterGrab anchors the grab so that the hand's current position maps to
// the current yaw.
func enterGrab(s State, t Tuning) State {
	s.Mode = HandGrab
	s.GrabOffset = s.RotationY - s.Parallax.X()*t.HandRotationFactor
	s.RotationVelocity = 0
	return s
}

// releaseGrab hands the measured velocity over to the idle spin. A hand
// that was held still restarts the base spin.
func releaseGrab(s State, t Tuning) State {
	s.Mode = Idle
	if math.Abs(s.RotationVelocity) < t.ReleaseEpsilon {
		s.RotationVelocity = t.BaseSpin
	}
	return s
}

func enterDrag(s State) State {
	s.Mode = Dragging
	s.RotationVelocity = 0
	return s
}

func grab(s State, t Tuning, dt float64) State {
	target := s.Parallax.X()*t.HandRotationFactor + s.GrabOffset
	prev := s.RotationY
	s.RotationY = approach(s.RotationY, target, t.GrabRate*dt)
	s.RotationVelocity = s.RotationY - prev
	return s
}

// drag applies the pointer movement. The last non-zero movement becomes the
// inertia carried into Idle when the drag ends.
func drag(s State, t Tuning, in input.Target) State {
	if in.DragDeltaX != 0 {
		amount := in.DragDeltaX * t.DragSensitivity
		s.RotationY += amount
		s.RotationVelocity = amount
	}
	if !in.Dragging {
		s.Mode = Idle
	}
	return s
}

func idle(s State, t Tuning, dt float64) State {
	s.RotationY += s.RotationVelocity
	s.RotationVelocity = approach(s.RotationVelocity, t.BaseSpin, t.IdleRelaxRate*dt)
	return s
}

func applyZoom(s State, t Tuning, in input.Target) State {
	s.ZoomLevel = clampZoom(s.ZoomLevel+in.WheelDeltaY*t.WheelSensitivity, t)
	s.ZoomLevel = clampZoom(s.ZoomLevel+in.PinchDistanceDelta*t.PinchSensitivity, t)
	return s
}

// followInput smooths the parallax toward the target position.
func followInput(s State, t Tuning, in input.Target, dt float64) State {
	k := unit(t.ParallaxRate * dt)
	s.Parallax = s.Parallax.Add(mgl64.Vec2{in.X, in.Y}.Sub(s.Parallax).Mul(k))
	return s
}

// followCamera moves the camera toward its parallax-offset, zoom-distance
// target.
func followCamera(s State, t Tuning, dt float64) State {
	px, py := s.Parallax.Elem()
	goal := mgl64.Vec3{
		px * t.ParallaxX,
		py * t.ParallaxY,
		s.ZoomLevel + math.Abs(px)*t.LateralZoom,
	}
	s.Camera = s.Camera.Add(goal.Sub(s.Camera).Mul(unit(t.CameraRate * dt)))
	return s
}

// approach moves a toward b by fraction k, clamped to [0, 1].
func approach(a, b, k float64) float64 {
	return a + (b-a)*unit(k)
}

func unit(k float64) float64 {
	return math.Max(0, math.Min(1, k))
}

func clampZoom(z float64, t Tuning) float64 {
	return math.Max(t.MinZoom, math.Min(t.MaxZoom, z))
}

func clampDT(dt, limit float64) float64 {
	if math.IsNaN(dt) || dt < 0 {
		return 0
	}
	return math.Min(dt, limit)
}
