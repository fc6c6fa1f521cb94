package orientation

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Mode is the controller's exclusive control mode.
type Mode uint8

const (
	Idle Mode = iota
	Dragging
	HandGrab
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case HandGrab:
		return "hand_grab"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*m = Idle
	case "dragging":
		*m = Dragging
	case "hand_grab":
		*m = HandGrab
	default:
		return fmt.Errorf("unknown mode %q", b)
	}
	return nil
}

// State is the controller output read by the rendering host every frame.
type State struct {
	RotationY        float64    `json:"rotation_y"`
	Camera           mgl64.Vec3 `json:"camera"`
	ZoomLevel        float64    `json:"zoom_level"`
	RotationVelocity float64    `json:"rotation_velocity"`
	GrabOffset       float64    `json:"grab_offset"`
	Mode             Mode       `json:"mode"`
	Parallax         mgl64.Vec2 `json:"parallax"`
}

// LookAt is the point the camera always faces.
var LookAt = mgl64.Vec3{}

// View returns the camera view matrix.
func (s State) View() mgl64.Mat4 {
	return mgl64.LookAtV(s.Camera, LookAt, mgl64.Vec3{0, 1, 0})
}

// Model returns the object transform for the current yaw.
func (s State) Model() mgl64.Mat4 {
	return mgl64.HomogRotate3DY(s.RotationY)
}

func (s State) finite() bool {
	values := [...]float64{
		s.RotationY, s.ZoomLevel, s.RotationVelocity, s.GrabOffset,
		s.Camera[0], s.Camera[1], s.Camera[2],
		s.Parallax[0], s.Parallax[1],
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// initialState is the resting state for t: idle spin, centred camera.
func initialState(t Tuning) State {
	return State{
		Camera:           mgl64.Vec3{0, 0, t.InitialZoom},
		ZoomLevel:        t.InitialZoom,
		RotationVelocity: t.BaseSpin,
		Mode:             Idle,
	}
}
