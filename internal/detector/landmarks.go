// Package detector provides the hand-landmark stream consumed by the gesture interpreter.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

var nan = math.NaN()

// FingerTips and FingerBases pair the four non-thumb fingers, index first.
var (
	FingerTips  = [4]int{IndexTip, MiddleTip, RingTip, PinkyTip}
	FingerBases = [4]int{IndexMCP, MiddleMCP, RingMCP, PinkyMCP}
)

// Point3D represents a landmark in image-normalised coordinates.
// X and Y are in [0,1] of the frame width and height; Z is relative depth.
type Point3D struct {
	X float64 `json:"x" cbor:"x"`
	Y float64 `json:"y" cbor:"y"`
	Z float64 `json:"z" cbor:"z"`
}

// Finite reports whether X and Y are both finite.
func (p Point3D) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// HandLandmarks represents the 21 hand landmarks of one detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points" cbor:"points"`
	Handedness string                `json:"handedness" cbor:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score" cbor:"score"`
}

// Finite reports whether every landmark has finite image coordinates.
func (h *HandLandmarks) Finite() bool {
	if h == nil {
		return false
	}
	for _, p := range h.Points {
		if !p.Finite() {
			return false
		}
	}
	return true
}

// First reduces a detection result to its first hand, or nil when empty.
func First(hands []HandLandmarks) *HandLandmarks {
	if len(hands) == 0 {
		return nil
	}
	h := hands[0]
	return &h
}

// Distance2D returns the image-plane distance between two landmarks.
func Distance2D(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
