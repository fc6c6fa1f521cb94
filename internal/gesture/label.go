package gesture

// Debug labels shown by the rendering host and the tray.
const (
	LabelNoHand = "NO HAND"
	LabelOpen   = "OPEN"
	LabelClosed = "CLOSED"
	LabelPinch  = "PINCH"
	LabelPull   = "PULL"
)

// Label returns the human-readable label for s. Pinch and pull take
// precedence over openness.
func Label(s State) string {
	switch {
	case !s.HandDetected:
		return LabelNoHand
	case s.IsPinching && s.IsPulling:
		return LabelPull
	case s.IsPinching:
		return LabelPinch
	case s.IsOpen:
		return LabelOpen
	default:
		return LabelClosed
	}
}
