// Package gesture turns raw hand landmarks into a debounced, hysteretic gesture state.
package gesture

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ayusman/handorbit/internal/detector"
	"github.com/ayusman/handorbit/internal/smoothing"
)

// State is the stabilised gesture signal published to the input aggregator.
// When HandDetected is false every other field is zero.
type State struct {
	HandDetected bool       `json:"hand_detected"`
	Position     mgl64.Vec2 `json:"position"` // smoothed wrist, mirrored, in [-1,1]
	IsOpen       bool       `json:"is_open"`
	IsPinching   bool       `json:"is_pinching"`
	IsPulling    bool       `json:"is_pulling"`
	PullVelocity float64    `json:"pull_velocity"`
	IndexFinger  mgl64.Vec2 `json:"index_finger"` // smoothed index tip
	Thumb        mgl64.Vec2 `json:"thumb"`        // smoothed thumb tip
}

// referenced lists the landmarks the interpreter reads.
var referenced = [...]int{
	detector.Wrist, detector.ThumbTip,
	detector.IndexMCP, detector.IndexTip,
	detector.MiddleMCP, detector.MiddleTip,
	detector.RingMCP, detector.RingTip,
	detector.PinkyMCP, detector.PinkyTip,
}

// tracker is the per-signal history owned by one Interpreter.
type tracker struct {
	position *smoothing.Buffer[mgl64.Vec2]
	ratio    *smoothing.Buffer[smoothing.Scalar]
	index    *smoothing.Buffer[mgl64.Vec2]
	thumb    *smoothing.Buffer[mgl64.Vec2]

	open       bool
	misses     int
	lastIndexY float64
	hasIndexY  bool
}

func newTracker(t Tuning) tracker {
	return tracker{
		position: smoothing.NewBuffer[mgl64.Vec2](t.PositionWindow),
		ratio:    smoothing.NewBuffer[smoothing.Scalar](t.RatioWindow),
		index:    smoothing.NewBuffer[mgl64.Vec2](t.FingerWindow),
		thumb:    smoothing.NewBuffer[mgl64.Vec2](t.FingerWindow),
	}
}

// reset drops every history and the hysteresis and pull trackers.
func (tr *tracker) reset() {
	tr.position.Clear()
	tr.ratio.Clear()
	tr.index.Clear()
	tr.thumb.Clear()
	tr.open = false
	tr.lastIndexY = 0
	tr.hasIndexY = false
}

// Interpreter converts landmark detections into a State at a throttled cadence.
// It is not safe for concurrent use; the inference loop owns it.
type Interpreter struct {
	tuning   Tuning
	tracker  tracker
	state    State
	last     time.Time
	accepted bool
}

// NewInterpreter creates an Interpreter. Invalid tuning falls back to DefaultTuning.
func NewInterpreter(t Tuning) *Interpreter {
	if t.Validate() != nil {
		t = DefaultTuning()
	}
	return &Interpreter{
		tuning:  t,
		tracker: newTracker(t),
	}
}

// Tuning returns the active tuning.
func (i *Interpreter) Tuning() Tuning {
	return i.tuning
}

// SetTuning replaces the tuning. Changing a window size rebuilds the
// buffers, which drops their history.
func (i *Interpreter) SetTuning(t Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	old := i.tuning
	i.tuning = t
	if old.PositionWindow != t.PositionWindow || old.RatioWindow != t.RatioWindow || old.FingerWindow != t.FingerWindow {
		misses := i.tracker.misses
		i.tracker = newTracker(t)
		i.tracker.misses = misses
	}
	return nil
}

// State returns the most recently computed state.
func (i *Interpreter) State() State {
	return i.state
}

// Due reports whether a call to Interpret at now would be accepted.
func (i *Interpreter) Due(now time.Time) bool {
	return !i.accepted || now.Sub(i.last) >= i.tuning.Interval
}

// Interpret folds one estimator result into the gesture state. A nil hand
// is a miss. Calls arriving before the throttle interval has elapsed since
// the last accepted call return the previous state untouched.
func (i *Interpreter) Interpret(now time.Time, hand *detector.HandLandmarks) State {
	if !i.Due(now) {
		return i.state
	}
	i.last = now
	i.accepted = true

	if hand == nil || !finite(hand) {
		i.state = miss(&i.tracker, i.tuning, i.state)
		return i.state
	}

	i.state = observe(&i.tracker, i.tuning, hand)
	return i.state
}

// Reset returns the interpreter to the neutral state with empty buffers.
func (i *Interpreter) Reset() {
	i.tracker.reset()
	i.tracker.misses = 0
	i.state = State{}
	i.accepted = false
}

// miss counts a frame without a usable hand. Past the miss limit the state
// goes neutral and every buffer is cleared; before that the previous state holds.
func miss(tr *tracker, t Tuning, prev State) State {
	if tr.misses <= t.MissLimit {
		tr.misses++
	}
	if tr.misses <= t.MissLimit {
		return prev
	}
	tr.reset()
	return State{}
}

// observe folds a finite hand into the trackers and derives the new state.
func observe(tr *tracker, t Tuning, hand *detector.HandLandmarks) State {
	tr.misses = 0

	pts := &hand.Points
	wrist := pts[detector.Wrist]

	tr.position.Push(mirror(wrist))

	var tipSum, baseSum float64
	for k := range detector.FingerTips {
		tipSum += detector.Distance2D(wrist, pts[detector.FingerTips[k]])
		baseSum += detector.Distance2D(wrist, pts[detector.FingerBases[k]])
	}
	tr.ratio.Push(smoothing.Scalar(safeRatio(tipSum/4, baseSum/4)))
	tr.open = t.Openness.Next(tr.open, float64(tr.ratio.Mean()))

	indexTip := pts[detector.IndexTip]
	thumbTip := pts[detector.ThumbTip]
	tr.index.Push(mirror(indexTip))
	tr.thumb.Push(mirror(thumbTip))
	index := tr.index.Mean()

	near := detector.Distance2D(thumbTip, indexTip) < t.PinchDistance
	pinching := near && othersExtended(hand, t.ExtensionRatio)

	var velocity float64
	pulling := false
	if pinching && tr.hasIndexY {
		velocity = tr.lastIndexY - index.Y()
		pulling = velocity > t.PullThreshold
	}
	tr.lastIndexY = index.Y()
	tr.hasIndexY = true

	return State{
		HandDetected: true,
		Position:     tr.position.Mean(),
		IsOpen:       tr.open,
		IsPinching:   pinching,
		IsPulling:    pulling,
		PullVelocity: velocity,
		IndexFinger:  index,
		Thumb:        tr.thumb.Mean(),
	}
}

// othersExtended reports whether middle, ring and pinky all reach past
// their knuckles by more than ratio. A fist fails this even when the thumb
// rests on the index fingertip.
func othersExtended(hand *detector.HandLandmarks, ratio float64) bool {
	wrist := hand.Points[detector.Wrist]
	for k := 1; k < len(detector.FingerTips); k++ {
		tip := detector.Distance2D(wrist, hand.Points[detector.FingerTips[k]])
		base := detector.Distance2D(wrist, hand.Points[detector.FingerBases[k]])
		if safeRatio(tip, base) <= ratio {
			return false
		}
	}
	return true
}

// mirror maps an image-normalised point to [-1,1]² with both axes flipped.
func mirror(p detector.Point3D) mgl64.Vec2 {
	return mgl64.Vec2{
		clamp(-(p.X*2 - 1)),
		clamp(-(p.Y*2 - 1)),
	}
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		den = 1
	}
	return num / den
}

func finite(hand *detector.HandLandmarks) bool {
	for _, idx := range referenced {
		if !hand.Points[idx].Finite() {
			return false
		}
	}
	return true
}
