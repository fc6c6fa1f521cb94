package detector

import (
	"context"
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrReplayFinished is returned once a non-looping replay has run out of frames.
var ErrReplayFinished = errors.New("replay finished")

// RecordedFrame is one inference tick captured from a live session.
// Hand is nil when the estimator reported no hand or failed.
type RecordedFrame struct {
	Offset time.Duration  `cbor:"offset"`
	Hand   *HandLandmarks `cbor:"hand,omitempty"`
}

// ReplayDetector plays back a recorded session in place of a live estimator.
// The frame argument to Estimate is ignored.
type ReplayDetector struct {
	mu     sync.Mutex
	frames []RecordedFrame
	index  int
	loop   bool
}

// NewReplayDetector creates a ReplayDetector over frames.
func NewReplayDetector(frames []RecordedFrame, loop bool) *ReplayDetector {
	return &ReplayDetector{
		frames: frames,
		loop:   loop,
	}
}

// Estimate returns the next recorded hand, if any.
func (r *ReplayDetector) Estimate(ctx context.Context, frame *gocv.Mat) ([]HandLandmarks, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index >= len(r.frames) {
		if !r.loop || len(r.frames) == 0 {
			return nil, ErrReplayFinished
		}
		r.index = 0
	}

	f := r.frames[r.index]
	r.index++

	if f.Hand == nil {
		return nil, nil
	}
	return []HandLandmarks{*f.Hand}, nil
}

// Reset restarts playback from the first frame.
func (r *ReplayDetector) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = 0
}

// Close is a no-op for the replay detector.
func (r *ReplayDetector) Close() error {
	return nil
}

// Done reports whether a non-looping replay has handed out every frame.
func (r *ReplayDetector) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.loop && r.index >= len(r.frames)
}

// Len returns the number of recorded frames.
func (r *ReplayDetector) Len() int {
	return len(r.frames)
}
