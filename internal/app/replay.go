package app

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/handorbit/internal/capture"
	"github.com/ayusman/handorbit/internal/config"
	"github.com/ayusman/handorbit/internal/detector"
	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/orientation"
)

// ErrEmptySession is returned when a replay has no frames.
var ErrEmptySession = errors.New("session has no frames")

// ReplayStep is the pipeline output after one recorded inference tick and
// the render ticks that follow it.
type ReplayStep struct {
	Offset      time.Duration     `json:"offset"`
	Gesture     gesture.State     `json:"gesture"`
	Label       string            `json:"label"`
	Orientation orientation.State `json:"orientation"`
}

// ReplaySummary aggregates a replay for reporting.
type ReplaySummary struct {
	Frames     int
	HandFrames int
	Duration   time.Duration
	Labels     map[string]int
	Final      orientation.State
	MinZoom    float64
	MaxZoom    float64
}

// Replay runs recorded frames through the same interpreter, aggregator and
// controller as live tracking, on a synthetic clock taken from the frame
// offsets. Render ticks run at renderFPS between inference ticks.
func Replay(ctx context.Context, frames []detector.RecordedFrame, tuning config.Tuning, renderFPS int) ([]ReplayStep, error) {
	if len(frames) == 0 {
		return nil, ErrEmptySession
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	if renderFPS <= 0 {
		renderFPS = DefaultRenderFPS
	}

	a := newApp(Config{RenderFPS: renderFPS}, tuning)
	a.camera = capture.NewMockCamera(nil, true)
	replay := detector.NewReplayDetector(frames, false)
	a.detector = replay
	if err := a.openTracking(time.Time{}); err != nil {
		return nil, err
	}
	defer a.closeTracking(time.Time{})
	defer a.gate.Close()

	var (
		start      = time.Unix(0, 0)
		renderStep = time.Second / time.Duration(renderFPS)
		interval   = inferenceInterval(tuning)
		renderAt   = start
		steps      = make([]ReplayStep, 0, len(frames))
	)

	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return steps, err
		}

		now := start.Add(f.Offset)
		if !a.interp.Due(now) {
			// A longer interval than the recording used: drop the frame so
			// the estimator stays aligned with the offsets.
			if _, err := replay.Estimate(ctx, nil); err != nil {
				return steps, err
			}
		} else {
			a.inferenceTick(ctx, now)
		}

		next := now.Add(interval)
		if i+1 < len(frames) {
			next = start.Add(frames[i+1].Offset)
		}
		for ; renderAt.Before(next); renderAt = renderAt.Add(renderStep) {
			a.renderTick(ctx, renderAt)
		}

		g := a.GestureState()
		steps = append(steps, ReplayStep{
			Offset:      f.Offset,
			Gesture:     g,
			Label:       gesture.Label(g),
			Orientation: a.OrientationState(),
		})
	}
	return steps, nil
}

// Summarize reduces replay steps to counts and ranges.
func Summarize(steps []ReplayStep) ReplaySummary {
	s := ReplaySummary{Labels: make(map[string]int)}
	if len(steps) == 0 {
		return s
	}
	s.Frames = len(steps)
	s.Duration = steps[len(steps)-1].Offset - steps[0].Offset
	s.Final = steps[len(steps)-1].Orientation
	s.MinZoom = steps[0].Orientation.ZoomLevel
	s.MaxZoom = s.MinZoom
	for _, st := range steps {
		if st.Gesture.HandDetected {
			s.HandFrames++
		}
		s.Labels[st.Label]++
		s.MinZoom = min(s.MinZoom, st.Orientation.ZoomLevel)
		s.MaxZoom = max(s.MaxZoom, st.Orientation.ZoomLevel)
	}
	return s
}
