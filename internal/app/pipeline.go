package app

import (
	"context"
	"log"
	"time"

	"github.com/ayusman/handorbit/internal/config"
	"github.com/ayusman/handorbit/internal/detector"
	"github.com/ayusman/handorbit/internal/gesture"
)

// inferenceInterval is the inference loop period for t.
func inferenceInterval(t config.Tuning) time.Duration {
	if t.Gesture.Interval <= 0 {
		return gesture.DefaultInterval
	}
	return t.Gesture.Interval
}

// inferenceTick runs one step of the inference loop:
//  1. pick up new tuning
//  2. read a frame and publish it as preview
//  3. skip the estimator while the scene is still and no hand is tracked
//  4. interpret the first detected hand; errors and empty results are misses
//  5. publish the gesture state and record the tick
func (a *App) inferenceTick(ctx context.Context, now time.Time) {
	if t := a.tuning.Load(); t != a.inferTuning {
		if err := a.interp.SetTuning(t.Gesture); err != nil {
			log.Printf("Error applying gesture tuning: %v", err)
		}
		if d := inferenceInterval(*t); d != a.inference.Interval() {
			a.inference.SetInterval(d)
			a.camera.SetFPS(int(time.Second / d))
		}
		a.inferTuning = t
	}

	if !a.interp.Due(now) {
		return
	}

	hand, err := a.estimate(ctx, now)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.failures++
		if a.failures%logEvery == 1 {
			log.Printf("Error estimating hand (%d failures): %v", a.failures, err)
		}
	}

	state := a.interp.Interpret(now, hand)
	a.publishGesture(state)

	if a.recorder != nil {
		if err := a.recorder.add(now, hand); err != nil {
			log.Printf("Error recording frame: %v", err)
		}
	}
}

// estimate returns the first hand in the current camera frame, or nil.
func (a *App) estimate(ctx context.Context, now time.Time) (*detector.HandLandmarks, error) {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	if err := a.preview.Publish(frame); err != nil {
		a.previewFailures++
		if a.previewFailures%logEvery == 1 {
			log.Printf("Error publishing preview (%d failures): %v", a.previewFailures, err)
		}
	}

	if !a.gate.Observe(now, frame) && !a.interp.State().HandDetected {
		return nil, nil
	}

	hands, err := a.detector.Estimate(ctx, frame)
	if err != nil {
		return nil, err
	}
	return detector.First(hands), nil
}

// renderTick runs one step of the render loop: drain device events,
// aggregate them with the latest gesture state and advance the controller.
func (a *App) renderTick(ctx context.Context, now time.Time) {
	if t := a.tuning.Load(); t != a.renderTuning {
		if err := a.ctrl.SetTuning(t.Control); err != nil {
			log.Printf("Error applying control tuning: %v", err)
		}
		a.renderTuning = t
	}

	var dt float64
	if !a.lastRender.IsZero() {
		dt = now.Sub(a.lastRender).Seconds()
	}
	a.lastRender = now

	a.drainEvents()

	target := a.agg.Aggregate(a.GestureState())
	state := a.ctrl.Tick(target, dt)
	a.orientState.Store(&state)
}

func (a *App) drainEvents() {
	for {
		select {
		case e := <-a.events:
			a.agg.Handle(e)
		default:
			return
		}
	}
}
