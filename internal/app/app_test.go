package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gocv.io/x/gocv"

	"github.com/ayusman/handorbit/internal/capture"
	"github.com/ayusman/handorbit/internal/config"
	"github.com/ayusman/handorbit/internal/detector"
	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/input"
	"github.com/ayusman/handorbit/internal/orientation"
	"github.com/ayusman/handorbit/internal/store"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestApp builds an App around a mock camera and estimator without
// probing for MediaPipe.
func newTestApp(t *testing.T, cfg Config) (*App, *capture.MockCamera, *detector.MockDetector) {
	t.Helper()
	a := newApp(cfg, config.DefaultTuning())
	cam := capture.NewMockCamera(nil, true)
	det := detector.NewMockDetector()
	a.SetCamera(cam)
	a.SetDetector(det)
	return a, cam, det
}

// tickAt runs n accepted inference ticks starting at from.
func tickAt(a *App, from time.Time, n int) time.Time {
	for i := 0; i < n; i++ {
		a.inferenceTick(context.Background(), from)
		from = from.Add(gesture.DefaultInterval)
	}
	return from
}

func TestApp_InferenceTick(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	a, _, det := newTestApp(t, Config{})
	det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})

	var labels []string
	a.RegisterLabelCallback(func(label string) { labels = append(labels, label) })

	if err := a.openTracking(epoch); err != nil {
		t.Fatalf("openTracking() error = %v", err)
	}
	now := tickAt(a, epoch, 8)

	g := a.GestureState()
	if !g.HandDetected || !g.IsOpen {
		t.Fatalf("GestureState() = %+v, want an open hand", g)
	}
	if len(labels) == 0 || labels[len(labels)-1] != gesture.LabelOpen {
		t.Errorf("labels = %v, want last %q", labels, gesture.LabelOpen)
	}
	for i := 1; i < len(labels); i++ {
		if labels[i] == labels[i-1] {
			t.Errorf("label %q reported twice in a row", labels[i])
		}
	}
	if a.Preview().Latest() == nil {
		t.Error("inference tick should publish a preview frame")
	}

	t.Run("throttled tick does not estimate", func(t *testing.T) {
		calls := det.Calls()
		a.inferenceTick(context.Background(), now.Add(-gesture.DefaultInterval/2))
		if det.Calls() != calls {
			t.Errorf("estimator called %d times, want %d", det.Calls(), calls)
		}
	})

	t.Run("errors count as misses", func(t *testing.T) {
		det.SetError(errors.New("estimator crashed"))
		tickAt(a, now, gesture.DefaultMissLimit+1)
		if a.failures != gesture.DefaultMissLimit+1 {
			t.Errorf("failures = %d, want %d", a.failures, gesture.DefaultMissLimit+1)
		}
		if diff := cmp.Diff(gesture.State{}, a.GestureState()); diff != "" {
			t.Errorf("state after misses mismatch (-want +got):\n%s", diff)
		}
		if labels[len(labels)-1] != gesture.LabelNoHand {
			t.Errorf("last label = %q, want %q", labels[len(labels)-1], gesture.LabelNoHand)
		}
	})

	a.closeTracking(now)
}

func TestApp_RenderTick(t *testing.T) {
	a, _, _ := newTestApp(t, Config{})
	ctx := context.Background()

	before := a.OrientationState()
	for _, e := range []input.Event{
		{Kind: input.Resize, Width: 800, Height: 600},
		{Kind: input.PointerDown, Primary: true, PointerID: 1, X: 100, Y: 300},
		{Kind: input.PointerMove, PointerID: 1, X: 140, Y: 300},
	} {
		if !a.HandleEvent(e) {
			t.Fatalf("HandleEvent(%s) dropped", e.Kind)
		}
	}

	a.renderTick(ctx, epoch)
	got := a.OrientationState()
	if got.Mode != orientation.Dragging {
		t.Errorf("Mode = %v, want %v", got.Mode, orientation.Dragging)
	}
	want := before.RotationY + 40*orientation.DefaultDragSensitivity
	if diff := got.RotationY - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("RotationY = %f, want %f", got.RotationY, want)
	}

	t.Run("release keeps inertia", func(t *testing.T) {
		a.HandleEvent(input.Event{Kind: input.PointerUp, PointerID: 1, X: 140, Y: 300})
		a.renderTick(ctx, epoch.Add(16*time.Millisecond))
		s := a.OrientationState()
		if s.Mode != orientation.Idle {
			t.Errorf("Mode = %v, want %v", s.Mode, orientation.Idle)
		}
		if s.RotationVelocity <= orientation.DefaultBaseSpin {
			t.Errorf("RotationVelocity = %f, want drag inertia", s.RotationVelocity)
		}
	})

	t.Run("hand preempts pointer", func(t *testing.T) {
		palm := gesture.State{HandDetected: true, IsOpen: true}
		a.gestureState.Store(&palm)
		a.renderTick(ctx, epoch.Add(32*time.Millisecond))
		if s := a.OrientationState(); s.Mode != orientation.HandGrab {
			t.Errorf("Mode = %v, want %v", s.Mode, orientation.HandGrab)
		}
	})
}

func TestApp_HandleEventDrops(t *testing.T) {
	a, _, _ := newTestApp(t, Config{})

	e := input.Event{Kind: input.Wheel, DeltaY: 1}
	for i := 0; i < EventBuffer; i++ {
		if !a.HandleEvent(e) {
			t.Fatalf("event %d dropped before the queue was full", i)
		}
	}
	if a.HandleEvent(e) {
		t.Error("HandleEvent should drop when the queue is full")
	}
	if a.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", a.Dropped())
	}

	a.renderTick(context.Background(), epoch)
	if !a.HandleEvent(e) {
		t.Error("render tick should drain the queue")
	}
}

func TestApp_SetTuning(t *testing.T) {
	s := newTestStore(t)
	a, cam, _ := newTestApp(t, Config{Store: s})

	t.Run("invalid tuning is rejected", func(t *testing.T) {
		bad := config.DefaultTuning()
		bad.Control.MinZoom = 100
		if err := a.SetTuning(bad); err == nil {
			t.Fatal("expected error for invalid tuning")
		}
		if diff := cmp.Diff(config.DefaultTuning(), a.Tuning()); diff != "" {
			t.Errorf("tuning changed (-want +got):\n%s", diff)
		}
	})

	tuning := config.DefaultTuning()
	tuning.Control.MaxZoom = 40
	tuning.Gesture.PinchDistance = 0.08
	if err := a.SetTuning(tuning); err != nil {
		t.Fatalf("SetTuning() error = %v", err)
	}

	t.Run("loops pick up tuning", func(t *testing.T) {
		a.renderTick(context.Background(), epoch)
		if got := a.ctrl.Tuning().MaxZoom; got != 40 {
			t.Errorf("controller MaxZoom = %f, want 40", got)
		}
		if got := a.OrientationState().ZoomLevel; got > 40 {
			t.Errorf("ZoomLevel = %f, want clamped to 40", got)
		}
		a.inferenceTick(context.Background(), epoch)
		if got := a.interp.Tuning().PinchDistance; got != 0.08 {
			t.Errorf("interpreter PinchDistance = %f, want 0.08", got)
		}
	})

	t.Run("tuning is persisted", func(t *testing.T) {
		var saved config.Tuning
		if err := s.Settings().GetJSON(store.SettingTuning, &saved); err != nil {
			t.Fatalf("GetJSON() error = %v", err)
		}
		if diff := cmp.Diff(tuning, saved); diff != "" {
			t.Errorf("saved tuning mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("interval change retimes inference", func(t *testing.T) {
		faster := tuning
		faster.Gesture.Interval = 50 * time.Millisecond
		if err := a.SetTuning(faster); err != nil {
			t.Fatalf("SetTuning() error = %v", err)
		}
		a.inferenceTick(context.Background(), epoch.Add(time.Hour))
		if got := a.inference.Interval(); got != 50*time.Millisecond {
			t.Errorf("inference interval = %v, want 50ms", got)
		}
		if got := cam.FPS(); got != 20 {
			t.Errorf("camera FPS = %d, want 20", got)
		}
	})
}

func TestApp_SetTuningSaveFailure(t *testing.T) {
	s := newTestStore(t)
	a, _, _ := newTestApp(t, Config{Store: s})
	s.Close()

	tuning := config.DefaultTuning()
	tuning.Control.MaxZoom = 40
	if err := a.SetTuning(tuning); err == nil {
		t.Fatal("expected error when the store is closed")
	}
	if diff := cmp.Diff(config.DefaultTuning(), a.Tuning()); diff != "" {
		t.Errorf("unsaved tuning became active (-want +got):\n%s", diff)
	}
}

func TestApp_PreviewFailuresCounted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	a, _, _ := newTestApp(t, Config{})
	empty := gocv.NewMat()
	defer empty.Close()
	a.SetCamera(capture.NewMockCamera([]*gocv.Mat{&empty}, true))

	if err := a.openTracking(epoch); err != nil {
		t.Fatalf("openTracking() error = %v", err)
	}
	defer a.closeTracking(epoch)

	tickAt(a, epoch, 3)
	if a.previewFailures != 3 {
		t.Errorf("previewFailures = %d, want 3", a.previewFailures)
	}
	if a.Preview().Latest() != nil {
		t.Error("an empty frame should not become the preview")
	}
}

func TestApp_TrackingUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("camera failure leaves pointer control", func(t *testing.T) {
		a, cam, _ := newTestApp(t, Config{})
		cam.FailOpen(errors.New("no device"))

		if err := a.Start(ctx, true); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer a.Stop()

		if a.TrackingEnabled() {
			t.Error("tracking should be off when the camera fails")
		}
		if !a.render.Running() {
			t.Error("render loop should keep running")
		}
		if err := a.SetTrackingEnabled(true); !errors.Is(err, ErrTrackingUnavailable) {
			t.Errorf("SetTrackingEnabled(true) = %v, want ErrTrackingUnavailable", err)
		}
	})

	t.Run("no estimator", func(t *testing.T) {
		a, _, _ := newTestApp(t, Config{})
		a.SetDetector(nil)
		if err := a.SetTrackingEnabled(true); !errors.Is(err, ErrTrackingUnavailable) {
			t.Errorf("SetTrackingEnabled(true) = %v, want ErrTrackingUnavailable", err)
		}
	})
}

func TestApp_TrackingToggle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	s := newTestStore(t)
	a, cam, det := newTestApp(t, Config{Store: s})
	det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx, false); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	if err := a.SetTrackingEnabled(true); err != nil {
		t.Fatalf("SetTrackingEnabled(true) error = %v", err)
	}
	if !TrackingPreference(s, false) {
		t.Error("enabling tracking should be saved")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !a.GestureState().HandDetected {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the hand to be detected")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !a.Snapshot().Tracking {
		t.Error("snapshot should report tracking")
	}

	if err := a.SetTrackingEnabled(false); err != nil {
		t.Fatalf("SetTrackingEnabled(false) error = %v", err)
	}
	if cam.IsOpen() {
		t.Error("camera should be released")
	}
	if diff := cmp.Diff(gesture.State{}, a.GestureState()); diff != "" {
		t.Errorf("disabling should publish the neutral state (-want +got):\n%s", diff)
	}
	if TrackingPreference(s, true) {
		t.Error("disabling tracking should be saved")
	}
}

func TestTrackingPreference_Default(t *testing.T) {
	if !TrackingPreference(nil, true) {
		t.Error("nil store should return the default")
	}
	if TrackingPreference(newTestStore(t), false) {
		t.Error("unset preference should return the default")
	}
}

// recordLive runs a scripted live session into s and returns the labels
// published on each tick.
func recordLive(t *testing.T, s *store.Store, script []detector.Result) (string, []string) {
	t.Helper()

	a, _, det := newTestApp(t, Config{Store: s, Recording: true})
	det.Script(script...)
	det.SetError(errors.New("script exhausted"))

	if err := a.openTracking(epoch); err != nil {
		t.Fatalf("openTracking() error = %v", err)
	}
	id := a.Session()
	if id == "" {
		t.Fatal("expected a recording session")
	}

	labels := make([]string, 0, len(script))
	now := epoch
	for range script {
		a.inferenceTick(context.Background(), now)
		labels = append(labels, gesture.Label(a.GestureState()))
		now = now.Add(gesture.DefaultInterval)
	}
	a.closeTracking(now)
	return id, labels
}

func liveScript() []detector.Result {
	palm := detector.OpenPalmLandmarks()
	fist := detector.FistLandmarks()
	pinch := detector.PinchLandmarks()

	var script []detector.Result
	for i := 0; i < 8; i++ {
		script = append(script, detector.Result{Hands: []detector.HandLandmarks{palm}})
	}
	for i := 0; i < 8; i++ {
		script = append(script, detector.Result{Hands: []detector.HandLandmarks{fist}})
	}
	for i := 0; i < 8; i++ {
		script = append(script, detector.Result{Hands: []detector.HandLandmarks{pinch}})
	}
	for i := 0; i < 7; i++ {
		script = append(script, detector.Result{})
	}
	return script
}

func TestApp_Recording(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	s := newTestStore(t)
	script := liveScript()
	id, _ := recordLive(t, s, script)

	sess, err := s.Sessions().GetByID(id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.Frames != len(script) {
		t.Errorf("Frames = %d, want %d", sess.Frames, len(script))
	}
	if sess.EndedAt == nil {
		t.Error("session should be finished")
	}

	frames, err := s.Sessions().Frames(id)
	if err != nil {
		t.Fatalf("Frames() error = %v", err)
	}
	for i, f := range frames {
		if want := time.Duration(i) * gesture.DefaultInterval; f.Offset != want {
			t.Errorf("frame %d offset = %v, want %v", i, f.Offset, want)
		}
		if hasHand := f.Hand != nil; hasHand != (len(script[i].Hands) > 0) {
			t.Errorf("frame %d hand = %v, want %v", i, hasHand, len(script[i].Hands) > 0)
		}
	}
}

func TestReplay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	s := newTestStore(t)
	id, live := recordLive(t, s, liveScript())
	frames, err := s.Sessions().Frames(id)
	if err != nil {
		t.Fatalf("Frames() error = %v", err)
	}

	steps, err := Replay(context.Background(), frames, config.DefaultTuning(), 60)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}

	t.Run("matches the live session", func(t *testing.T) {
		got := make([]string, len(steps))
		for i, st := range steps {
			got[i] = st.Label
		}
		if diff := cmp.Diff(live, got); diff != "" {
			t.Errorf("replayed labels mismatch (-live +replay):\n%s", diff)
		}
	})

	t.Run("labels", func(t *testing.T) {
		for _, want := range []string{gesture.LabelOpen, gesture.LabelClosed, gesture.LabelPinch, gesture.LabelNoHand} {
			found := false
			for _, st := range steps {
				if st.Label == want {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("label %q never produced", want)
			}
		}
	})

	t.Run("summary", func(t *testing.T) {
		sum := Summarize(steps)
		if sum.Frames != len(frames) {
			t.Errorf("Frames = %d, want %d", sum.Frames, len(frames))
		}
		if sum.HandFrames == 0 || sum.HandFrames >= sum.Frames {
			t.Errorf("HandFrames = %d, want between 0 and %d", sum.HandFrames, sum.Frames)
		}
		if want := frames[len(frames)-1].Offset; sum.Duration != want {
			t.Errorf("Duration = %v, want %v", sum.Duration, want)
		}
		if sum.Final != steps[len(steps)-1].Orientation {
			t.Error("Final should be the last orientation")
		}
	})
}

func TestReplay_Errors(t *testing.T) {
	t.Run("empty session", func(t *testing.T) {
		if _, err := Replay(context.Background(), nil, config.DefaultTuning(), 60); !errors.Is(err, ErrEmptySession) {
			t.Errorf("Replay(nil) = %v, want ErrEmptySession", err)
		}
	})

	t.Run("invalid tuning", func(t *testing.T) {
		bad := config.DefaultTuning()
		bad.Gesture.MissLimit = -1
		frames := []detector.RecordedFrame{{}}
		if _, err := Replay(context.Background(), frames, bad, 60); err == nil {
			t.Error("expected error for invalid tuning")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		frames := []detector.RecordedFrame{{}, {Offset: gesture.DefaultInterval}}
		if _, err := Replay(ctx, frames, config.DefaultTuning(), 60); !errors.Is(err, context.Canceled) {
			t.Errorf("Replay() = %v, want context.Canceled", err)
		}
	})

	t.Run("summary of nothing", func(t *testing.T) {
		if sum := Summarize(nil); sum.Frames != 0 || len(sum.Labels) != 0 {
			t.Errorf("Summarize(nil) = %+v", sum)
		}
	})
}

func TestSavedTuning(t *testing.T) {
	def := config.DefaultTuning()

	t.Run("nil store", func(t *testing.T) {
		if diff := cmp.Diff(def, SavedTuning(nil, def)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("saved tuning wins", func(t *testing.T) {
		s := newTestStore(t)
		saved := config.DefaultTuning()
		saved.Control.GrabRate = 9
		if err := s.Settings().SetJSON(store.SettingTuning, saved); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(saved, SavedTuning(s, def)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("invalid saved tuning is ignored", func(t *testing.T) {
		s := newTestStore(t)
		bad := config.DefaultTuning()
		bad.Gesture.RatioWindow = 0
		if err := s.Settings().SetJSON(store.SettingTuning, bad); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(def, SavedTuning(s, def)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}
