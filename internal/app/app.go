// Package app wires the camera, gesture interpreter, input aggregator and
// orientation controller into two independently clocked loops.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/handorbit/internal/capture"
	"github.com/ayusman/handorbit/internal/config"
	"github.com/ayusman/handorbit/internal/detector"
	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/input"
	"github.com/ayusman/handorbit/internal/loop"
	"github.com/ayusman/handorbit/internal/orientation"
	"github.com/ayusman/handorbit/internal/store"
)

// Pipeline constants.
const (
	// EventBuffer is the capacity of the device event queue.
	EventBuffer = 256
	// DefaultRenderFPS is used when Config.RenderFPS is not set.
	DefaultRenderFPS = 60
	// logEvery rate-limits repeated per-frame errors.
	logEvery = 50
)

// ErrTrackingUnavailable is returned when hand tracking cannot be enabled.
var ErrTrackingUnavailable = errors.New("hand tracking unavailable")

// Config holds configuration options for the application.
type Config struct {
	Store           *store.Store
	Camera          capture.Config
	RenderFPS       int
	Recording       bool
	MotionThreshold float64
	Detector        detector.Config
	Tuning          config.Tuning
}

// Snapshot is everything the rendering host needs for one frame.
type Snapshot struct {
	Orientation orientation.State `json:"orientation"`
	Gesture     gesture.State     `json:"gesture"`
	Label       string            `json:"label"`
	Tracking    bool              `json:"tracking"`
	Timestamp   int64             `json:"timestamp"`
}

// App owns the inference and render loops. The interpreter belongs to the
// inference loop and the aggregator and controller to the render loop; they
// exchange state only through atomically swapped snapshots.
type App struct {
	config   Config
	camera   capture.Camera
	detector detector.Detector
	gate     *capture.MotionGate
	preview  *capture.Preview

	interp *gesture.Interpreter
	agg    *input.Aggregator
	ctrl   *orientation.Controller

	gestureState atomic.Pointer[gesture.State]
	orientState  atomic.Pointer[orientation.State]
	tuning       atomic.Pointer[config.Tuning]

	// last tuning applied by each loop
	inferTuning  *config.Tuning
	renderTuning *config.Tuning

	events  chan input.Event
	dropped atomic.Int64

	inference *loop.Loop
	render    *loop.Loop
	rootCtx   context.Context

	tracking   atomic.Bool
	lastRender time.Time
	lastLabel  string
	recorder   *recorder

	// estimator and preview failures, for rate-limited logging
	failures        int
	previewFailures int

	callbacks []func(label string)
	cbMu      sync.RWMutex

	mu sync.Mutex
}

// New creates a new App. Tuning overrides saved in the store replace the
// configured tuning.
func New(cfg Config) *App {
	if cfg.Tuning.Validate() != nil {
		cfg.Tuning = config.DefaultTuning()
	}

	a := newApp(cfg, SavedTuning(cfg.Store, cfg.Tuning))
	a.camera = capture.NewCamera(cfg.Camera)

	if mp, err := detector.NewMediaPipeDetector(cfg.Detector); err == nil {
		a.detector = mp
		log.Println("Using MediaPipe hand detection")
	} else {
		log.Printf("MediaPipe not available (%v), pointer control only", err)
	}

	return a
}

// newApp builds the pipeline without a camera or estimator.
func newApp(cfg Config, tuning config.Tuning) *App {
	if cfg.RenderFPS <= 0 {
		cfg.RenderFPS = DefaultRenderFPS
	}
	a := &App{
		config:  cfg,
		gate:    capture.NewMotionGate(cfg.MotionThreshold, capture.DefaultIdleAfter),
		preview: capture.NewPreview(),
		interp:  gesture.NewInterpreter(tuning.Gesture),
		agg:     input.NewAggregator(0, 0),
		ctrl:    orientation.NewController(tuning.Control),
		events:  make(chan input.Event, EventBuffer),
		rootCtx: context.Background(),
	}
	a.tuning.Store(&tuning)
	a.inferTuning = &tuning
	a.renderTuning = &tuning
	a.gestureState.Store(&gesture.State{})
	initial := a.ctrl.State()
	a.orientState.Store(&initial)

	a.inference = loop.New("inference", inferenceInterval(tuning), a.inferenceTick)
	a.render = loop.New("render", time.Second/time.Duration(cfg.RenderFPS), a.renderTick)
	return a
}

// SetDetector sets the hand estimator. It must be called while tracking is off.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// SetCamera replaces the frame source. It must be called while tracking is off.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// RegisterLabelCallback registers fn to be called whenever the gesture
// label changes. Callbacks run on the inference loop and must not block.
func (a *App) RegisterLabelCallback(fn func(label string)) {
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	a.callbacks = append(a.callbacks, fn)
}

// Start runs the render loop and, when enabled, hand tracking. A tracking
// failure is logged and leaves pointer control running.
func (a *App) Start(ctx context.Context, tracking bool) error {
	a.mu.Lock()
	a.rootCtx = ctx
	a.mu.Unlock()

	if err := a.render.Start(ctx); err != nil {
		return fmt.Errorf("start render loop: %w", err)
	}

	if !tracking {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.startTracking(); err != nil {
		log.Printf("Hand tracking disabled: %v", err)
	}
	return nil
}

// Stop halts both loops and releases the camera and estimator.
func (a *App) Stop() {
	a.mu.Lock()
	if a.tracking.Load() {
		a.stopTracking()
	}
	a.mu.Unlock()

	a.render.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.gate.Close()
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}
	log.Println("Pipeline stopped")
}

// TrackingEnabled reports whether the inference loop is running.
func (a *App) TrackingEnabled() bool {
	return a.tracking.Load()
}

// SetTrackingEnabled starts or stops hand tracking. Disabling publishes the
// neutral gesture state.
func (a *App) SetTrackingEnabled(enabled bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if enabled == a.tracking.Load() {
		return nil
	}
	if enabled {
		if err := a.startTracking(); err != nil {
			return err
		}
	} else {
		a.stopTracking()
	}
	a.persistTracking(enabled)
	return nil
}

// startTracking must be called with a.mu held.
func (a *App) startTracking() error {
	a.inference = loop.New("inference", inferenceInterval(a.Tuning()), a.inferenceTick)
	if err := a.openTracking(time.Now()); err != nil {
		return err
	}
	if err := a.inference.Start(a.rootCtx); err != nil {
		a.closeTracking(time.Now())
		return err
	}
	a.tracking.Store(true)
	return nil
}

// stopTracking must be called with a.mu held.
func (a *App) stopTracking() {
	a.inference.Stop()
	a.tracking.Store(false)
	a.closeTracking(time.Now())
}

// openTracking prepares the camera, interpreter and recorder for the
// inference loop.
func (a *App) openTracking(now time.Time) error {
	if a.detector == nil {
		return fmt.Errorf("%w: no hand estimator", ErrTrackingUnavailable)
	}
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("%w: %v", ErrTrackingUnavailable, err)
	}
	a.camera.SetFPS(int(time.Second / a.inference.Interval()))
	a.gate.Reset()
	a.interp.Reset()
	a.failures = 0
	a.previewFailures = 0

	if a.config.Recording && a.config.Store != nil {
		rec, err := newRecorder(a.config.Store.Sessions(), now)
		if err != nil {
			log.Printf("Recording disabled: %v", err)
		} else {
			a.recorder = rec
			log.Printf("Recording session %s", rec.session.ID)
		}
	}
	log.Println("Hand tracking started")
	return nil
}

// closeTracking releases what openTracking acquired and publishes the
// neutral gesture state.
func (a *App) closeTracking(now time.Time) {
	if a.recorder != nil {
		if err := a.recorder.finish(now); err != nil {
			log.Printf("Error finishing session: %v", err)
		}
		a.recorder = nil
	}
	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.interp.Reset()
	a.publishGesture(gesture.State{})
	log.Println("Hand tracking stopped")
}

// SavedTuning returns the tuning last set at runtime, or def when none was
// saved or the saved value no longer validates.
func SavedTuning(s *store.Store, def config.Tuning) config.Tuning {
	if s == nil {
		return def
	}
	var saved config.Tuning
	if err := s.Settings().GetJSON(store.SettingTuning, &saved); err != nil {
		return def
	}
	if err := saved.Validate(); err != nil {
		log.Printf("Ignoring saved tuning: %v", err)
		return def
	}
	log.Println("Loaded saved tuning")
	return saved
}

// TrackingPreference returns the tracking flag last set at runtime, or def
// when none was saved.
func TrackingPreference(s *store.Store, def bool) bool {
	if s == nil {
		return def
	}
	var enabled bool
	if err := s.Settings().GetJSON(store.SettingTracking, &enabled); err != nil {
		return def
	}
	return enabled
}

func (a *App) persistTracking(enabled bool) {
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Settings().SetJSON(store.SettingTracking, enabled); err != nil {
		log.Printf("Error saving tracking setting: %v", err)
	}
}

// HandleEvent queues a device event for the render loop. It never blocks;
// when the queue is full the event is dropped and false is returned.
func (a *App) HandleEvent(e input.Event) bool {
	select {
	case a.events <- e:
		return true
	default:
		if n := a.dropped.Add(1); n%logEvery == 1 {
			log.Printf("Event queue full, %d events dropped", n)
		}
		return false
	}
}

// Dropped returns how many device events were discarded.
func (a *App) Dropped() int64 {
	return a.dropped.Load()
}

// GestureState returns the latest published gesture state.
func (a *App) GestureState() gesture.State {
	return *a.gestureState.Load()
}

// OrientationState returns the latest published orientation state.
func (a *App) OrientationState() orientation.State {
	return *a.orientState.Load()
}

// Snapshot returns the current state for the rendering host.
func (a *App) Snapshot() Snapshot {
	g := a.GestureState()
	return Snapshot{
		Orientation: a.OrientationState(),
		Gesture:     g,
		Label:       gesture.Label(g),
		Tracking:    a.TrackingEnabled(),
		Timestamp:   time.Now().UnixMilli(),
	}
}

// Tuning returns the active tuning.
func (a *App) Tuning() config.Tuning {
	return *a.tuning.Load()
}

// SetTuning validates, saves and publishes new tuning; each loop applies it
// at the start of its next tick. When a store is configured and saving fails
// the active tuning is left unchanged.
func (a *App) SetTuning(t config.Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetJSON(store.SettingTuning, t); err != nil {
			return fmt.Errorf("save tuning: %w", err)
		}
	}
	a.tuning.Store(&t)
	return nil
}

// Preview returns the latest camera frame holder.
func (a *App) Preview() *capture.Preview {
	return a.preview
}

// Session returns the id of the session being recorded, if any.
func (a *App) Session() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recorder == nil {
		return ""
	}
	return a.recorder.session.ID
}

func (a *App) publishGesture(s gesture.State) {
	a.gestureState.Store(&s)

	label := gesture.Label(s)
	if label == a.lastLabel {
		return
	}
	a.lastLabel = label

	a.cbMu.RLock()
	callbacks := a.callbacks
	a.cbMu.RUnlock()
	for _, fn := range callbacks {
		fn(label)
	}
}
