// Package tray provides the system tray menu for handorbit: a hand
// tracking switch and the current gesture label.
package tray

import (
	"log"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle func(enabled bool) error
	onOpen   func()
	onQuit   func()
	tracking bool
	label    string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle  *systray.MenuItem
	menuGesture *systray.MenuItem
}

// New creates a Tray showing the given tracking state.
func New(tracking bool) *Tray {
	return &Tray{tracking: tracking}
}

// OnToggle sets the function called when hand tracking is switched from the
// menu. A returned error leaves the switch where it was.
func (t *Tray) OnToggle(fn func(enabled bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback for the "Open viewer" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("handorbit")
	systray.SetTooltip("handorbit hand-tracked viewer")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.tracking), "Turn hand tracking on or off")
	systray.AddSeparator()
	t.menuGesture = systray.AddMenuItem(gestureTitle(t.label), "Current hand gesture")
	t.menuGesture.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open viewer...", "Open the viewer in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit handorbit")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// handleToggle flips hand tracking through the callback.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	want := !t.tracking
	callback := t.onToggle
	t.mu.RUnlock()

	// Call the callback outside the lock; it may start the camera.
	if callback != nil {
		if err := callback(want); err != nil {
			log.Printf("Error switching hand tracking: %v", err)
			return
		}
	}
	t.SetTracking(want)
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetTracking updates the switch, e.g. after tracking changed over the API.
func (t *Tray) SetTracking(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracking = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// SetGesture shows label as the current gesture.
func (t *Tray) SetGesture(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.label = label
	if t.menuGesture != nil {
		t.menuGesture.SetTitle(gestureTitle(label))
	}
}

// Tracking returns the state shown by the switch.
func (t *Tray) Tracking() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tracking
}

// Gesture returns the label currently shown.
func (t *Tray) Gesture() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.label
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Hand tracking"
	}
	return "○ Hand tracking"
}

func gestureTitle(label string) string {
	if label == "" {
		return "Gesture: none"
	}
	return "Gesture: " + label
}
