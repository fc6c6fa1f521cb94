// Package capture reads camera frames for the inference loop and keeps the
// latest one around for the preview stream.
package capture

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings. The rate matches the gesture interpreter's
// throttle so the camera is never read faster than frames can be used.
const (
	DefaultFPS    = 10
	DefaultWidth  = 640
	DefaultHeight = 480
	// DefaultReopenAfter is how many consecutive failed reads make the
	// camera reopen the device.
	DefaultReopenAfter = 30
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrFrameUnavailable is returned when the device produced no usable frame.
	ErrFrameUnavailable = errors.New("no frame available")
)

// Config selects and sizes the capture device.
type Config struct {
	DeviceID    int `yaml:"device_id"`
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	ReopenAfter int `yaml:"reopen_after"`
}

// DefaultConfig returns the settings for device 0 at 640x480.
func DefaultConfig() Config {
	return Config{
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		ReopenAfter: DefaultReopenAfter,
	}
}

// Validate rejects negative sizes and device ids.
func (c Config) Validate() error {
	if c.DeviceID < 0 {
		return fmt.Errorf("camera device id must not be negative, got %d", c.DeviceID)
	}
	if c.Width < 0 || c.Height < 0 || c.ReopenAfter < 0 {
		return fmt.Errorf("camera size and reopen_after must not be negative")
	}
	return nil
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Width == 0 {
		c.Width = def.Width
	}
	if c.Height == 0 {
		c.Height = def.Height
	}
	if c.ReopenAfter == 0 {
		c.ReopenAfter = def.ReopenAfter
	}
	return c
}

// Camera is a source of frames for the inference loop.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// device reads frames from an OpenCV capture device. A device that keeps
// failing to produce frames (for example after being unplugged) is closed
// and reopened on the next read.
type device struct {
	config   Config
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	fps      int
	failures int
}

// NewCamera creates a closed Camera for the configured device.
func NewCamera(cfg Config) Camera {
	return &device{
		config: cfg.withDefaults(),
		fps:    DefaultFPS,
	}
}

func (d *device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture != nil {
		return nil
	}
	return d.open()
}

// open must be called with d.mu held.
func (d *device) open() error {
	capture, err := gocv.OpenVideoCapture(d.config.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", d.config.DeviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open camera %d: %w", d.config.DeviceID, ErrCameraNotOpen)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(d.config.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(d.config.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(d.fps))

	d.capture = capture
	d.failures = 0
	return nil
}

func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return nil
	}
	err := d.capture.Close()
	d.capture = nil
	return err
}

// ReadFrame reads a single frame. The caller is responsible for closing the
// returned Mat.
func (d *device) ReadFrame() (*gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := d.capture.Read(&mat); ok && !mat.Empty() {
		d.failures = 0
		return &mat, nil
	}
	mat.Close()

	d.failures++
	if d.failures >= d.config.ReopenAfter {
		log.Printf("Camera %d produced no frame %d times, reopening", d.config.DeviceID, d.failures)
		d.capture.Close()
		d.capture = nil
		if err := d.open(); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("camera %d: %w", d.config.DeviceID, ErrFrameUnavailable)
}

// SetFPS sets the capture rate. Values less than or equal to 0 are ignored.
func (d *device) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.fps = fps
	if d.capture != nil {
		d.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (d *device) FPS() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fps
}

func (d *device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capture != nil
}
