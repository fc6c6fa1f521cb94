package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing parameters.
const (
	// BlurSize is the Gaussian kernel used to suppress sensor noise.
	BlurSize = 21
	// DiffThreshold is the per-pixel intensity change that counts as motion.
	DiffThreshold = 25
	// DefaultIdleAfter is how long a still scene keeps the gate open.
	DefaultIdleAfter = 2 * time.Second
)

// MotionGate decides whether a frame is worth sending to the hand
// estimator. It stays open while the scene changes and for idleAfter after
// the last change; a threshold of zero or less keeps it open permanently.
type MotionGate struct {
	threshold  float64 // percent of pixels that must change
	idleAfter  time.Duration
	prevGray   gocv.Mat
	hasPrev    bool
	lastMotion time.Time
	change     float64
	mu         sync.Mutex
}

// NewMotionGate creates an open gate.
func NewMotionGate(threshold float64, idleAfter time.Duration) *MotionGate {
	if idleAfter <= 0 {
		idleAfter = DefaultIdleAfter
	}
	return &MotionGate{
		threshold: threshold,
		idleAfter: idleAfter,
		prevGray:  gocv.NewMat(),
	}
}

// Observe compares frame with the previous one and reports whether the
// gate is open at now. The first frame always opens the gate.
func (g *MotionGate) Observe(now time.Time, frame *gocv.Mat) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.threshold <= 0 {
		return true
	}
	if frame == nil || frame.Empty() {
		return g.openAt(now)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	grayscale(frame, &blurred)

	if !g.hasPrev {
		blurred.CopyTo(&g.prevGray)
		g.hasPrev = true
		g.lastMotion = now
		g.change = 0
		return true
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, g.prevGray, &diff)
	gocv.Threshold(diff, &diff, DiffThreshold, 255, gocv.ThresholdBinary)

	g.change = float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100.0
	blurred.CopyTo(&g.prevGray)

	if g.change > g.threshold {
		g.lastMotion = now
	}
	return g.openAt(now)
}

func (g *MotionGate) openAt(now time.Time) bool {
	return g.hasPrev && now.Sub(g.lastMotion) <= g.idleAfter
}

// Change returns the percentage of pixels that changed in the last Observe.
func (g *MotionGate) Change() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.change
}

// Reset forgets the baseline frame; the next Observe opens the gate again.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasPrev = false
	g.change = 0
}

// Close releases the baseline frame.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prevGray.Close()
	g.prevGray = gocv.NewMat()
	g.hasPrev = false
}

// grayscale converts frame to a blurred single-channel image in dst.
func grayscale(frame *gocv.Mat, dst *gocv.Mat) {
	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, dst, image.Point{X: BlurSize, Y: BlurSize}, 0, 0, gocv.BorderDefault)
}
