package capture

import (
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// JPEG is one encoded preview frame. Seq increases with every publish.
type JPEG struct {
	Seq  uint64
	Data []byte
}

// Preview holds the most recent camera frame as JPEG so that viewers never
// read the device themselves.
type Preview struct {
	latest atomic.Pointer[JPEG]
	mu     sync.Mutex
	seq    uint64
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{}
}

// Publish encodes frame and makes it the latest preview.
func (p *Preview) Publish(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return ErrFrameUnavailable
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return err
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	p.Store(data)
	return nil
}

// Store makes data the latest preview.
func (p *Preview) Store(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.latest.Store(&JPEG{Seq: p.seq, Data: data})
}

// Latest returns the newest frame, or nil before the first publish.
func (p *Preview) Latest() *JPEG {
	return p.latest.Load()
}
