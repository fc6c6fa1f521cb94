// Package loop provides a cancellable fixed-rate scheduler.
package loop

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrRunning is returned by Start when the loop is already running.
var ErrRunning = errors.New("loop already running")

// Func is called on every tick. ctx is cancelled when the loop stops, so
// blocking work inside Func should honour it.
type Func func(ctx context.Context, now time.Time)

// Loop calls a Func at a fixed interval until stopped. Ticks that arrive
// while Func is still running are dropped rather than queued.
type Loop struct {
	name     string
	interval time.Duration
	fn       Func

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	reset  chan time.Duration
}

var closed = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// New creates a stopped loop. A non-positive interval is treated as one second.
func New(name string, interval time.Duration, fn Func) *Loop {
	if interval <= 0 {
		interval = time.Second
	}
	return &Loop{
		name:     name,
		interval: interval,
		fn:       fn,
		done:     closed,
		reset:    make(chan time.Duration, 1),
	}
}

// Interval returns the tick interval.
func (l *Loop) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// SetInterval changes the tick interval. A running loop switches at once.
// Non-positive intervals are ignored.
func (l *Loop) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if d == l.interval {
		return
	}
	l.interval = d
	select {
	case <-l.reset:
	default:
	}
	l.reset <- d
}

// Start runs the loop in a new goroutine until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	select {
	case <-l.reset:
	default:
	}
	go l.run(ctx, cancel, done, l.interval)

	log.Printf("%s loop started (%v)", l.name, l.interval)
	return nil
}

func (l *Loop) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		l.mu.Lock()
		if l.done == done {
			l.cancel = nil
		}
		l.mu.Unlock()
		cancel()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-l.reset:
			ticker.Reset(d)
		case now := <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			l.fn(ctx, now)
		}
	}
}

// Stop cancels the loop and waits for the current tick to finish.
// Stopping a stopped loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Printf("%s loop stopped", l.name)
}

// Running reports whether the loop is running.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Done returns a channel that is closed when the current run ends.
// For a loop that was never started the channel is already closed.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}
