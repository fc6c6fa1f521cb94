package app

import (
	"time"

	"github.com/ayusman/handorbit/internal/detector"
	"github.com/ayusman/handorbit/internal/store"
)

// recordFlushSize is how many ticks are buffered before they are written.
const recordFlushSize = 20

// recorder appends inference ticks to a stored session. It is owned by the
// inference loop.
type recorder struct {
	sessions *store.SessionRepository
	session  *store.Session
	start    time.Time
	pending  []detector.RecordedFrame
}

func newRecorder(sessions *store.SessionRepository, now time.Time) (*recorder, error) {
	sess, err := sessions.Create(now.Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	return &recorder{
		sessions: sessions,
		session:  sess,
		start:    now,
		pending:  make([]detector.RecordedFrame, 0, recordFlushSize),
	}, nil
}

// add buffers one tick. hand may be nil for a miss.
func (r *recorder) add(now time.Time, hand *detector.HandLandmarks) error {
	r.pending = append(r.pending, detector.RecordedFrame{
		Offset: now.Sub(r.start),
		Hand:   hand,
	})
	if len(r.pending) < recordFlushSize {
		return nil
	}
	return r.flush()
}

func (r *recorder) flush() error {
	if len(r.pending) == 0 {
		return nil
	}
	err := r.sessions.AppendFrames(r.session.ID, r.pending)
	r.pending = r.pending[:0]
	return err
}

// finish writes what is left and closes the session.
func (r *recorder) finish(now time.Time) error {
	if err := r.flush(); err != nil {
		return err
	}
	return r.sessions.Finish(r.session.ID, now)
}
