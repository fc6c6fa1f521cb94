package report

import (
	"strings"
	"testing"
	"time"

	"github.com/ayusman/handorbit/internal/app"
	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/orientation"
	"github.com/ayusman/handorbit/internal/store"
)

func TestSessions(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var b strings.Builder
		if err := Sessions(&b, nil); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(b.String(), "No recorded sessions") {
			t.Errorf("unexpected output %q", b.String())
		}
	})

	t.Run("rows", func(t *testing.T) {
		start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		end := start.Add(90 * time.Second)
		sessions := []*store.Session{
			{ID: "a1", Name: "finished", Frames: 900, StartedAt: start, EndedAt: &end},
			{ID: "b2", Name: "running", Frames: 12, StartedAt: start},
		}

		var b strings.Builder
		if err := Sessions(&b, sessions); err != nil {
			t.Fatal(err)
		}
		out := b.String()
		for _, want := range []string{"ID", "a1", "finished", "900", "1m30s", "b2", "open"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})
}

func TestReplay(t *testing.T) {
	steps := make([]app.ReplayStep, 10)
	for i := range steps {
		steps[i] = app.ReplayStep{
			Offset:      time.Duration(i) * gesture.DefaultInterval,
			Label:       gesture.LabelNoHand,
			Orientation: orientation.State{ZoomLevel: 32, RotationY: float64(i) / 10},
		}
	}
	for i := 0; i < 4; i++ {
		steps[i].Label = gesture.LabelOpen
		steps[i].Gesture.HandDetected = true
	}

	t.Run("summary and rows", func(t *testing.T) {
		var b strings.Builder
		if err := Replay(&b, &store.Session{Name: "demo"}, steps, 5); err != nil {
			t.Fatal(err)
		}
		out := b.String()
		for _, want := range []string{
			"Replay demo",
			"frames    10 (4 with a hand)",
			"duration  900ms",
			"NO HAND 6, OPEN 4",
			"OFFSET",
			"0.900",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		// rows 0, 5 and the last one
		if n := strings.Count(out, "idle"); n != 4 {
			t.Errorf("expected 3 rows plus the summary mode, got %d:\n%s", n, out)
		}
	})

	t.Run("summary only", func(t *testing.T) {
		var b strings.Builder
		if err := Replay(&b, &store.Session{Name: "demo"}, steps, 0); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(b.String(), "OFFSET") {
			t.Error("every=0 should omit the step table")
		}
	})
}
