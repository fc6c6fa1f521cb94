package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handorbit/internal/app"
	"github.com/ayusman/handorbit/internal/capture"
	"github.com/ayusman/handorbit/internal/config"
	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/input"
	"github.com/ayusman/handorbit/internal/store"
)

type fakeApp struct {
	mu       sync.Mutex
	events   []input.Event
	tuning   config.Tuning
	tracking bool
	preview  *capture.Preview
}

func newFakeApp() *fakeApp {
	return &fakeApp{tuning: config.DefaultTuning(), preview: capture.NewPreview()}
}

func (f *fakeApp) Snapshot() app.Snapshot {
	return app.Snapshot{Label: gesture.LabelNoHand, Tracking: f.TrackingEnabled()}
}

func (f *fakeApp) HandleEvent(e input.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return true
}

func (f *fakeApp) Events() []input.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]input.Event(nil), f.events...)
}

func (f *fakeApp) Tuning() config.Tuning           { return f.tuning }
func (f *fakeApp) SetTuning(t config.Tuning) error { f.tuning = t; return nil }
func (f *fakeApp) Dropped() int64                  { return 3 }
func (f *fakeApp) Preview() *capture.Preview       { return f.preview }

func (f *fakeApp) SetTrackingEnabled(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracking = on
	return nil
}

func (f *fakeApp) TrackingEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracking
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}

		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	// Create a temporary directory with a static file
	tmpDir, err := os.MkdirTemp("", "handorbit-server-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Create a test HTML file
	testContent := "<html><body>Hello, World!</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	// Create a CSS file for testing direct file access
	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/style.css", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		if rec.Body.String() != cssContent {
			t.Errorf("expected body %q, got %q", cssContent, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nonexistent.html", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_NoStaticDir(t *testing.T) {
	s := New(Config{})

	t.Run("root path returns 404 when no static dir configured", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("creates server with config", func(t *testing.T) {
		cfg := Config{StaticDir: "/some/path"}
		s := New(cfg)

		if s == nil {
			t.Fatal("expected non-nil server")
		}

		if s.config.StaticDir != cfg.StaticDir {
			t.Errorf("expected StaticDir %s, got %s", cfg.StaticDir, s.config.StaticDir)
		}
	})

	t.Run("server implements http.Handler", func(t *testing.T) {
		s := New(Config{})
		var _ http.Handler = s
	})
}

func TestServer_HealthWithApp(t *testing.T) {
	s := New(Config{App: newFakeApp()})
	defer s.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["tracking"] != false {
		t.Errorf("expected tracking false, got %v", response["tracking"])
	}
	if response["dropped_events"] != float64(3) {
		t.Errorf("expected dropped_events 3, got %v", response["dropped_events"])
	}
}

func TestServer_Routes(t *testing.T) {
	tmp := t.TempDir()
	st, err := store.New(filepath.Join(tmp, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	t.Run("registered with app and store", func(t *testing.T) {
		s := New(Config{App: newFakeApp(), Store: st})
		defer s.Close()

		for _, path := range []string{"/api/state", "/api/tuning", "/api/tracking", "/api/sessions"} {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("GET %s: expected status %d, got %d", path, http.StatusOK, rec.Code)
			}
		}
	})

	t.Run("absent without app and store", func(t *testing.T) {
		s := New(Config{})
		for _, path := range []string{"/api/state", "/api/control", "/api/stream", "/api/sessions"} {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusNotFound {
				t.Errorf("GET %s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
			}
		}
	})
}

func TestControlHandler(t *testing.T) {
	f := newFakeApp()
	srv := New(Config{App: f, BroadcastFPS: 50})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/control"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	t.Run("receives snapshots", func(t *testing.T) {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var snap app.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if snap.Label != gesture.LabelNoHand {
			t.Errorf("Label = %q, want %q", snap.Label, gesture.LabelNoHand)
		}
	})

	t.Run("forwards valid events", func(t *testing.T) {
		msgs := []string{
			`not json`,
			`{"kind":"teleport"}`,
			`{"kind":"wheel","delta_y":-3}`,
			`{"kind":"pointerdown","pointer_id":1,"primary":true,"x":10,"y":20}`,
		}
		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				t.Fatalf("WriteMessage() error = %v", err)
			}
		}

		deadline := time.Now().Add(2 * time.Second)
		for len(f.Events()) < 2 {
			if time.Now().After(deadline) {
				t.Fatalf("timed out, got %d events", len(f.Events()))
			}
			time.Sleep(10 * time.Millisecond)
		}
		got := f.Events()
		if len(got) != 2 || got[0].Kind != input.Wheel || got[1].Kind != input.PointerDown {
			t.Errorf("unexpected events %+v", got)
		}
	})

	t.Run("close disconnects clients", func(t *testing.T) {
		srv.Close()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		if n := srv.control.Clients(); n != 0 {
			// the reader unregisters asynchronously
			time.Sleep(50 * time.Millisecond)
			if n = srv.control.Clients(); n != 0 {
				t.Errorf("Clients() = %d after Close, want 0", n)
			}
		}
	})
}

func TestStreamHandler(t *testing.T) {
	p := capture.NewPreview()
	h := NewStreamHandler(p, 50)

	t.Run("rejects non-GET", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})

	t.Run("writes the latest frame once", func(t *testing.T) {
		p.Store([]byte("jpeg-bytes"))

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
			t.Errorf("unexpected Content-Type %q", ct)
		}
		body := rec.Body.String()
		if strings.Count(body, "--frame") != 1 {
			t.Errorf("expected one part, got body %q", body)
		}
		if !strings.Contains(body, "Content-Length: 10\r\n\r\njpeg-bytes\r\n") {
			t.Errorf("unexpected part %q", body)
		}
	})
}
