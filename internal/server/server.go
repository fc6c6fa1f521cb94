// Package server provides the HTTP and websocket surface of handorbit.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/handorbit/internal/capture"
	"github.com/ayusman/handorbit/internal/input"
	"github.com/ayusman/handorbit/internal/server/api"
	"github.com/ayusman/handorbit/internal/store"
)

// DefaultBroadcastFPS is the snapshot rate on /api/control when none is set.
const DefaultBroadcastFPS = 30

// App is the part of the pipeline the server exposes.
type App interface {
	api.StateSource
	api.TuningStore
	api.TrackingSwitch
	HandleEvent(e input.Event) bool
	Dropped() int64
	Preview() *capture.Preview
}

// Config holds the server configuration.
type Config struct {
	StaticDir    string
	Store        *store.Store
	App          App
	BroadcastFPS int
}

// Server represents the HTTP server for handorbit.
type Server struct {
	config  Config
	mux     *http.ServeMux
	start   time.Time
	control *ControlHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.BroadcastFPS <= 0 {
		config.BroadcastFPS = DefaultBroadcastFPS
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.App != nil {
		s.mux.Handle("/api/state", api.NewStateHandler(s.config.App))
		s.mux.Handle("/api/tuning", api.NewTuningHandler(s.config.App))
		s.mux.Handle("/api/tracking", api.NewTrackingHandler(s.config.App))
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.App.Preview(), capture.DefaultFPS))

		s.control = NewControlHandler(s.config.App, s.config.BroadcastFPS)
		s.mux.Handle("/api/control", s.control)
	}

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["tracking"] = s.config.App.TrackingEnabled()
		response["dropped_events"] = s.config.App.Dropped()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Close stops the snapshot broadcaster and disconnects control clients.
func (s *Server) Close() {
	if s.control != nil {
		s.control.Close()
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	// Control sockets are hijacked and not tracked by Shutdown.
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
