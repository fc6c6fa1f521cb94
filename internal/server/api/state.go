package api

import (
	"net/http"

	"github.com/ayusman/handorbit/internal/app"
)

// StateSource provides the current pipeline snapshot.
type StateSource interface {
	Snapshot() app.Snapshot
}

// StateHandler serves GET /api/state.
type StateHandler struct {
	source StateSource
}

// NewStateHandler creates a StateHandler.
func NewStateHandler(s StateSource) *StateHandler {
	return &StateHandler{source: s}
}

func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.source.Snapshot())
}
