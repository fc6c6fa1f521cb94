package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/handorbit/internal/app"
)

// TrackingSwitch turns hand tracking on and off.
type TrackingSwitch interface {
	TrackingEnabled() bool
	SetTrackingEnabled(enabled bool) error
}

type trackingBody struct {
	Enabled *bool `json:"enabled"`
}

type trackingResponse struct {
	Enabled bool `json:"enabled"`
}

// TrackingHandler serves GET and PUT /api/tracking.
type TrackingHandler struct {
	tracking TrackingSwitch
}

// NewTrackingHandler creates a TrackingHandler.
func NewTrackingHandler(t TrackingSwitch) *TrackingHandler {
	return &TrackingHandler{tracking: t}
}

func (h *TrackingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req trackingBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		if err := h.tracking.SetTrackingEnabled(*req.Enabled); err != nil {
			if errors.Is(err, app.ErrTrackingUnavailable) {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to change tracking")
			return
		}
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, trackingResponse{Enabled: h.tracking.TrackingEnabled()})
}
