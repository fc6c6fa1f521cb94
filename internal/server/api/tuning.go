package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/handorbit/internal/config"
)

// TuningStore reads and replaces the active tuning.
type TuningStore interface {
	Tuning() config.Tuning
	SetTuning(t config.Tuning) error
}

// TuningHandler serves /api/tuning.
//
//	GET    returns the active tuning
//	PUT    merges the body over the active tuning
//	DELETE restores the built-in defaults
type TuningHandler struct {
	tuning TuningStore
}

// NewTuningHandler creates a TuningHandler.
func NewTuningHandler(t TuningStore) *TuningHandler {
	return &TuningHandler{tuning: t}
}

func (h *TuningHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.tuning.Tuning())
	case http.MethodPut:
		t := h.tuning.Tuning()
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		h.apply(w, t)
	case http.MethodDelete:
		h.apply(w, config.DefaultTuning())
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *TuningHandler) apply(w http.ResponseWriter, t config.Tuning) {
	if err := h.tuning.SetTuning(t); err != nil {
		if errors.Is(err, config.ErrInvalidTuning) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save tuning")
		return
	}
	writeJSON(w, http.StatusOK, h.tuning.Tuning())
}
