// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/gateclock/scoreboard/internal/domain/scoreboard"
)

// StateHandler serves the scoreboard snapshot.
type StateHandler struct {
	deps Dependencies
}

// NewStateHandler creates a new state handler.
func NewStateHandler(deps Dependencies) *StateHandler {
	return &StateHandler{deps: deps}
}

// stateResponse is the snapshot plus the transient emphasis derived at
// the time of the last folded event.
type stateResponse struct {
	scoreboard.State
	HighlightBib string `json:"highlight_bib,omitempty"`
	DepartingBib string `json:"departing_bib,omitempty"`
}

// HandleGetState handles GET /state requests.
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	snap := h.deps.Snapshot()
	cfg := h.deps.CorrelationConfig()
	resp := stateResponse{State: snap}
	if bib, ok := snap.HighlightBib(snap.LastEventMillis, cfg); ok {
		resp.HighlightBib = bib
	}
	if bib, ok := snap.DepartingBib(snap.LastEventMillis, cfg); ok {
		resp.DepartingBib = bib
	}
	writeJSON(w, http.StatusOK, resp)
}
