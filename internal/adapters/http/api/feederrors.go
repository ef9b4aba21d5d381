// Package api declares HTTP contracts and route registration helpers.
package api

import "net/http"

// FeedErrorsHandler serves and clears the retained feed error history.
type FeedErrorsHandler struct {
	deps Dependencies
}

// NewFeedErrorsHandler creates a new feed errors handler.
func NewFeedErrorsHandler(deps Dependencies) *FeedErrorsHandler {
	return &FeedErrorsHandler{deps: deps}
}

// HandleErrors handles GET and DELETE /errors requests.
func (h *FeedErrorsHandler) HandleErrors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"errors": h.deps.Errors(),
		})
	case http.MethodDelete:
		h.deps.ClearErrors()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}
