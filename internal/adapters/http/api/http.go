// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/gateclock/scoreboard/internal/app"
	"github.com/gateclock/scoreboard/internal/domain/scoreboard"
	"github.com/gateclock/scoreboard/internal/provider"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Snapshot returns the current scoreboard state.
	Snapshot() scoreboard.State

	// CorrelationConfig returns the windows used to derive transient
	// emphasis from the snapshot.
	CorrelationConfig() scoreboard.Config

	// ProviderStatus returns the feed connection status.
	ProviderStatus() provider.Status

	// Errors returns the retained feed error history, newest last.
	Errors() []service.ErrorRecord

	// ClearErrors drops the retained error history.
	ClearErrors()

	// Playback returns the replay controls, or an error on live sources.
	Playback() (Playback, error)

	// GetStats returns service statistics for monitoring.
	GetStats() map[string]interface{}
}

// Playback is the subset of the replay scheduler the API drives.
type Playback = service.Playback

// Server wires HTTP routes for the scoreboard API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	stateHandler    *StateHandler
	errorsHandler   *FeedErrorsHandler
	playbackHandler *PlaybackHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(deps),
		statsHandler:    NewStatsHandler(deps),
		stateHandler:    NewStateHandler(deps),
		errorsHandler:   NewFeedErrorsHandler(deps),
		playbackHandler: NewPlaybackHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/state", MetricsMiddleware(s.stateHandler.HandleGetState, "state"))
	mux.HandleFunc("/errors", MetricsMiddleware(s.errorsHandler.HandleErrors, "errors"))
	mux.HandleFunc("/replay", MetricsMiddleware(s.playbackHandler.HandleInfo, "replay"))
	mux.HandleFunc("/replay/", MetricsMiddleware(s.playbackHandler.HandleControl, "replay"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
