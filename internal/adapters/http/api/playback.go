// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// PlaybackHandler drives the replay scheduler over HTTP. All routes
// return 409 when the active source is a live transport.
type PlaybackHandler struct {
	deps Dependencies
}

// NewPlaybackHandler creates a new playback handler.
func NewPlaybackHandler(deps Dependencies) *PlaybackHandler {
	return &PlaybackHandler{deps: deps}
}

type playbackInfo struct {
	PositionMillis int64 `json:"position_millis"`
	DurationMillis int64 `json:"duration_millis"`
}

type seekRequest struct {
	PositionMillis int64 `json:"position_millis"`
}

type speedRequest struct {
	Multiplier float64 `json:"multiplier"`
}

// HandleInfo handles GET /replay requests.
func (h *PlaybackHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	pb, err := h.deps.Playback()
	if err != nil {
		writeError(w, http.StatusConflict, "NOT_REPLAY", err)
		return
	}
	writeJSON(w, http.StatusOK, playbackInfo{
		PositionMillis: pb.Position(),
		DurationMillis: pb.Duration(),
	})
}

// HandleControl handles POST /replay/{play,pause,seek,speed} requests.
func (h *PlaybackHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	pb, err := h.deps.Playback()
	if err != nil {
		writeError(w, http.StatusConflict, "NOT_REPLAY", err)
		return
	}

	action := strings.TrimPrefix(r.URL.Path, "/replay/")
	switch action {
	case "play":
		err = pb.Play()
	case "pause":
		err = pb.Pause()
	case "seek":
		var req seekRequest
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", ErrBadRequest)
			return
		}
		err = pb.Seek(req.PositionMillis)
	case "speed":
		var req speedRequest
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", ErrBadRequest)
			return
		}
		err = pb.SetSpeed(req.Multiplier)
	default:
		writeError(w, http.StatusNotFound, "UNKNOWN_ACTION", fmt.Errorf("unknown playback action %q", action))
		return
	}

	if err != nil {
		writeError(w, http.StatusConflict, "PLAYBACK_ERROR", err)
		return
	}
	writeJSON(w, http.StatusOK, playbackInfo{
		PositionMillis: pb.Position(),
		DurationMillis: pb.Duration(),
	})
}
