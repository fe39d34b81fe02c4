package api

import (
	"net/http"

	"github.com/snarg/voice2txt/internal/transcribe"
)

// ProgressResponse is the body of GET /api/v1/progress.
type ProgressResponse struct {
	transcribe.Snapshot
	Percent float64 `json:"percent"`
}

type ProgressHandler struct {
	tracker *transcribe.Tracker
}

func NewProgressHandler(tracker *transcribe.Tracker) *ProgressHandler {
	return &ProgressHandler{tracker: tracker}
}

func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.tracker == nil {
		WriteError(w, http.StatusServiceUnavailable, "no run in progress")
		return
	}
	snap := h.tracker.Snapshot()
	resp := ProgressResponse{Snapshot: snap}
	if snap.Total > 0 {
		resp.Percent = float64(snap.Logged) * 100 / float64(snap.Total)
	}
	WriteJSON(w, http.StatusOK, resp)
}
