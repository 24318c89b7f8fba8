package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"yt-fetcher/internal/downloader"
	"yt-fetcher/internal/logging"
)

type downloadRequest struct {
	URLs    []string `json:"urls"`
	Quality string   `json:"quality"`
}

// Download accepts a batch of URLs and starts asynchronous execution.
// Rejections (validation, busy, rate limit) are synchronous and mutate
// nothing.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	sess, token := h.registry.Resolve(r.Header.Get(sessionHeader))

	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	orch := h.orchestratorFor(sess)
	if err := orch.Submit(req.URLs, req.Quality); err != nil {
		var verr *downloader.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSONError(w, verr.Detail, http.StatusBadRequest)
		case errors.Is(err, downloader.ErrBusy):
			writeJSONError(w, "a download is already in progress, wait for it to finish", http.StatusConflict)
		case errors.Is(err, downloader.ErrRateLimited):
			writeJSONError(w, "daily download limit reached", http.StatusTooManyRequests)
		default:
			logging.Error("download submit error for session %s: %v", token[:8], err)
			writeJSONError(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	logging.Info("download started for session %s: %d URL(s)", token[:8], len(req.URLs))

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"message":    fmt.Sprintf("started downloading %d video(s)", len(req.URLs)),
		"session_id": token,
	})
}

// statusResponse is the shape of GET /api/status.
type statusResponse struct {
	SessionID       string              `json:"session_id"`
	IsDownloading   bool                `json:"is_downloading"`
	Progress        downloader.Progress `json:"progress"`
	Cookies         interface{}         `json:"cookies"`
	FFmpegAvailable bool                `json:"ffmpeg_available"`
	DownloadCount   int                 `json:"download_count"`
	QualityTiers    []downloader.Tier   `json:"quality_tiers"`
}

// Status reports the session's orchestrator state, credential freshness,
// and the available quality tiers.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	sess, token := h.registry.Resolve(r.Header.Get(sessionHeader))

	snap := h.orchestratorFor(sess).Snapshot()
	freshness := h.jarFor(sess).CheckFreshness()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, statusResponse{
		SessionID:       token,
		IsDownloading:   snap.Busy,
		Progress:        snap.Progress,
		Cookies:         freshness,
		FFmpegAvailable: h.config.FFmpegAvailable,
		DownloadCount:   snap.DownloadCount,
		QualityTiers:    downloader.Tiers(),
	})
}
