package handlers

import (
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"yt-fetcher/internal/logging"
	"yt-fetcher/internal/metrics"
)

// UploadCookies accepts a multipart upload of a cookie-jar text file,
// validates its content, and persists it for the session. The previous
// jar, if any, is backed up rather than overwritten.
func (h *Handlers) UploadCookies(w http.ResponseWriter, r *http.Request) {
	sess, token := h.registry.Resolve(r.Header.Get(sessionHeader))

	// Bound the whole request body before parsing the multipart form.
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxCookiesSize+4096)
	if err := r.ParseMultipartForm(h.config.MaxCookiesSize + 4096); err != nil {
		rejectUpload(w, "uploaded file is too large or malformed", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("cookies_file")
	if err != nil {
		rejectUpload(w, "no file uploaded", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close uploaded file: %v", err)
		}
	}()

	if header.Filename == "" {
		rejectUpload(w, "no file selected", http.StatusBadRequest)
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".txt") {
		rejectUpload(w, "only .txt files are supported", http.StatusBadRequest)
		return
	}
	if header.Size == 0 {
		rejectUpload(w, "uploaded file is empty", http.StatusBadRequest)
		return
	}
	if header.Size > h.config.MaxCookiesSize {
		rejectUpload(w, "uploaded file is too large", http.StatusBadRequest)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(file, h.config.MaxCookiesSize+1))
	if err != nil {
		logging.Error("reading cookies upload for session %s: %v", token[:8], err)
		rejectUpload(w, "failed to read uploaded file", http.StatusBadRequest)
		return
	}
	if int64(len(raw)) > h.config.MaxCookiesSize {
		rejectUpload(w, "uploaded file is too large", http.StatusBadRequest)
		return
	}
	if !utf8.Valid(raw) {
		rejectUpload(w, "file must be UTF-8 encoded text", http.StatusBadRequest)
		return
	}

	if err := h.jarFor(sess).Save(string(raw)); err != nil {
		logging.Warn("cookies upload rejected for session %s: %v", token[:8], err)
		rejectUpload(w, err.Error(), http.StatusBadRequest)
		return
	}

	metrics.CookieUploadsTotal.WithLabelValues("accepted").Inc()
	logging.Info("cookies uploaded for session %s", token[:8])

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"message":    "cookies saved",
		"session_id": token,
		"success":    true,
	})
}

func rejectUpload(w http.ResponseWriter, message string, status int) {
	metrics.CookieUploadsTotal.WithLabelValues("rejected").Inc()
	writeJSONError(w, message, status)
}
