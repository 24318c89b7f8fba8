package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"yt-fetcher/internal/logging"
	"yt-fetcher/internal/session"

	"github.com/gorilla/mux"
)

// fileEntry is one row of the session's file listing.
type fileEntry struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
	Modified int64  `json:"modified"`
}

// ListFiles returns the session's downloaded files, most recent first.
// Listing requires knowing the session token; there is no cross-session
// view.
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["session"]
	sess, ok := h.lookupSession(w, token)
	if !ok {
		return
	}

	entries, err := os.ReadDir(sess.DownloadDir())
	if err != nil {
		if os.IsNotExist(err) {
			w.Header().Set("Content-Type", "application/json")
			writeJSON(w, map[string]interface{}{"files": []fileEntry{}})
			return
		}
		if os.IsPermission(err) {
			logging.Error("permission denied listing files for session %s", token[:8])
			writeJSONError(w, "access denied", http.StatusForbidden)
			return
		}
		logging.Error("listing files for session %s: %v", token[:8], err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	files := make([]fileEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			logging.Warn("stat %s for session %s: %v", e.Name(), token[:8], err)
			continue
		}
		if info.Size() == 0 {
			continue
		}
		files = append(files, fileEntry{
			Name:     e.Name(),
			Size:     info.Size(),
			URL:      fmt.Sprintf("/download_file/%s/%s", token, url.PathEscape(e.Name())),
			Modified: info.ModTime().Unix(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Modified > files[j].Modified })

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{"files": files})
}

// FetchFile serves one downloaded file as an attachment. The resolved
// path must stay inside the session's own output directory; anything
// else is rejected.
func (h *Handlers) FetchFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token := vars["session"]
	filename := vars["filename"]

	sess, ok := h.lookupSession(w, token)
	if !ok {
		return
	}

	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		writeJSONError(w, "invalid filename", http.StatusBadRequest)
		return
	}

	dir := sess.DownloadDir()
	fullPath := filepath.Join(dir, filename)

	// Containment check on the resolved absolute path
	absPath, err := filepath.Abs(fullPath)
	if err != nil || !isSubPath(dir, absPath) {
		writeJSONError(w, "invalid filename", http.StatusBadRequest)
		return
	}

	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	http.ServeFile(w, r, absPath)
}

// lookupSession fetches an existing session by token without minting a
// new one; the file endpoints never create sessions.
func (h *Handlers) lookupSession(w http.ResponseWriter, token string) (*session.Session, bool) {
	sess, ok := h.registry.Get(token)
	if !ok {
		writeJSONError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	sess.Touch()
	return sess, true
}

func isSubPath(parent, child string) bool {
	parent, _ = filepath.Abs(parent)
	child, _ = filepath.Abs(child)
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
