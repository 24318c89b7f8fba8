package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"yt-fetcher/internal/events"
	"yt-fetcher/internal/session"
	"yt-fetcher/internal/startup"
	"yt-fetcher/internal/workers"
)

func newTestHandlers(t *testing.T, tool string) (*Handlers, *session.Registry) {
	t.Helper()
	cfg := &startup.Config{
		DownloadDir:       t.TempDir(),
		UploadDir:         t.TempDir(),
		MaxBatch:          10,
		MaxDailyDownloads: 20,
		MaxCookiesSize:    100 * 1024,
		InterJobPause:     time.Millisecond,
		YtdlpPath:         tool,
	}
	registry := session.NewRegistry(cfg.DownloadDir, cfg.UploadDir)
	return New(registry, events.NewHub(), workers.NewPool(2), cfg), registry
}

func slowTool(t *testing.T, delay string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nsleep "+delay+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad JSON body %q: %v", rec.Body.String(), err)
	}
	return body
}

// =============================================================================
// Download Tests
// =============================================================================

func TestDownloadRejectsBadBody(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t, "/bin/true")
	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDownloadRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	h, registry := newTestHandlers(t, "/bin/true")
	payload := `{"urls":["https://evil.example.com/watch?v=x"],"quality":"720p"}`
	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if msg := decodeBody(t, rec)["error"]; msg == "" {
		t.Error("error response missing detail")
	}
	// The rejected request still resolved a session; nothing else changed.
	if registry.Len() != 1 {
		t.Errorf("registry size = %d, want 1", registry.Len())
	}
}

func TestDownloadStartsBatch(t *testing.T) {
	t.Parallel()

	h, registry := newTestHandlers(t, "/bin/true")
	payload := `{"urls":["https://www.youtube.com/watch?v=abc123"],"quality":"720p"}`
	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	token, _ := body["session_id"].(string)
	if !session.ValidToken(token) {
		t.Errorf("session_id %q is not a valid token", token)
	}
	if _, ok := registry.Get(token); !ok {
		t.Error("returned session_id not registered")
	}
}

func TestDownloadWhileBusyConflicts(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t, slowTool(t, "1"))
	payload := `{"urls":["https://www.youtube.com/watch?v=abc123"],"quality":"720p"}`

	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Download(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}
	token := decodeBody(t, rec)["session_id"].(string)

	// Same session submits again while the first batch is still running.
	req = httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(payload))
	req.Header.Set(sessionHeader, token)
	rec = httptest.NewRecorder()
	h.Download(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("second request status = %d, want 409", rec.Code)
	}
}

// =============================================================================
// Status Tests
// =============================================================================

func TestStatus(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t, "/bin/true")
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)

	if downloading, _ := body["is_downloading"].(bool); downloading {
		t.Error("fresh session reports a download in progress")
	}
	if token, _ := body["session_id"].(string); !session.ValidToken(token) {
		t.Errorf("session_id %q is not a valid token", token)
	}
	tiers, _ := body["quality_tiers"].([]interface{})
	if len(tiers) != 6 {
		t.Errorf("quality_tiers has %d entries, want 6", len(tiers))
	}
	jar, _ := body["cookies"].(map[string]interface{})
	if update, _ := jar["should_update"].(bool); !update {
		t.Error("sessions without cookies should be told to upload them")
	}
}

func TestStatusReusesSession(t *testing.T) {
	t.Parallel()

	h, registry := newTestHandlers(t, "/bin/true")

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	token := decodeBody(t, rec)["session_id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set(sessionHeader, token)
	rec = httptest.NewRecorder()
	h.Status(rec, req)

	if got := decodeBody(t, rec)["session_id"].(string); got != token {
		t.Errorf("session_id = %q, want %q", got, token)
	}
	if registry.Len() != 1 {
		t.Errorf("registry size = %d, want 1", registry.Len())
	}
}

// =============================================================================
// Cookie Upload Tests
// =============================================================================

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("cookies_file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func validJar() string {
	rows := []string{
		"# Netscape HTTP Cookie File",
		".youtube.com\tTRUE\t/\tTRUE\t1799999999\tVISITOR_INFO1_LIVE\tabcdef123456",
		".youtube.com\tTRUE\t/\tTRUE\t1799999999\tYSC\tzyxwvut9876",
		".youtube.com\tTRUE\t/\tTRUE\t1799999999\tPREF\tf4=4000000",
		".google.com\tTRUE\t/\tTRUE\t1799999999\tCONSENT\tYES+cb",
		".google.com\tTRUE\t/\tTRUE\t1799999999\tSID\tsomelongsidvalue",
	}
	return strings.Join(rows, "\n") + "\n"
}

func TestUploadCookies(t *testing.T) {
	t.Parallel()

	h, registry := newTestHandlers(t, "/bin/true")
	body, contentType := multipartUpload(t, "cookies.txt", validJar())

	req := httptest.NewRequest(http.MethodPost, "/upload_cookies", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.UploadCookies(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	if success, _ := resp["success"].(bool); !success {
		t.Error("response success != true")
	}

	token := resp["session_id"].(string)
	sess, ok := registry.Get(token)
	if !ok {
		t.Fatal("upload did not register a session")
	}
	if _, err := os.Stat(sess.CookiesPath()); err != nil {
		t.Errorf("jar not persisted: %v", err)
	}
}

func TestUploadCookiesRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		content  string
	}{
		{"wrong extension", "cookies.json", validJar()},
		{"empty file", "cookies.txt", ""},
		{"not a cookie export", "cookies.txt", strings.Repeat("junk content here\n", 10)},
		{"binary content", "cookies.txt", validJar() + "\xff\xfe\x00"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, _ := newTestHandlers(t, "/bin/true")
			body, contentType := multipartUpload(t, tt.filename, tt.content)

			req := httptest.NewRequest(http.MethodPost, "/upload_cookies", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			h.UploadCookies(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

// =============================================================================
// File Listing Tests
// =============================================================================

func seedFiles(t *testing.T, sess *session.Session) {
	t.Helper()
	dir := sess.DownloadDir()
	if err := os.MkdirAll(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "older.mp4"), []byte("aa"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "older.mp4"), old, old); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "newer clip.mp4"), []byte("bbbb"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "empty.mp4"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	h, registry := newTestHandlers(t, "/bin/true")
	sess, token := registry.Resolve("")
	seedFiles(t, sess)

	router := mux.NewRouter()
	router.HandleFunc("/downloads/{session}", h.ListFiles)

	req := httptest.NewRequest(http.MethodGet, "/downloads/"+token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	files, _ := decodeBody(t, rec)["files"].([]interface{})
	if len(files) != 2 {
		t.Fatalf("listed %d files, want 2 (directories and empty files skipped)", len(files))
	}

	first := files[0].(map[string]interface{})
	if first["name"] != "newer clip.mp4" {
		t.Errorf("first entry = %v, want most recent file", first["name"])
	}
	url, _ := first["url"].(string)
	if !strings.HasPrefix(url, "/download_file/"+token+"/") {
		t.Errorf("download URL %q not scoped to session", url)
	}
	if strings.Contains(url, " ") {
		t.Errorf("download URL %q not escaped", url)
	}
}

func TestListFilesUnknownSession(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t, "/bin/true")
	router := mux.NewRouter()
	router.HandleFunc("/downloads/{session}", h.ListFiles)

	for _, token := range []string{"550e8400-e29b-41d4-a716-446655440000", "bogus"} {
		req := httptest.NewRequest(http.MethodGet, "/downloads/"+token, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("token %q: status = %d, want 404", token, rec.Code)
		}
	}
}

func TestListFilesEmptySession(t *testing.T) {
	t.Parallel()

	h, registry := newTestHandlers(t, "/bin/true")
	_, token := registry.Resolve("")

	router := mux.NewRouter()
	router.HandleFunc("/downloads/{session}", h.ListFiles)

	req := httptest.NewRequest(http.MethodGet, "/downloads/"+token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	files, ok := decodeBody(t, rec)["files"].([]interface{})
	if !ok || len(files) != 0 {
		t.Errorf("files = %v, want empty list", files)
	}
}

// =============================================================================
// File Fetch Tests
// =============================================================================

func TestFetchFile(t *testing.T) {
	t.Parallel()

	h, registry := newTestHandlers(t, "/bin/true")
	sess, token := registry.Resolve("")
	seedFiles(t, sess)

	req := httptest.NewRequest(http.MethodGet, "/download_file/"+token+"/older.mp4", nil)
	req = mux.SetURLVars(req, map[string]string{"session": token, "filename": "older.mp4"})
	rec := httptest.NewRecorder()
	h.FetchFile(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Errorf("Content-Disposition = %q, want attachment", cd)
	}
	if rec.Body.String() != "aa" {
		t.Errorf("body = %q, want file content", rec.Body.String())
	}
}

func TestFetchFileRejectsTraversal(t *testing.T) {
	t.Parallel()

	h, registry := newTestHandlers(t, "/bin/true")
	sess, token := registry.Resolve("")
	seedFiles(t, sess)

	// A file outside the session directory that must stay unreachable.
	secret := filepath.Join(filepath.Dir(sess.DownloadDir()), "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, filename := range []string{
		"../secret.txt",
		"..",
		"foo/../../secret.txt",
		"/etc/passwd",
		"",
	} {
		req := httptest.NewRequest(http.MethodGet, "/download_file/"+token+"/x", nil)
		req = mux.SetURLVars(req, map[string]string{"session": token, "filename": filename})
		rec := httptest.NewRecorder()
		h.FetchFile(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("filename %q: status = %d, want 400", filename, rec.Code)
		}
	}
}

func TestFetchFileMissing(t *testing.T) {
	t.Parallel()

	h, registry := newTestHandlers(t, "/bin/true")
	_, token := registry.Resolve("")

	req := httptest.NewRequest(http.MethodGet, "/download_file/"+token+"/nope.mp4", nil)
	req = mux.SetURLVars(req, map[string]string{"session": token, "filename": "nope.mp4"})
	rec := httptest.NewRecorder()
	h.FetchFile(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// =============================================================================
// Health Endpoint Tests
// =============================================================================

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandlers(t, "/bin/true")

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"health", h.HealthCheck, "healthy"},
		{"livez", h.LivenessCheck, "alive"},
		{"readyz", h.ReadinessCheck, "ready"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := decodeBody(t, rec)["status"]; got != tt.want {
				t.Errorf("status field = %v, want %q", got, tt.want)
			}
		})
	}
}
