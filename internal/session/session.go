package session

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"yt-fetcher/internal/downloader"
)

// Session holds the server-side state for one browser client. It owns one
// output directory, one cookie-jar path, and at most one Orchestrator.
type Session struct {
	Token     string
	CreatedAt time.Time

	downloadRoot string
	uploadRoot   string

	mu           sync.Mutex
	lastActivity time.Time
	orch         *downloader.Orchestrator
}

func newSession(token, downloadRoot, uploadRoot string) *Session {
	now := time.Now()
	return &Session{
		Token:        token,
		CreatedAt:    now,
		lastActivity: now,
		downloadRoot: downloadRoot,
		uploadRoot:   uploadRoot,
	}
}

// Touch refreshes the last-activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the last-activity timestamp.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// CookiesPath returns the session's cookie-jar path. The file may not exist.
func (s *Session) CookiesPath() string {
	return filepath.Join(s.uploadRoot, fmt.Sprintf("cookies_%s.txt", s.Token))
}

// DownloadDir returns the session's output directory path. Callers that
// write into it must create it first (the Orchestrator does).
func (s *Session) DownloadDir() string {
	return filepath.Join(s.downloadRoot, fmt.Sprintf("session_%s", s.Token))
}

// Orchestrator returns the session's Orchestrator, creating it on first
// use via factory. A session has exactly one Orchestrator for its whole
// life; once created it is never replaced.
func (s *Session) Orchestrator(factory func(*Session) *downloader.Orchestrator) *downloader.Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orch == nil {
		s.orch = factory(s)
	}
	return s.orch
}

// HasOrchestrator reports whether the lazy Orchestrator has been created.
func (s *Session) HasOrchestrator() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orch != nil
}
