package session

import (
	"regexp"
	"sync"
	"time"

	"yt-fetcher/internal/logging"
	"yt-fetcher/internal/metrics"

	"github.com/google/uuid"
)

// tokenPattern accepts hyphenated UUIDs and bare 32-char hex strings.
var tokenPattern = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$|^[a-f0-9]{32}$`)

// ValidToken reports whether the presented token has the expected shape.
func ValidToken(token string) bool {
	return tokenPattern.MatchString(token)
}

// Registry is the process-wide session table. All mutations go through
// its mutex; request handlers, orchestrators, and the sweeper share it.
type Registry struct {
	downloadRoot string
	uploadRoot   string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry rooted at the given directories.
func NewRegistry(downloadRoot, uploadRoot string) *Registry {
	return &Registry{
		downloadRoot: downloadRoot,
		uploadRoot:   uploadRoot,
		sessions:     make(map[string]*Session),
	}
}

// Resolve returns the session for the presented token, refreshing its
// activity timestamp. A malformed or unknown token mints a fresh session
// instead of failing; callers always get a usable session and must echo
// the returned token back to the client.
func (r *Registry) Resolve(presented string) (*Session, string) {
	if ValidToken(presented) {
		r.mu.RLock()
		s, ok := r.sessions[presented]
		r.mu.RUnlock()
		if ok {
			s.Touch()
			return s, presented
		}
	}

	token := uuid.NewString()
	s := newSession(token, r.downloadRoot, r.uploadRoot)

	r.mu.Lock()
	r.sessions[token] = s
	size := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionsCreatedTotal.Inc()
	metrics.ActiveSessions.Set(float64(size))
	logging.Debug("session created: %s (registry size %d)", token[:8], size)

	return s, token
}

// Get returns the session for a token without minting a new one.
func (r *Registry) Get(token string) (*Session, bool) {
	if !ValidToken(token) {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[token]
	return s, ok
}

// Remove deletes a session from the table. File cleanup is the caller's
// responsibility (the sweeper deletes artifacts before removing).
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	size := len(r.sessions)
	r.mu.Unlock()

	metrics.ActiveSessions.Set(float64(size))
}

// IdleSince returns the sessions whose last activity is before cutoff.
func (r *Registry) IdleSince(cutoff time.Time) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var idle []*Session
	for _, s := range r.sessions {
		if s.LastActivity().Before(cutoff) {
			idle = append(idle, s)
		}
	}
	return idle
}

// Len returns the number of sessions in the table.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
