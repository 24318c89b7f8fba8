package sweeper

import (
	"os"
	"path/filepath"
	"time"

	"yt-fetcher/internal/cookies"
	"yt-fetcher/internal/logging"
	"yt-fetcher/internal/metrics"
	"yt-fetcher/internal/session"
)

// Sweeper evicts sessions idle beyond the TTL and deletes their on-disk
// artifacts. It runs on a fixed interval, independent of request traffic,
// and goes through the registry's own synchronization like any other
// caller.
type Sweeper struct {
	registry   *session.Registry
	sessionTTL time.Duration
	fileTTL    time.Duration
	interval   time.Duration

	stop chan struct{}
	done chan struct{}
}

// New creates a Sweeper over the given registry.
func New(registry *session.Registry, sessionTTL, fileTTL, interval time.Duration) *Sweeper {
	return &Sweeper{
		registry:   registry,
		sessionTTL: sessionTTL,
		fileTTL:    fileTTL,
		interval:   interval,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

// Sweep runs one eviction pass and returns how many sessions it removed.
// Deletion failures are logged and do not abort the sweep of other
// sessions. Running it twice back to back is a no-op the second time.
func (s *Sweeper) Sweep() int {
	metrics.SweeperRunsTotal.Inc()
	metrics.SweeperLastRunTimestamp.SetToCurrentTime()

	cutoff := time.Now().Add(-s.sessionTTL)
	idle := s.registry.IdleSince(cutoff)

	removed := 0
	for _, sess := range idle {
		s.cleanSessionFiles(sess)
		s.registry.Remove(sess.Token)
		removed++
		metrics.SessionsSweptTotal.Inc()
	}

	if removed > 0 {
		logging.Info("sweeper: evicted %d idle session(s)", removed)
	}
	return removed
}

func (s *Sweeper) cleanSessionFiles(sess *session.Session) {
	token := sess.Token[:8]

	jar := cookies.NewStore(sess.CookiesPath(), 0)
	if err := jar.Remove(); err != nil {
		logging.Error("sweeper: session %s: removing cookies: %v", token, err)
	}

	dir := sess.DownloadDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Error("sweeper: session %s: reading output dir: %v", token, err)
		}
		return
	}

	fileCutoff := time.Now().Add(-s.fileTTL)
	remaining := 0
	for _, e := range entries {
		if e.IsDir() {
			remaining++
			continue
		}
		info, err := e.Info()
		if err != nil {
			logging.Error("sweeper: session %s: stat %s: %v", token, e.Name(), err)
			remaining++
			continue
		}
		if info.ModTime().After(fileCutoff) {
			remaining++
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			logging.Error("sweeper: session %s: removing %s: %v", token, e.Name(), err)
			remaining++
		}
	}

	if remaining == 0 {
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			logging.Error("sweeper: session %s: removing output dir: %v", token, err)
		}
	}
}
