package handlers

import (
	"time"

	"yt-fetcher/internal/cookies"
	"yt-fetcher/internal/downloader"
	"yt-fetcher/internal/events"
	"yt-fetcher/internal/session"
	"yt-fetcher/internal/startup"
	"yt-fetcher/internal/workers"
)

// sessionHeader carries the client's opaque session token.
const sessionHeader = "X-Session-ID"

type Handlers struct {
	registry  *session.Registry
	hub       *events.Hub
	pool      *workers.Pool
	config    *startup.Config
	startTime time.Time
}

func New(registry *session.Registry, hub *events.Hub, pool *workers.Pool, config *startup.Config) *Handlers {
	return &Handlers{
		registry:  registry,
		hub:       hub,
		pool:      pool,
		config:    config,
		startTime: time.Now(),
	}
}

// jarFor builds the cookie store for a session.
func (h *Handlers) jarFor(s *session.Session) *cookies.Store {
	return cookies.NewStore(s.CookiesPath(), h.config.MaxCookiesSize)
}

// orchestratorFor returns the session's Orchestrator, creating it on
// first use. Each session gets exactly one, wired to its own cookie jar,
// output directory, and event room.
func (h *Handlers) orchestratorFor(s *session.Session) *downloader.Orchestrator {
	return s.Orchestrator(func(s *session.Session) *downloader.Orchestrator {
		return downloader.New(
			s.Token,
			s.DownloadDir(),
			h.jarFor(s),
			h.hub,
			h.pool,
			downloader.Config{
				YtdlpPath:         h.config.YtdlpPath,
				FFmpegAvailable:   h.config.FFmpegAvailable,
				InterJobPause:     h.config.InterJobPause,
				MaxBatch:          h.config.MaxBatch,
				MaxDailyDownloads: h.config.MaxDailyDownloads,
			},
		)
	})
}
