package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yt_fetcher_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yt_fetcher_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yt_fetcher_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Download metrics
var (
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yt_fetcher_downloads_total",
			Help: "Total number of download jobs by classified outcome",
		},
		[]string{"outcome"},
	)

	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yt_fetcher_batches_total",
			Help: "Total number of batches executed",
		},
	)

	BatchesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yt_fetcher_batches_rejected_total",
			Help: "Total number of rejected batch submissions",
		},
		[]string{"reason"}, // "busy", "validation", "rate_limit"
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yt_fetcher_batch_duration_seconds",
			Help:    "Wall-clock duration of a full batch",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		},
	)

	BatchesRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yt_fetcher_batches_running",
			Help: "Number of batches currently executing across all sessions",
		},
	)
)

// Session metrics
var (
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yt_fetcher_active_sessions",
			Help: "Number of sessions currently in the registry",
		},
	)

	SessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yt_fetcher_sessions_created_total",
			Help: "Total number of sessions minted",
		},
	)

	SessionsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yt_fetcher_sessions_swept_total",
			Help: "Total number of idle sessions evicted by the sweeper",
		},
	)

	SweeperRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yt_fetcher_sweeper_runs_total",
			Help: "Total number of sweeper passes",
		},
	)

	SweeperLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yt_fetcher_sweeper_last_run_timestamp",
			Help: "Timestamp of the last sweeper pass",
		},
	)
)

// Credential metrics
var (
	CookieUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yt_fetcher_cookie_uploads_total",
			Help: "Total number of credential upload attempts",
		},
		[]string{"status"}, // "accepted", "rejected"
	)
)

// Event channel metrics
var (
	EventClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yt_fetcher_event_clients_connected",
			Help: "Number of websocket clients currently connected",
		},
	)

	EventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yt_fetcher_events_emitted_total",
			Help: "Total number of events pushed to clients",
		},
		[]string{"event"}, // "log_message", "progress_update", "connected"
	)
)
