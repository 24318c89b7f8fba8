package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range []string{
		"success", "auth_required", "private", "unavailable",
		"no_format", "network", "timeout", "postprocessing", "failed",
	} {
		DownloadsTotal.WithLabelValues(outcome)
	}

	for _, reason := range []string{"busy", "validation", "rate_limit"} {
		BatchesRejectedTotal.WithLabelValues(reason)
	}

	for _, status := range []string{"accepted", "rejected"} {
		CookieUploadsTotal.WithLabelValues(status)
	}

	for _, event := range []string{"log_message", "progress_update", "connected"} {
		EventsEmittedTotal.WithLabelValues(event)
	}
}
