package downloader

import (
	"fmt"
	"regexp"
	"strings"
)

// maxURLLength bounds any single URL regardless of shape.
const maxURLLength = 500

// Supported link shapes: watch, shorts, short-link, playlist, channel, handle.
var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`^https?://(?:www\.)?youtube\.com/shorts/[\w-]+`),
	regexp.MustCompile(`^https?://youtu\.be/[\w-]+`),
	regexp.MustCompile(`^https?://(?:www\.)?youtube\.com/playlist\?list=[\w-]+`),
	regexp.MustCompile(`^https?://(?:www\.)?youtube\.com/channel/[\w-]+`),
	regexp.MustCompile(`^https?://(?:www\.)?youtube\.com/@[\w-]+`),
}

// ValidURL reports whether url matches one of the supported link shapes
// and stays within the length bound.
func ValidURL(url string) bool {
	if url == "" || len(url) > maxURLLength {
		return false
	}
	for _, p := range urlPatterns {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}

// ValidateBatch trims and validates a submitted URL list. It returns the
// cleaned list or a descriptive error; partial batches are never accepted.
func ValidateBatch(urls []string, maxBatch int) ([]string, error) {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		cleaned = append(cleaned, u)
	}

	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no URLs provided")
	}
	if len(cleaned) > maxBatch {
		return nil, fmt.Errorf("at most %d videos per batch", maxBatch)
	}
	for _, u := range cleaned {
		if !ValidURL(u) {
			return nil, fmt.Errorf("invalid URL: %s", truncate(u, 50))
		}
	}
	return cleaned, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
