package cookies

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"yt-fetcher/internal/logging"
)

// refreshAfterDays is the age at which a saved jar is considered stale.
const refreshAfterDays = 30

const (
	minContentChars  = 50
	minCookieLines   = 5
	minIndicators    = 2
	minNetscapeLines = 3
	netscapeFields   = 6
	sampleLines      = 10
)

// Store validates and persists one session's cookie-jar file.
type Store struct {
	path    string
	maxSize int64
}

// NewStore creates a store for the jar at path. maxSize caps the accepted
// content length in bytes.
func NewStore(path string, maxSize int64) *Store {
	return &Store{path: path, maxSize: maxSize}
}

// Path returns the jar's on-disk location. The file may not exist.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a jar has been saved.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// AgeDays returns the whole days since the jar was last written.
func (s *Store) AgeDays() (int, bool) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, false
	}
	return int(time.Since(info.ModTime()).Hours() / 24), true
}

// Markup and script fragments that have no business in a cookie jar.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<script[^>]*>`),
	regexp.MustCompile(`javascript:`),
	regexp.MustCompile(`data:`),
	regexp.MustCompile(`vbscript:`),
	regexp.MustCompile(`onload=`),
	regexp.MustCompile(`onerror=`),
}

// Substrings expected in a provider cookie export. At least two must be
// present; the check is deliberately loose because exports vary.
var providerIndicators = []string{
	"youtube", "google", "VISITOR_INFO", "YSC", "CONSENT", "PREF", "SID",
}

// Validate checks content against the accepted cookie-jar shape. A nil
// return means the content may be persisted.
func (s *Store) Validate(content string) error {
	if int64(len(content)) > s.maxSize {
		return fmt.Errorf("cookies file too large (max %d KB)", s.maxSize/1024)
	}
	if len(strings.TrimSpace(content)) < minContentChars {
		return fmt.Errorf("cookies file is too small to be a cookie export")
	}

	lower := strings.ToLower(content)
	for _, p := range dangerousPatterns {
		if p.MatchString(lower) {
			return fmt.Errorf("cookies file contains markup or script content")
		}
	}

	var dataLines []string
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		dataLines = append(dataLines, line)
	}
	if len(dataLines) < minCookieLines {
		return fmt.Errorf("cookies file has too few entries")
	}

	indicators := 0
	for _, ind := range providerIndicators {
		if strings.Contains(content, ind) {
			indicators++
		}
	}
	if indicators < minIndicators {
		return fmt.Errorf("cookies file is missing expected YouTube cookies")
	}

	// Netscape format: domain, include-subdomains, path, secure, expiry,
	// name, value — tab-delimited. Sample the first few data lines.
	sample := dataLines
	if len(sample) > sampleLines {
		sample = sample[:sampleLines]
	}
	wellFormed := 0
	for _, line := range sample {
		if len(strings.Split(line, "\t")) >= netscapeFields {
			wellFormed++
		}
	}
	if wellFormed < minNetscapeLines {
		return fmt.Errorf("cookies file is not in Netscape cookie format")
	}

	return nil
}

// Save validates content and persists it with owner-only permissions. An
// existing jar is renamed to its backup path first, never overwritten in
// place.
func (s *Store) Save(content string) error {
	if err := s.Validate(content); err != nil {
		return err
	}

	if s.Exists() {
		if err := os.Rename(s.path, s.BackupPath()); err != nil {
			return fmt.Errorf("failed to back up existing cookies: %w", err)
		}
	}

	if err := os.WriteFile(s.path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write cookies: %w", err)
	}

	logging.Debug("cookies saved to %s (%d bytes)", filepath.Base(s.path), len(content))
	return nil
}

// BackupPath returns where the previous jar lands on replacement.
func (s *Store) BackupPath() string {
	ext := filepath.Ext(s.path)
	return strings.TrimSuffix(s.path, ext) + ".bak"
}

// Remove deletes the jar and its backup. Missing files are not errors.
func (s *Store) Remove() error {
	var firstErr error
	for _, p := range []string{s.path, s.BackupPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Freshness describes the jar's current state for the status endpoint.
type Freshness struct {
	Exists           bool   `json:"exists"`
	AgeDays          int    `json:"age_days"`
	RecommendRefresh bool   `json:"should_update"`
	Message          string `json:"status_message"`
}

// CheckFreshness applies the refresh policy: absent jar means upload one,
// a jar past the age threshold means refresh it, anything else is healthy.
func (s *Store) CheckFreshness() Freshness {
	if !s.Exists() {
		return Freshness{
			RecommendRefresh: true,
			Message:          "No cookies file uploaded",
		}
	}

	age, _ := s.AgeDays()
	if age > refreshAfterDays {
		return Freshness{
			Exists:           true,
			AgeDays:          age,
			RecommendRefresh: true,
			Message:          fmt.Sprintf("Cookies are %d days old; consider refreshing", age),
		}
	}

	return Freshness{
		Exists:  true,
		AgeDays: age,
		Message: fmt.Sprintf("Cookies are healthy (uploaded %d days ago)", age),
	}
}
