package downloader

import (
	"regexp"
	"strconv"
	"strings"
)

// LineKind discriminates the events the output parser can produce.
type LineKind int

const (
	// LineProgress carries a download percentage.
	LineProgress LineKind = iota
	// LineNotice carries a recognized keyword line worth surfacing to the client.
	LineNotice
)

// LineEvent is the structured form of one recognized subprocess output line.
type LineEvent struct {
	Kind    LineKind
	Percent float64
	Message string
}

var percentPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%`)

// Keyword lines surfaced verbatim-ish as log events. Matching is
// substring-based and case-insensitive; yt-dlp wording varies by version.
var noticeKeywords = []struct {
	match   string
	message string
}{
	{"sign in to confirm", "Bot check triggered; refresh your cookies"},
	{"private video", "Private video; cannot download"},
	{"video unavailable", "Video unavailable"},
	{"has already been downloaded", "Already downloaded; skipping"},
}

// ParseLine inspects one subprocess output line and returns a structured
// event if the line is recognized. It is a pure function so the
// classification heuristics are testable without spawning a process.
func ParseLine(line string) (LineEvent, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return LineEvent{}, false
	}

	lower := strings.ToLower(line)
	for _, kw := range noticeKeywords {
		if strings.Contains(lower, kw.match) {
			return LineEvent{Kind: LineNotice, Message: kw.message}, true
		}
	}

	if strings.HasPrefix(line, "[download]") {
		if m := percentPattern.FindStringSubmatch(line); m != nil {
			pct, err := strconv.ParseFloat(m[1], 64)
			if err == nil && pct >= 0 && pct <= 100 {
				return LineEvent{Kind: LineProgress, Percent: pct}, true
			}
		}
	}

	return LineEvent{}, false
}
