package downloader

import "strings"

// Reason is the classified outcome of one download job.
type Reason string

const (
	ReasonSuccess        Reason = "success"
	ReasonAuthRequired   Reason = "auth_required"
	ReasonPrivate        Reason = "private"
	ReasonUnavailable    Reason = "unavailable"
	ReasonNoFormat       Reason = "no_format"
	ReasonNetwork        Reason = "network"
	ReasonTimeout        Reason = "timeout"
	ReasonPostprocessing Reason = "postprocessing"
	ReasonFailed         Reason = "failed"
)

// Outcome is the final verdict for one job.
type Outcome struct {
	Success bool
	Reason  Reason
}

// signals are the independent observations classification runs over. The
// tool's exit code is deliberately absent: post-processing failures after
// a successful fetch, or warnings on an otherwise clean run, make it
// unreliable as a success indicator.
type signals struct {
	newFiles []string
	stdout   string
	stderr   string
	timedOut bool
}

// A classifier inspects the signals and either returns a verdict or
// passes. Classifiers run in a fixed priority order; first match wins.
type classifier func(sig signals) (Outcome, bool)

var classifiers = []classifier{
	classifyFileDiff,
	classifyStdoutMarkers,
	classifyTimeout,
	classifyStderr,
}

// Classify runs the ordered classifier pipeline. It always produces a
// verdict; unmatched signals fall through to a generic failure.
func Classify(sig signals) Outcome {
	for _, c := range classifiers {
		if out, ok := c(sig); ok {
			return out
		}
	}
	return Outcome{Success: false, Reason: ReasonFailed}
}

// classifyFileDiff: any new file in the output directory means the fetch
// worked, whatever the exit code said.
func classifyFileDiff(sig signals) (Outcome, bool) {
	for _, name := range sig.newFiles {
		if isTransientArtifact(name) {
			continue
		}
		return Outcome{Success: true, Reason: ReasonSuccess}, true
	}
	return Outcome{}, false
}

// isTransientArtifact filters the partial-download droppings yt-dlp
// leaves behind when it is interrupted mid-fetch.
func isTransientArtifact(name string) bool {
	return strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".ytdl") ||
		strings.HasSuffix(name, ".temp")
}

// stdout phrases that mean the job is complete even though nothing new
// appeared on disk.
var successMarkers = []string{
	"has already been downloaded",
	"Deleting original file",
}

func classifyStdoutMarkers(sig signals) (Outcome, bool) {
	for _, marker := range successMarkers {
		if strings.Contains(sig.stdout, marker) {
			return Outcome{Success: true, Reason: ReasonSuccess}, true
		}
	}
	return Outcome{}, false
}

func classifyTimeout(sig signals) (Outcome, bool) {
	if sig.timedOut {
		return Outcome{Success: false, Reason: ReasonTimeout}, true
	}
	return Outcome{}, false
}

// stderr substrings mapped to failure reasons, checked in order.
var stderrReasons = []struct {
	match  string
	reason Reason
}{
	{"Sign in to confirm", ReasonAuthRequired},
	{"Private video", ReasonPrivate},
	{"Video unavailable", ReasonUnavailable},
	{"Requested format is not available", ReasonNoFormat},
	{"Postprocessing", ReasonPostprocessing},
	{"timed out", ReasonNetwork},
	{"Connection reset", ReasonNetwork},
	{"Temporary failure", ReasonNetwork},
	{"Unable to download", ReasonNetwork},
}

func classifyStderr(sig signals) (Outcome, bool) {
	for _, sr := range stderrReasons {
		if strings.Contains(sig.stderr, sr.match) {
			return Outcome{Success: false, Reason: sr.reason}, true
		}
	}
	return Outcome{}, false
}

// Describe renders a reason as a short human-readable log phrase.
func (r Reason) Describe() string {
	switch r {
	case ReasonSuccess:
		return "completed"
	case ReasonAuthRequired:
		return "authentication required (update cookies)"
	case ReasonPrivate:
		return "private video"
	case ReasonUnavailable:
		return "video unavailable"
	case ReasonNoFormat:
		return "no matching format"
	case ReasonNetwork:
		return "network failure"
	case ReasonTimeout:
		return "timed out"
	case ReasonPostprocessing:
		return "post-processing failed"
	default:
		return "download failed"
	}
}
