package downloader

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"yt-fetcher/internal/cookies"
	"yt-fetcher/internal/logging"
	"yt-fetcher/internal/metrics"
	"yt-fetcher/internal/workers"
)

// Batch status values, in transition order.
const (
	StatusIdle        = "idle"
	StatusStarting    = "starting"
	StatusDownloading = "downloading"
	StatusCompleted   = "completed"
)

// Progress is the batch-level progress snapshot pushed to clients.
type Progress struct {
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	Status     string `json:"status"`
	Percentage int    `json:"percentage"`
}

// Emitter receives the orchestrator's log and progress events, scoped to
// the owning session's channel.
type Emitter interface {
	Log(token, message string)
	Progress(token string, p Progress)
}

// Config carries the tunables one Orchestrator needs.
type Config struct {
	YtdlpPath         string
	FFmpegAvailable   bool
	InterJobPause     time.Duration
	MaxBatch          int
	MaxDailyDownloads int
}

// Submission errors the HTTP boundary maps to distinct responses.
var (
	// ErrBusy means a batch is already executing for this session. The
	// policy is reject, not queue: the in-flight batch is unaffected and
	// the caller simply retries later.
	ErrBusy = errors.New("a download batch is already running")
	// ErrRateLimited means the session hit its daily job cap.
	ErrRateLimited = errors.New("daily download limit reached")
)

// ValidationError describes a rejected batch request. Nothing is mutated
// when one is returned.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

// Orchestrator drives download batches for exactly one session. Batches
// run strictly sequentially; a submission while busy is rejected.
type Orchestrator struct {
	token     string
	outputDir string
	jar       *cookies.Store
	emitter   Emitter
	pool      *workers.Pool
	cfg       Config

	mu            sync.Mutex
	busy          bool
	progress      Progress
	downloadCount int
	startTime     time.Time
}

// New creates an Orchestrator for one session.
func New(token, outputDir string, jar *cookies.Store, emitter Emitter, pool *workers.Pool, cfg Config) *Orchestrator {
	return &Orchestrator{
		token:     token,
		outputDir: outputDir,
		jar:       jar,
		emitter:   emitter,
		pool:      pool,
		cfg:       cfg,
		progress:  Progress{Status: StatusIdle},
	}
}

// Snapshot is the orchestrator state reported by the status endpoint.
type Snapshot struct {
	Busy          bool     `json:"is_downloading"`
	Progress      Progress `json:"progress"`
	DownloadCount int      `json:"download_count"`
}

// Snapshot returns the current state under the lock.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		Busy:          o.busy,
		Progress:      o.progress,
		DownloadCount: o.downloadCount,
	}
}

// Submit validates a batch and starts it asynchronously. A batch
// submitted while one is executing is rejected with ErrBusy and causes
// no state change.
func (o *Orchestrator) Submit(urls []string, quality string) error {
	cleaned, err := ValidateBatch(urls, o.cfg.MaxBatch)
	if err != nil {
		metrics.BatchesRejectedTotal.WithLabelValues("validation").Inc()
		return &ValidationError{Detail: err.Error()}
	}
	tier := ResolveTier(quality)

	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		metrics.BatchesRejectedTotal.WithLabelValues("busy").Inc()
		return ErrBusy
	}
	if o.cfg.MaxDailyDownloads > 0 && o.downloadCount >= o.cfg.MaxDailyDownloads {
		o.mu.Unlock()
		metrics.BatchesRejectedTotal.WithLabelValues("rate_limit").Inc()
		return ErrRateLimited
	}
	o.busy = true
	o.startTime = time.Now()
	o.mu.Unlock()

	go o.runBatch(cleaned, tier)
	return nil
}

// runBatch executes the accepted jobs strictly sequentially. Per-job
// failures never abort the batch; it always runs to completion over all
// accepted jobs.
func (o *Orchestrator) runBatch(urls []string, tier Tier) {
	metrics.BatchesTotal.Inc()
	metrics.BatchesRunning.Inc()
	defer metrics.BatchesRunning.Dec()

	o.pool.Acquire()
	defer o.pool.Release()

	defer func() {
		// Completed -> Idle happens immediately after the final progress
		// emission; a crash in the loop must never leave the session stuck busy.
		if r := recover(); r != nil {
			logging.Error("[%s] batch panic: %v", o.shortToken(), r)
		}
		o.setProgress(0, 0, StatusIdle, 0)
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
		o.log(fmt.Sprintf("Cannot create output directory: %v", err))
		return
	}

	total := len(urls)
	o.log(fmt.Sprintf("Starting batch download of %d video(s) at %s", total, tier.Label))
	o.setProgress(0, total, StatusStarting, 0)

	successes := 0
	for i, url := range urls {
		o.setProgress(i, total, StatusDownloading, percentOf(i, total))
		o.log(fmt.Sprintf("[%d/%d] Processing: %s", i+1, total, truncate(url, 50)))

		outcome := o.runJob(url, tier, func(jobPct float64) {
			overall := (float64(i) + jobPct/100) / float64(total) * 100
			o.setProgress(i, total, StatusDownloading, int(overall))
		})

		metrics.DownloadsTotal.WithLabelValues(string(outcome.Reason)).Inc()
		if outcome.Success {
			successes++
			o.mu.Lock()
			o.downloadCount++
			o.mu.Unlock()
		}
		o.log(fmt.Sprintf("[%d/%d] %s: %s", i+1, total, outcome.Reason.Describe(), truncate(url, 50)))
		o.setProgress(i+1, total, StatusDownloading, percentOf(i+1, total))

		// Fixed pause between jobs so we do not trip upstream rate limiting.
		if i+1 < total {
			time.Sleep(o.cfg.InterJobPause)
		}
	}

	o.mu.Lock()
	elapsed := time.Since(o.startTime)
	o.mu.Unlock()
	metrics.BatchDuration.Observe(elapsed.Seconds())

	o.setProgress(total, total, StatusCompleted, 100)
	o.log(fmt.Sprintf("Batch complete: %d/%d succeeded in %ds", successes, total, int(elapsed.Seconds())))
}

// runJob runs the external tool for one URL and classifies the outcome.
// Spawn failures are absorbed here; nothing escapes to the batch loop.
func (o *Orchestrator) runJob(url string, tier Tier, onPercent func(float64)) Outcome {
	before, err := listFileNames(o.outputDir)
	if err != nil {
		logging.Warn("[%s] cannot snapshot output dir: %v", o.shortToken(), err)
		before = map[string]struct{}{}
	}

	args := o.buildArgs(tier, url)

	ctx, cancel := context.WithTimeout(context.Background(), tier.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, o.cfg.YtdlpPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		o.log(fmt.Sprintf("Failed to start download: %v", err))
		return Outcome{Success: false, Reason: ReasonFailed}
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		o.log(fmt.Sprintf("Failed to start download: %v", err))
		return Outcome{Success: false, Reason: ReasonFailed}
	}

	// Stream stdout while the process runs: percentages become progress,
	// recognized keyword lines become log events.
	var stdoutText strings.Builder
	lastPercent := -10.0
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if stdoutText.Len() < 256*1024 {
			stdoutText.WriteString(line)
			stdoutText.WriteByte('\n')
		}

		event, ok := ParseLine(line)
		if !ok {
			continue
		}
		switch event.Kind {
		case LineProgress:
			// Throttle to 5-point steps; yt-dlp prints percentages per fragment.
			if event.Percent-lastPercent >= 5 || event.Percent >= 100 {
				lastPercent = event.Percent
				if onPercent != nil {
					onPercent(event.Percent)
				}
			}
		case LineNotice:
			o.log(event.Message)
		}
	}

	waitErr := cmd.Wait()
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
	if timedOut {
		o.log("Download timed out and was terminated")
	}
	if waitErr != nil && !timedOut {
		logging.Debug("[%s] yt-dlp exited: %v", o.shortToken(), waitErr)
	}

	after, err := listFileNames(o.outputDir)
	if err != nil {
		after = before
	}

	return Classify(signals{
		newFiles: diffFileNames(before, after),
		stdout:   stdoutText.String(),
		stderr:   stderr.String(),
		timedOut: timedOut,
	})
}

// buildArgs resolves the external tool's options: resolution ceiling from
// the tier, cookie argument when a jar exists, and safety bounds.
func (o *Orchestrator) buildArgs(tier Tier, url string) []string {
	args := []string{
		"-o", "%(title).100s.%(ext)s",
		"--embed-metadata",
		"--no-warnings",
		"--user-agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
		"--referer", "https://www.youtube.com/",
		"--extractor-retries", "2",
		"--fragment-retries", "2",
		"--retry-sleep", "exp=1:3",
		"--socket-timeout", "30",
		"--max-filesize", "500M",
		"--no-playlist",
		"-f", tier.FormatSelector(o.cfg.FFmpegAvailable),
	}

	if o.jar.Exists() {
		args = append(args, "--cookies", o.jar.Path())
		if age, ok := o.jar.AgeDays(); ok {
			o.log(fmt.Sprintf("Using cookies file (%d days old)", age))
		}
	}

	args = append(args, "-P", o.outputDir, url)
	return args
}

func (o *Orchestrator) log(message string) {
	logging.Info("[%s] %s", o.shortToken(), message)
	o.emitter.Log(o.token, message)
}

func (o *Orchestrator) setProgress(current, total int, status string, percentage int) {
	p := Progress{Current: current, Total: total, Status: status, Percentage: percentage}
	o.mu.Lock()
	o.progress = p
	o.mu.Unlock()
	o.emitter.Progress(o.token, p)
}

func (o *Orchestrator) shortToken() string {
	if len(o.token) >= 8 {
		return o.token[:8]
	}
	return o.token
}

func percentOf(current, total int) int {
	if total <= 0 {
		return 0
	}
	return current * 100 / total
}

func listFileNames(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names[e.Name()] = struct{}{}
		}
	}
	return names, nil
}

func diffFileNames(before, after map[string]struct{}) []string {
	var added []string
	for name := range after {
		if _, ok := before[name]; !ok {
			added = append(added, name)
		}
	}
	return added
}
