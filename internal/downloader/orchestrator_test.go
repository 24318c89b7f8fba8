package downloader

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"yt-fetcher/internal/cookies"
	"yt-fetcher/internal/workers"
)

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	mu       sync.Mutex
	logs     []string
	progress []Progress
}

func (e *recordingEmitter) Log(token, message string) {
	e.mu.Lock()
	e.logs = append(e.logs, message)
	e.mu.Unlock()
}

func (e *recordingEmitter) Progress(token string, p Progress) {
	e.mu.Lock()
	e.progress = append(e.progress, p)
	e.mu.Unlock()
}

func (e *recordingEmitter) snapshot() []Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Progress, len(e.progress))
	copy(out, e.progress)
	return out
}

const testToken = "550e8400-e29b-41d4-a716-446655440000"

func newTestOrchestrator(t *testing.T, tool string) (*Orchestrator, *recordingEmitter, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "out")
	emitter := &recordingEmitter{}
	jar := cookies.NewStore(filepath.Join(t.TempDir(), "cookies_test.txt"), 100*1024)
	cfg := Config{
		YtdlpPath:         tool,
		InterJobPause:     time.Millisecond,
		MaxBatch:          10,
		MaxDailyDownloads: 20,
	}
	return New(testToken, dir, jar, emitter, workers.NewPool(1), cfg), emitter, dir
}

// fakeTool writes a shell script that mimics the downloader binary: it
// prints canned output and, when given content, drops a file into the -P
// target directory.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// successScript parses out the -P directory and simulates one clean fetch.
const successScript = `dir=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-P" ]; then dir="$arg"; fi
  prev="$arg"
done
echo "[download]  50.0% of 1.00MiB at 1.00MiB/s ETA 00:01"
echo "[download] 100% of 1.00MiB in 00:01"
touch "$dir/clip.mp4"
`

func waitForIdle(t *testing.T, o *Orchestrator) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if !o.Snapshot().Busy {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("batch never finished")
}

// =============================================================================
// Submission Tests
// =============================================================================

func TestSubmitRejectsInvalidBatch(t *testing.T) {
	t.Parallel()

	o, emitter, _ := newTestOrchestrator(t, "/bin/true")
	err := o.Submit([]string{"https://evil.example.com/watch?v=x"}, "720p")

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Submit() error = %v, want ValidationError", err)
	}

	// A rejected submission must leave no trace.
	snap := o.Snapshot()
	if snap.Busy {
		t.Error("orchestrator busy after rejected submission")
	}
	if snap.Progress.Status != StatusIdle {
		t.Errorf("progress status = %q, want idle", snap.Progress.Status)
	}
	if got := emitter.snapshot(); len(got) != 0 {
		t.Errorf("rejected submission emitted %d progress events", len(got))
	}
}

func TestSubmitWhileBusyRejected(t *testing.T) {
	t.Parallel()

	o, _, _ := newTestOrchestrator(t, "/bin/true")
	o.mu.Lock()
	o.busy = true
	o.mu.Unlock()

	err := o.Submit([]string{"https://www.youtube.com/watch?v=abc123"}, "720p")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Submit() error = %v, want ErrBusy", err)
	}
	if !o.Snapshot().Busy {
		t.Error("rejection cleared the busy flag of the running batch")
	}
}

func TestSubmitEnforcesDailyCap(t *testing.T) {
	t.Parallel()

	o, _, _ := newTestOrchestrator(t, "/bin/true")
	o.mu.Lock()
	o.downloadCount = o.cfg.MaxDailyDownloads
	o.mu.Unlock()

	err := o.Submit([]string{"https://www.youtube.com/watch?v=abc123"}, "720p")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Submit() error = %v, want ErrRateLimited", err)
	}
}

// =============================================================================
// Batch Lifecycle Tests
// =============================================================================

func TestBatchLifecycle(t *testing.T) {
	t.Parallel()

	tool := fakeTool(t, successScript)
	o, emitter, dir := newTestOrchestrator(t, tool)

	urls := []string{
		"https://www.youtube.com/watch?v=abc123",
		"https://www.youtube.com/watch?v=def456",
	}
	if err := o.Submit(urls, "720p"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !o.Snapshot().Busy {
		t.Error("orchestrator not busy right after Submit")
	}

	waitForIdle(t, o)

	snap := o.Snapshot()
	if snap.Progress.Status != StatusIdle {
		t.Errorf("final status = %q, want idle", snap.Progress.Status)
	}
	if snap.DownloadCount != 1 {
		// The fake tool writes the same file name for both jobs, so only
		// the first run produces a new file.
		t.Errorf("download count = %d, want 1", snap.DownloadCount)
	}

	events := emitter.snapshot()
	if len(events) < 4 {
		t.Fatalf("too few progress events: %d", len(events))
	}
	if events[0].Status != StatusStarting || events[0].Total != 2 {
		t.Errorf("first event = %+v, want starting with total 2", events[0])
	}
	if last := events[len(events)-1]; last.Status != StatusIdle {
		t.Errorf("last event = %+v, want idle", last)
	}

	var sawCompleted bool
	prevPct := -1
	for _, ev := range events {
		if ev.Status == StatusCompleted {
			sawCompleted = true
			if ev.Percentage != 100 || ev.Current != 2 {
				t.Errorf("completed event = %+v", ev)
			}
		}
		// Percentage never moves backwards until the terminal reset to idle.
		if ev.Status != StatusIdle {
			if ev.Percentage < prevPct {
				t.Errorf("percentage went backwards: %d after %d", ev.Percentage, prevPct)
			}
			prevPct = ev.Percentage
		}
	}
	if !sawCompleted {
		t.Error("no completed event emitted")
	}

	if _, err := os.Stat(filepath.Join(dir, "clip.mp4")); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

func TestBatchSurvivesToolFailure(t *testing.T) {
	t.Parallel()

	tool := fakeTool(t, "echo 'ERROR: Video unavailable' >&2\nexit 1\n")
	o, emitter, _ := newTestOrchestrator(t, tool)

	urls := []string{
		"https://www.youtube.com/watch?v=abc123",
		"https://www.youtube.com/watch?v=def456",
	}
	if err := o.Submit(urls, "720p"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitForIdle(t, o)

	// Both jobs failed but the batch ran to completion over all of them.
	snap := o.Snapshot()
	if snap.DownloadCount != 0 {
		t.Errorf("download count = %d, want 0", snap.DownloadCount)
	}
	var sawCompleted bool
	for _, ev := range emitter.snapshot() {
		if ev.Status == StatusCompleted && ev.Current == 2 {
			sawCompleted = true
		}
	}
	if !sawCompleted {
		t.Error("batch did not run to completion over failing jobs")
	}
}

func TestBatchRecoversFromMissingTool(t *testing.T) {
	t.Parallel()

	o, _, _ := newTestOrchestrator(t, filepath.Join(t.TempDir(), "does-not-exist"))
	if err := o.Submit([]string{"https://www.youtube.com/watch?v=abc123"}, "720p"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitForIdle(t, o)

	if o.Snapshot().Busy {
		t.Error("busy flag stuck after spawn failure")
	}
}

// =============================================================================
// Argument Construction Tests
// =============================================================================

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	o, _, dir := newTestOrchestrator(t, "/bin/true")
	o.cfg.FFmpegAvailable = true

	url := "https://www.youtube.com/watch?v=abc123"
	args := o.buildArgs(ResolveTier("1080p"), url)

	if args[len(args)-1] != url {
		t.Errorf("last arg = %q, want the URL", args[len(args)-1])
	}
	if args[len(args)-2] != dir {
		t.Errorf("output directory arg = %q, want %q", args[len(args)-2], dir)
	}

	assertArgPair(t, args, "-f", "bv*[height<=1080]+ba/b[height<=1080]")
	assertArgPair(t, args, "--max-filesize", "500M")
	if containsArg(args, "--cookies") {
		t.Error("cookies arg present without a saved jar")
	}
	if !containsArg(args, "--no-playlist") {
		t.Error("missing --no-playlist")
	}
}

func TestBuildArgsWithCookies(t *testing.T) {
	t.Parallel()

	o, _, _ := newTestOrchestrator(t, "/bin/true")
	if err := os.WriteFile(o.jar.Path(), []byte("jar"), 0o600); err != nil {
		t.Fatal(err)
	}

	args := o.buildArgs(ResolveTier("720p"), "https://youtu.be/abc123")
	assertArgPair(t, args, "--cookies", o.jar.Path())
}

func assertArgPair(t *testing.T, args []string, flag, want string) {
	t.Helper()
	for i, a := range args {
		if a == flag {
			if i+1 >= len(args) || args[i+1] != want {
				t.Errorf("%s = %q, want %q", flag, args[i+1], want)
			}
			return
		}
	}
	t.Errorf("flag %s not present in args", flag)
}

func containsArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
