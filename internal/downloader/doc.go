// Package downloader implements the per-session download orchestrator.
//
// An Orchestrator accepts a batch of 1-5 URLs, runs the external yt-dlp
// binary once per URL strictly in order, and classifies each run's
// outcome from three independent signals (new files on disk, stdout
// completion markers, stderr error text) because the tool's exit code is
// not a reliable success indicator. Progress and log events flow to the
// owning session's event channel through the Emitter interface.
//
// A batch submitted while one is executing is rejected, never queued.
package downloader
