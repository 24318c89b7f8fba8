// Package workers sizes and bounds the pool of concurrently running
// download batches. One goroutine serves one batch; the pool caps how
// many run at once across all sessions.
package workers
