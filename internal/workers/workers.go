package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the number of batches allowed to run concurrently across
// all sessions. It respects container CPU limits via GOMAXPROCS (Go 1.19+)
// but is primarily bounded by the configured limit: downloads are
// network-bound, and the real constraint is upstream rate limiting rather
// than CPU.
//
// Can be overridden with the DOWNLOAD_WORKERS environment variable.
func Count(limit int) int {
	if override := os.Getenv("DOWNLOAD_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := available
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// Pool bounds the number of concurrently executing batches. Each batch
// goroutine acquires a slot before launching its first subprocess and
// releases it when the batch completes.
type Pool struct {
	sem chan struct{}
}

// NewPool creates a pool with the given number of slots.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free.
func (p *Pool) Acquire() {
	p.sem <- struct{}{}
}

// Release frees a slot taken by Acquire.
func (p *Pool) Release() {
	<-p.sem
}

// Size returns the pool capacity.
func (p *Pool) Size() int {
	return cap(p.sem)
}
