// Package ratelimit implements the windowed request budget plus
// concurrency semaphore described in spec.md §4.5, generalizing the
// teacher's single-request MusicBrainz throttle
// (internal/musicbrainz/client.go's waitForRateLimit) to an arbitrary
// (requests_per_window, window, max_concurrent) triple per external API.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Limiter enforces a sliding-window request budget and a concurrency cap
// for a single external API.
type Limiter struct {
	requestsPerWindow int
	window            time.Duration
	maxConcurrent     int64

	mu        sync.Mutex
	sem       *semaphore.Weighted
	timestamps []time.Time

	initialized bool

	totalRequests int64
	totalWait     time.Duration
}

// New validates its three parameters (all must be strictly positive) and
// returns a Limiter. The limiter must still be Initialize'd before
// Acquire is called.
func New(requestsPerWindow int, window time.Duration, maxConcurrent int) (*Limiter, error) {
	if requestsPerWindow <= 0 {
		return nil, fmt.Errorf("requests_per_window must be a positive integer")
	}
	if window <= 0 {
		return nil, fmt.Errorf("window_seconds must be a positive number")
	}
	if maxConcurrent <= 0 {
		return nil, fmt.Errorf("max_concurrent must be a positive integer")
	}

	return &Limiter{
		requestsPerWindow: requestsPerWindow,
		window:            window,
		maxConcurrent:     int64(maxConcurrent),
	}, nil
}

// Initialize creates the concurrency semaphore. Safe to call more than
// once; later calls are no-ops.
func (l *Limiter) Initialize() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return
	}
	l.sem = semaphore.NewWeighted(l.maxConcurrent)
	l.initialized = true
}

// Acquire blocks until both the concurrency cap and the sliding-window
// budget permit another request, then records the request. It returns
// the time spent waiting. Calling Acquire before Initialize fails with a
// clear error.
func (l *Limiter) Acquire(ctx context.Context) (time.Duration, error) {
	l.mu.Lock()
	if !l.initialized {
		l.mu.Unlock()
		return 0, fmt.Errorf("ratelimit: RateLimiter not initialized")
	}
	sem := l.sem
	l.mu.Unlock()

	start := time.Now()

	if err := sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}

	if err := l.waitForWindowSlot(ctx); err != nil {
		sem.Release(1)
		return 0, err
	}

	wait := time.Since(start)

	l.mu.Lock()
	l.totalRequests++
	l.totalWait += wait
	l.timestamps = append(l.timestamps, time.Now())
	l.mu.Unlock()

	return wait, nil
}

// waitForWindowSlot blocks until the sliding window has room for one more
// completed request.
func (l *Limiter) waitForWindowSlot(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.pruneLocked(now)

		if len(l.timestamps) < l.requestsPerWindow {
			l.mu.Unlock()
			return nil
		}

		// The window is full; sleep until the oldest timestamp falls out.
		oldest := l.timestamps[0]
		sleepFor := l.window - now.Sub(oldest)
		l.mu.Unlock()

		if sleepFor <= 0 {
			continue
		}

		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// pruneLocked drops timestamps that have fallen out of the window.
// Caller must hold l.mu.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && l.timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = l.timestamps[i:]
	}
}

// Release frees one concurrency slot. Safe to call even if the limiter
// was never initialized.
func (l *Limiter) Release() {
	l.mu.Lock()
	sem := l.sem
	l.mu.Unlock()
	if sem != nil {
		sem.Release(1)
	}
}

// Stats summarizes the limiter's activity.
type Stats struct {
	TotalRequests       int64
	TotalWaitTime       time.Duration
	AvgWaitTime         time.Duration
	CurrentCallsInWindow int
}

// GetStats reports request counts and wait-time statistics.
func (l *Limiter) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(time.Now())

	var avg time.Duration
	if l.totalRequests > 0 {
		avg = l.totalWait / time.Duration(l.totalRequests)
	}

	return Stats{
		TotalRequests:        l.totalRequests,
		TotalWaitTime:        l.totalWait,
		AvgWaitTime:          avg,
		CurrentCallsInWindow: len(l.timestamps),
	}
}
