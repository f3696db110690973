// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package monitor

import (
	"sync"
	"time"
)

// rateWindow is a bucketed sliding-window counter. Time is divided into
// fixed buckets summed over the window, trading exactness at bucket
// boundaries for O(k) memory per actor.
type rateWindow struct {
	buckets    []int64
	bucketSize time.Duration
	numBuckets int
	current    int
	lastUpdate time.Time
}

func newRateWindow(windowSize time.Duration, numBuckets int) *rateWindow {
	return &rateWindow{
		buckets:    make([]int64, numBuckets),
		bucketSize: windowSize / time.Duration(numBuckets),
		numBuckets: numBuckets,
		lastUpdate: time.Now(),
	}
}

// advance rotates expired buckets out of the window. Callers hold the
// store lock.
func (w *rateWindow) advance(now time.Time) {
	elapsed := int(now.Sub(w.lastUpdate) / w.bucketSize)
	if elapsed <= 0 {
		return
	}
	if elapsed >= w.numBuckets {
		for i := range w.buckets {
			w.buckets[i] = 0
		}
		w.current = 0
	} else {
		for i := 0; i < elapsed; i++ {
			w.current = (w.current + 1) % w.numBuckets
			w.buckets[w.current] = 0
		}
	}
	w.lastUpdate = now
}

func (w *rateWindow) count() int64 {
	var total int64
	for _, c := range w.buckets {
		total += c
	}
	return total
}

// RateLimiter enforces a per-key sliding-window event limit. The
// check-and-increment in Allow is a single critical section, so concurrent
// callers cannot slip past the limit between the check and the count.
type RateLimiter struct {
	mu         sync.Mutex
	windows    map[string]*rateWindow
	max        int64
	windowSize time.Duration
	numBuckets int
}

// NewRateLimiter creates a limiter allowing max events per key per window.
func NewRateLimiter(max int, window time.Duration, numBuckets int) *RateLimiter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		windows:    make(map[string]*rateWindow),
		max:        int64(max),
		windowSize: window,
		numBuckets: numBuckets,
	}
}

// Allow reports whether the key is under its limit and, if so, counts the
// event. A denied call does not consume budget.
func (r *RateLimiter) Allow(key string) bool {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[key]
	if !ok {
		w = newRateWindow(r.windowSize, r.numBuckets)
		r.windows[key] = w
	}
	w.advance(now)

	if w.count() >= r.max {
		return false
	}
	w.buckets[w.current]++
	return true
}

// Count returns the current windowed count for a key.
func (r *RateLimiter) Count(key string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[key]
	if !ok {
		return 0
	}
	w.advance(time.Now())
	return w.count()
}

// Sweep removes idle keys whose windows have fully drained. Returns the
// number of keys removed.
func (r *RateLimiter) Sweep() int {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, w := range r.windows {
		w.advance(now)
		if w.count() == 0 {
			delete(r.windows, key)
			removed++
		}
	}
	return removed
}

// Clear removes all counters.
func (r *RateLimiter) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows = make(map[string]*rateWindow)
}

// Len returns the number of tracked keys.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}
