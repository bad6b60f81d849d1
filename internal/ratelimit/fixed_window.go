// Package ratelimit implements a per-key fixed-window request governor.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed bool
	// Count is the number of requests recorded in the current window,
	// capped at Limit+1.
	Count int
	Limit int
	// RetryAfter is the time left until the window resets.
	RetryAfter time.Duration
}

// Remaining reports how many requests the key may still make in the window.
func (d Decision) Remaining() int {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

type window struct {
	start time.Time
	count int
}

// FixedWindow counts requests per key in fixed, non-overlapping windows.
// All state is guarded by one mutex so check-and-increment is atomic.
type FixedWindow struct {
	mu        sync.Mutex
	limit     int
	size      time.Duration
	now       func() time.Time
	windows   map[string]*window
	lastSweep time.Time
}

// Option configures a FixedWindow.
type Option func(*FixedWindow)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(f *FixedWindow) {
		if fn != nil {
			f.now = fn
		}
	}
}

// New creates a governor allowing limit requests per key per size.
func New(limit int, size time.Duration, opts ...Option) (*FixedWindow, error) {
	if limit <= 0 {
		return nil, errors.New("ratelimit: limit must be positive")
	}
	if size <= 0 {
		return nil, errors.New("ratelimit: window must be positive")
	}
	f := &FixedWindow{
		limit:   limit,
		size:    size,
		now:     time.Now,
		windows: make(map[string]*window),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.lastSweep = f.now()
	return f, nil
}

// Limit reports the per-window ceiling.
func (f *FixedWindow) Limit() int { return f.limit }

// Window reports the window length.
func (f *FixedWindow) Window() time.Duration { return f.size }

// Check records a request for key and reports whether it is allowed.
// A rejected request does not advance the counter.
func (f *FixedWindow) Check(key string) Decision {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if now.Sub(f.lastSweep) >= f.size {
		f.sweepLocked(now)
	}

	w, ok := f.windows[key]
	if !ok || now.Sub(w.start) >= f.size {
		w = &window{start: now}
		f.windows[key] = w
	}

	retry := f.size - now.Sub(w.start)
	if w.count > f.limit {
		return Decision{Allowed: false, Count: w.count, Limit: f.limit, RetryAfter: retry}
	}
	w.count++
	return Decision{Allowed: w.count <= f.limit, Count: w.count, Limit: f.limit, RetryAfter: retry}
}

// Sweep drops windows that have already expired and returns how many
// were removed.
func (f *FixedWindow) Sweep() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweepLocked(f.now())
}

func (f *FixedWindow) sweepLocked(now time.Time) int {
	removed := 0
	for k, w := range f.windows {
		if now.Sub(w.start) >= f.size {
			delete(f.windows, k)
			removed++
		}
	}
	f.lastSweep = now
	return removed
}

// Len reports the number of tracked keys.
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}
