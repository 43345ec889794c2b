package ratelimit

import (
	"sync"
	"time"
)

// Defaults match the Ninsaúde API contract: 30 outbound requests per minute.
const (
	DefaultCapacity = 30
	DefaultWindow   = 60 * time.Second
)

// Limiter is a fixed-window counter. All state is instance-scoped so each
// API client gets its own limiter instead of sharing ambient globals.
//
// Allow performs the window-expiry check and the increment as one critical
// section: concurrent callers can never both observe count < capacity and
// push the window past its cap.
type Limiter struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	capacity    int
	window      time.Duration
	now         func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithCapacity overrides the per-window request cap.
func WithCapacity(n int) Option {
	return func(l *Limiter) {
		l.capacity = n
	}
}

// WithWindow overrides the window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		l.window = d
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		capacity: DefaultCapacity,
		window:   DefaultWindow,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.windowStart = l.now()
	return l
}

// Allow admits the request and returns true, or returns false without
// mutating state when the current window is full. An expired window is reset
// before the request is evaluated.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollWindowLocked()
	if l.count >= l.capacity {
		return false
	}
	l.count++
	return true
}

// Limited reports whether the next request would be rejected. It applies
// window expiry but never increments, so it is safe for status queries.
func (l *Limiter) Limited() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollWindowLocked()
	return l.count >= l.capacity
}

// Remaining returns how many requests the current window still admits.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollWindowLocked()
	return l.capacity - l.count
}

// Reset clears the counter and restarts the window at the current time.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.windowStart = l.now()
	l.count = 0
}

func (l *Limiter) rollWindowLocked() {
	if now := l.now(); now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}
}
