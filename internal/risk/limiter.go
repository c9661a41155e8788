package risk

import (
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithClock replaces the wall clock, used by deterministic tests and playback.
func WithClock(clock Clock) Option {
	return func(l *RateLimiter) {
		if clock != nil {
			l.now = clock
		}
	}
}

// RateLimiter admits at most max permits within any sliding window.
// It is owned by one strategy and is not safe for concurrent use.
type RateLimiter struct {
	max    int
	window time.Duration
	now    Clock

	// stamps is a ring of admitted timestamps, oldest at head.
	stamps []time.Time
	head   int
	count  int
}

// NewRateLimiter creates a limiter. max below 1 is raised to 1.
func NewRateLimiter(max int, window time.Duration, opts ...Option) *RateLimiter {
	if max < 1 {
		max = 1
	}
	l := &RateLimiter{
		max:    max,
		window: window,
		now:    time.Now,
		stamps: make([]time.Time, max),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow evicts permits older than the window, then records and grants a
// permit when fewer than max remain. A denied call records nothing.
func (l *RateLimiter) Allow() bool {
	now := l.now()
	l.evict(now)
	if l.count >= l.max {
		return false
	}
	l.stamps[(l.head+l.count)%l.max] = now
	l.count++
	return true
}

// InFlight returns the number of permits still inside the window.
func (l *RateLimiter) InFlight() int {
	l.evict(l.now())
	return l.count
}

// Max returns the configured permit count.
func (l *RateLimiter) Max() int {
	return l.max
}

// Window returns the configured window duration.
func (l *RateLimiter) Window() time.Duration {
	return l.window
}

func (l *RateLimiter) evict(now time.Time) {
	for l.count > 0 {
		if now.Sub(l.stamps[l.head]) <= l.window {
			return
		}
		l.head = (l.head + 1) % l.max
		l.count--
	}
}
