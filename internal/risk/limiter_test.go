package risk

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func TestRateLimiterAdmitsUpToMax(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(3, time.Minute, WithClock(clock.Now))

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
	assert.Equal(t, 3, l.InFlight())
}

func TestRateLimiterDeniedCallsAreNotRecorded(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(1, time.Second, WithClock(clock.Now))

	require.True(t, l.Allow())
	for i := 0; i < 10; i++ {
		clock.Advance(50 * time.Millisecond)
		require.False(t, l.Allow())
	}
	clock.Advance(501 * time.Millisecond)
	assert.True(t, l.Allow())
}

func TestRateLimiterWindowBoundary(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(2, time.Second, WithClock(clock.Now))

	require.True(t, l.Allow())
	require.True(t, l.Allow())

	clock.Advance(time.Second)
	assert.False(t, l.Allow(), "permits exactly one window old still count")

	clock.Advance(time.Nanosecond)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestRateLimiterMinimumMax(t *testing.T) {
	l := NewRateLimiter(0, time.Minute)
	assert.Equal(t, 1, l.Max())
	assert.Equal(t, time.Minute, l.Window())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestRateLimiterSlidingWindowProperty(t *testing.T) {
	const (
		max    = 5
		window = 100 * time.Millisecond
	)
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 20; round++ {
		clock := newFakeClock()
		l := NewRateLimiter(max, window, WithClock(clock.Now))
		var granted []time.Time

		for i := 0; i < 2000; i++ {
			switch rng.Intn(4) {
			case 0:
				// burst at the same instant
			case 1:
				clock.Advance(window)
			default:
				clock.Advance(time.Duration(rng.Intn(int(window/4))))
			}
			if l.Allow() {
				granted = append(granted, clock.Now())
			}
		}

		require.NotEmpty(t, granted)
		// every closed window [g, g+window] starting at a grant holds at most max grants
		for i := range granted {
			n := 0
			for j := i; j < len(granted) && granted[j].Sub(granted[i]) <= window; j++ {
				n++
			}
			require.LessOrEqualf(t, n, max, "round %d window starting at grant %d", round, i)
		}
	}
}
