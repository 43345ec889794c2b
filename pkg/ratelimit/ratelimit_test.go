package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a mutable time source for deterministic window tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(capacity int) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return New(WithCapacity(capacity), WithClock(clock.Now)), clock
}

func TestAllowCap(t *testing.T) {
	l, _ := newTestLimiter(30)

	for i := 0; i < 30; i++ {
		assert.True(t, l.Allow(), "request %d should be admitted", i+1)
	}
	assert.False(t, l.Allow(), "31st request must be rejected")
	assert.True(t, l.Limited())
	assert.Equal(t, 0, l.Remaining())
}

func TestWindowReset(t *testing.T) {
	l, clock := newTestLimiter(30)

	for i := 0; i < 30; i++ {
		assert.True(t, l.Allow())
	}
	assert.False(t, l.Allow())

	clock.Advance(DefaultWindow)

	assert.True(t, l.Allow(), "first request of the fresh window")
	assert.Equal(t, 29, l.Remaining(), "reset count must be 1 after the admitting call")
}

func TestLimitedDoesNotConsume(t *testing.T) {
	l, _ := newTestLimiter(2)

	assert.False(t, l.Limited())
	assert.False(t, l.Limited())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Limited())
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(1)

	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	l.Reset()
	assert.True(t, l.Allow())
}

func TestRejectionDoesNotMutate(t *testing.T) {
	l, clock := newTestLimiter(1)

	assert.True(t, l.Allow())
	for i := 0; i < 10; i++ {
		assert.False(t, l.Allow())
	}

	// Rejections must not have extended or restarted the window.
	clock.Advance(DefaultWindow)
	assert.True(t, l.Allow())
}

func TestConcurrentAllowNeverExceedsCap(t *testing.T) {
	l, _ := newTestLimiter(30)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 30, admitted)
}
