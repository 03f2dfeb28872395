package auth

import (
	"sync"
	"time"
)

// Clock is the single time source of the auth core.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Unix converts an instant to unix seconds.
func Unix(t time.Time) int64 { return t.Unix() }

// FromUnix converts unix seconds to a UTC instant.
func FromUnix(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

// AddDays moves an instant forward by whole days.
func AddDays(t time.Time, days int) time.Time { return t.AddDate(0, 0, days) }

// Days converts a day count into a duration.
func Days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

// FakeClock is a manually driven Clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set jumps the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
