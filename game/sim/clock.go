package sim

import (
	"sync"
	"time"
)

// Clock is the single time source shared by the tick loop and the combat
// resolver. All cooldowns, immunity windows, and rate-limit windows are
// computed against the same clock so they stay mutually consistent.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock (time.Time carries a monotonic reading,
// so intervals are immune to NTP jumps).
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a test clock advanced explicitly.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock starting at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
