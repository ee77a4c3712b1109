package auction

import (
	"sync"
	"time"
)

// Clock supplies the current timestamp (clock units are Unix seconds)
// used for listing-expiry comparisons. Readings must be monotonically
// non-decreasing within one process lifetime.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock, clamped so a backwards step (NTP
// correction, leap adjustment) never produces a decreasing reading.
type SystemClock struct {
	mu   sync.Mutex
	last uint64
}

// NewSystemClock creates a new system clock.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now returns the current Unix timestamp, never less than a previous reading.
func (c *SystemClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := uint64(time.Now().Unix())
	if now < c.last {
		return c.last
	}
	c.last = now
	return now
}

// ManualClock is a settable clock for tests and simulations.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

// NewManualClock creates a manual clock starting at the given reading.
func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the configured reading.
func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by delta units.
func (c *ManualClock) Advance(delta uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += delta
}

// Set moves the clock to an absolute reading. Readings never go
// backwards; setting an earlier time is ignored.
func (c *ManualClock) Set(now uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now > c.now {
		c.now = now
	}
}

// Verify interface compliance at compile time.
var (
	_ Clock = (*SystemClock)(nil)
	_ Clock = (*ManualClock)(nil)
)
