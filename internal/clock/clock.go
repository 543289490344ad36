// Package clock supplies timestamps for envelope creation and comparison.
// The system clock is guarded so that successive calls never return equal or
// decreasing values — two commits on the same producer always get distinct
// ordering keys even when the wall clock's resolution cannot tell them apart.
package clock

import (
	"sync"
	"time"
)

// Clock yields the timestamps stamped into envelopes as CreatedUtcDate.
type Clock interface {
	Now() time.Time
}

// System is a monotonic wall clock. Safe for concurrent use.
type System struct {
	mu   sync.Mutex
	last time.Time
}

// NewSystem creates a monotonic system clock.
func NewSystem() *System {
	return &System{}
}

// Now returns the current UTC time, bumped forward by a microsecond if the
// wall clock has not advanced past the previously returned value.
func (c *System) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}

// Fixed is a clock pinned to a settable instant, for tests.
type Fixed struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixed creates a clock that always returns t until advanced.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t}
}

func (c *Fixed) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Fixed) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
