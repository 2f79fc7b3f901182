// Package clock abstracts time so pipeline advancement can run against the
// wall clock in production and a stepped clock in tests and simulations.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Real reads the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Simulated is a manually advanced clock.
type Simulated struct {
	mu  sync.Mutex
	now time.Time
}

// NewSimulated returns a simulated clock fixed at start.
func NewSimulated(start time.Time) *Simulated {
	return &Simulated{now: start}
}

func (c *Simulated) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Simulated) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set jumps the clock to t.
func (c *Simulated) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
