package testutil

import (
	"sync"
	"time"
)

// Epoch is the fixed start time of deterministic test clocks.
var Epoch = time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

// StepClock is a deterministic wall clock for tests. Every call to Now
// returns the previous instant plus the step, starting at the start time.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewStepClock creates a clock whose first reading is start.
// A zero step makes every reading identical.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{next: start, step: step}
}

// Now returns the next reading.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

// Fixed returns a clock function that always reports t.
func Fixed(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
