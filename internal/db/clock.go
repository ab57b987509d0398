package db

import (
	"sync"
	"time"
)

// clock hands out strictly increasing timestamps at the backend's storage
// resolution, so createdAt ordering is total even for same-tick inserts.
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	step time.Duration
	last time.Time
}

func newClock(step time.Duration) *clock {
	return &clock{now: time.Now, step: step}
}

func (c *clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(c.step)
	if !t.After(c.last) {
		t = c.last.Add(c.step)
	}
	c.last = t
	return t
}
