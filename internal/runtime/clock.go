package runtime

import "sync/atomic"

// Clock is the monotonic slot counter. Each processed transaction gets the
// next slot, so slots order transactions without wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// However, the Runtime's single-writer design means only one goroutine
// calls Next().
type Clock struct {
	slot atomic.Uint64
}

// NewClock creates a clock whose first Next() returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
// Used to continue from the latest slot in an existing store.
func NewClockAt(start uint64) *Clock {
	c := &Clock{}
	c.slot.Store(start)
	return c
}

// Next returns the next slot and advances the clock.
func (c *Clock) Next() uint64 {
	return c.slot.Add(1)
}

// Current returns the last issued slot without advancing.
func (c *Clock) Current() uint64 {
	return c.slot.Load()
}
