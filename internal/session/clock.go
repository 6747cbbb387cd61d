package session

import (
	"sync"
	"time"
)

// Clock is a wall-clock countdown over a fixed start timestamp and duration.
// Remaining time is recomputed from the absolute start on every call; ticks
// are only a trigger to re-check, so time stolen from a suspended process or
// a backgrounded tab never desynchronizes the countdown.
type Clock struct {
	start    time.Time
	duration time.Duration
	now      func() time.Time
	tick     time.Duration

	mu      sync.Mutex
	fired   bool
	stopped bool
	stopCh  chan struct{}
}

// ClockOption customizes a Clock. Used by tests to inject a fake time source.
type ClockOption func(*Clock)

// WithNow replaces the wall-clock source.
func WithNow(now func() time.Time) ClockOption {
	return func(c *Clock) { c.now = now }
}

// WithTick replaces the re-check period (default 1s).
func WithTick(d time.Duration) ClockOption {
	return func(c *Clock) { c.tick = d }
}

// NewClock creates a countdown for a session that started at start and is
// allowed duration of total time.
func NewClock(start time.Time, duration time.Duration, opts ...ClockOption) *Clock {
	c := &Clock{
		start:    start,
		duration: duration,
		now:      time.Now,
		tick:     time.Second,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Remaining returns the whole seconds left, floored at 0.
func (c *Clock) Remaining() int {
	left := c.duration - c.now().Sub(c.start)
	if left < 0 {
		return 0
	}
	return int(left / time.Second)
}

// Expired reports whether the deadline has passed.
func (c *Clock) Expired() bool {
	return c.Remaining() <= 0
}

// Start begins ticking and invokes onExpire exactly once, the first time the
// countdown reaches zero. A session loaded past its deadline expires
// immediately without waiting for a tick. onExpire runs on the clock's
// goroutine; an expiry that has not started firing is suppressed by Stop.
func (c *Clock) Start(onExpire func()) {
	// Already past the deadline: fire before scheduling any tick.
	if c.tryFire(onExpire) {
		return
	}

	go func() {
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				if c.tryFire(onExpire) {
					return
				}
			}
		}
	}()
}

// tryFire invokes onExpire if the clock has expired and neither fired nor
// been stopped. Returns true when no further ticks are needed.
func (c *Clock) tryFire(onExpire func()) bool {
	if !c.Expired() {
		return false
	}

	c.mu.Lock()
	if c.fired || c.stopped {
		c.mu.Unlock()
		return true
	}
	c.fired = true
	c.mu.Unlock()

	onExpire()
	return true
}

// Stop halts the countdown. No expiry fires after Stop. Safe to call more
// than once and safe to call from the expiry callback.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
}
