package engine

import "time"

// Clock is a monotonic elapsed/remaining time source for one session.
//
// The clock is purely logical: it only moves when Advance is called with an
// observed wall-clock delta. Missed ticks (process suspension, scheduler
// jitter) are reconciled by the caller passing the real delta rather than a
// fixed one-second increment, so drift never compounds.
//
// Clock is not safe for concurrent use on its own; the Session Controller
// serializes all access through its event loop.
type Clock struct {
	limit   time.Duration // zero means count-up with no expiry
	elapsed time.Duration
	paused  bool
	expired bool

	thresholds []*thresholdHook
	onTick     func(elapsed, remaining time.Duration)
	onExpired  func()
}

// thresholdHook fires once when remaining time first drops to or below the
// given fraction of the limit.
type thresholdHook struct {
	fraction float64
	fn       func(fraction float64)
	fired    bool
}

// NewClock creates a clock counting down from limit. A zero limit produces a
// count-up clock that never expires (practice mode).
func NewClock(limit time.Duration) *Clock {
	return &Clock{limit: limit}
}

// OnTick registers a callback invoked after every Advance with the updated
// elapsed and remaining durations.
func (c *Clock) OnTick(fn func(elapsed, remaining time.Duration)) {
	c.onTick = fn
}

// OnThreshold registers a callback fired at most once, when remaining time
// first crosses fraction*limit. Multiple ticks landing past the threshold do
// not produce duplicate firings.
func (c *Clock) OnThreshold(fraction float64, fn func(fraction float64)) {
	c.thresholds = append(c.thresholds, &thresholdHook{fraction: fraction, fn: fn})
}

// OnExpired registers a callback fired exactly once when remaining time
// reaches zero.
func (c *Clock) OnExpired(fn func()) {
	c.onExpired = fn
}

// Advance moves the clock forward by d. No-op while paused or after expiry,
// which is what freezes remaining time across pause/resume cycles. Threshold
// and expiry callbacks fire synchronously, in crossing order.
func (c *Clock) Advance(d time.Duration) {
	if c.paused || c.expired || d <= 0 {
		return
	}

	c.elapsed += d
	if c.limit > 0 && c.elapsed > c.limit {
		c.elapsed = c.limit
	}

	if c.limit > 0 {
		remaining := c.limit - c.elapsed
		frac := float64(remaining) / float64(c.limit)
		for _, t := range c.thresholds {
			if !t.fired && frac <= t.fraction {
				t.fired = true
				t.fn(t.fraction)
			}
		}
		if remaining <= 0 {
			c.expired = true
			if c.onExpired != nil {
				c.onExpired()
			}
		}
	}

	if c.onTick != nil {
		c.onTick(c.elapsed, c.Remaining())
	}
}

// Pause freezes the clock. Idempotent.
func (c *Clock) Pause() { c.paused = true }

// Resume unfreezes the clock from the frozen remaining time. Idempotent.
func (c *Clock) Resume() { c.paused = false }

// Elapsed returns total active time.
func (c *Clock) Elapsed() time.Duration { return c.elapsed }

// Remaining returns the time left, or zero for a count-up clock.
func (c *Clock) Remaining() time.Duration {
	if c.limit == 0 {
		return 0
	}
	return c.limit - c.elapsed
}

// Expired reports whether the clock has crossed zero.
func (c *Clock) Expired() bool { return c.expired }

// Paused reports whether the clock is currently frozen.
func (c *Clock) Paused() bool { return c.paused }

// restoreElapsed rewinds the clock to a known elapsed value when resuming a
// session from a snapshot. Thresholds already crossed at that point are
// marked fired so resuming never replays old warnings.
func (c *Clock) restoreElapsed(elapsed time.Duration) {
	c.elapsed = elapsed
	if c.limit == 0 {
		return
	}
	frac := float64(c.limit-c.elapsed) / float64(c.limit)
	for _, t := range c.thresholds {
		if frac <= t.fraction {
			t.fired = true
		}
	}
	if c.limit-c.elapsed <= 0 {
		c.expired = true
	}
}
