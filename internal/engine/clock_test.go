package engine

import (
	"testing"
	"time"
)

func TestClock_CountdownAndExpiry(t *testing.T) {
	c := NewClock(10 * time.Second)

	expirations := 0
	c.OnExpired(func() { expirations++ })

	for i := 0; i < 15; i++ {
		c.Advance(time.Second)
	}

	if !c.Expired() {
		t.Fatal("expected clock to expire")
	}
	if expirations != 1 {
		t.Errorf("expected exactly one expiry callback, got %d", expirations)
	}
	if c.Remaining() != 0 {
		t.Errorf("remaining should clamp at zero, got %v", c.Remaining())
	}
	if c.Elapsed() != 10*time.Second {
		t.Errorf("elapsed should clamp at the limit, got %v", c.Elapsed())
	}
}

func TestClock_ThresholdFiresOncePerCrossing(t *testing.T) {
	c := NewClock(100 * time.Second)

	var fired []float64
	c.OnThreshold(0.5, func(f float64) { fired = append(fired, f) })
	c.OnThreshold(0.1, func(f float64) { fired = append(fired, f) })

	// Jitter: several ticks land past the 50% mark.
	c.Advance(49 * time.Second)
	c.Advance(2 * time.Second)
	c.Advance(2 * time.Second)
	c.Advance(2 * time.Second)

	if len(fired) != 1 || fired[0] != 0.5 {
		t.Fatalf("expected single 0.5 firing, got %v", fired)
	}

	// One big tick crosses the 10% mark.
	c.Advance(40 * time.Second)
	if len(fired) != 2 || fired[1] != 0.1 {
		t.Fatalf("expected 0.1 firing after second crossing, got %v", fired)
	}
}

func TestClock_PauseFreezesTime(t *testing.T) {
	c := NewClock(60 * time.Second)

	c.Advance(10 * time.Second)
	c.Pause()
	c.Pause() // idempotent
	c.Advance(30 * time.Second)

	if c.Elapsed() != 10*time.Second {
		t.Errorf("ticks while paused must not move the clock, elapsed=%v", c.Elapsed())
	}

	c.Resume()
	c.Advance(5 * time.Second)
	if c.Remaining() != 45*time.Second {
		t.Errorf("expected 45s remaining after resume, got %v", c.Remaining())
	}
}

func TestClock_CountUpNeverExpires(t *testing.T) {
	c := NewClock(0)
	expired := false
	c.OnExpired(func() { expired = true })

	c.Advance(2 * time.Hour)

	if expired || c.Expired() {
		t.Error("count-up clock must never expire")
	}
	if c.Elapsed() != 2*time.Hour {
		t.Errorf("elapsed = %v, want 2h", c.Elapsed())
	}
	if c.Remaining() != 0 {
		t.Errorf("count-up clock reports zero remaining, got %v", c.Remaining())
	}
}

func TestClock_TickOrderNonDecreasing(t *testing.T) {
	c := NewClock(30 * time.Second)

	var seen []time.Duration
	c.OnTick(func(elapsed, _ time.Duration) { seen = append(seen, elapsed) })

	c.Advance(3 * time.Second)
	c.Pause()
	c.Advance(time.Second)
	c.Resume()
	c.Advance(2 * time.Second)

	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("elapsed went backwards: %v", seen)
		}
	}
}

func TestClock_RestoreMarksCrossedThresholds(t *testing.T) {
	c := NewClock(100 * time.Second)
	var fired []float64
	c.OnThreshold(0.5, func(f float64) { fired = append(fired, f) })
	c.OnThreshold(0.1, func(f float64) { fired = append(fired, f) })

	// Resume at 40s remaining: 50% already crossed, 10% not.
	c.restoreElapsed(60 * time.Second)
	c.Advance(time.Second)

	if len(fired) != 0 {
		t.Fatalf("restored clock must not replay old warnings, got %v", fired)
	}

	c.Advance(50 * time.Second)
	if len(fired) != 1 || fired[0] != 0.1 {
		t.Fatalf("expected only the 0.1 warning after restore, got %v", fired)
	}
}
