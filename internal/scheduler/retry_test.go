package scheduler

import (
	"testing"
	"time"

	"github.com/pkaratz/go-calsync-backend/internal/automation"
)

func deterministicPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   30 * time.Second,
		MaxDelay:    15 * time.Minute,
		Jitter:      0,
	}
}

func TestRetryPolicy_DelayDoublesAndCaps(t *testing.T) {
	p := deterministicPolicy()

	want := []time.Duration{
		30 * time.Second,  // attempt 1
		60 * time.Second,  // attempt 2
		120 * time.Second, // attempt 3
		240 * time.Second, // attempt 4
		480 * time.Second, // attempt 5
	}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}

	// Keeps doubling until the cap, then stays there.
	if got := p.Delay(6); got != 15*time.Minute {
		t.Fatalf("Delay(6) = %v, want cap", got)
	}
	if got := p.Delay(50); got != 15*time.Minute {
		t.Fatalf("Delay(50) = %v, want cap", got)
	}

	// Out-of-range attempt is clamped, not zeroed.
	if got := p.Delay(0); got != 30*time.Second {
		t.Fatalf("Delay(0) = %v, want BaseDelay", got)
	}
}

func TestRetryPolicy_DelayMonotonicWithoutJitter(t *testing.T) {
	p := deterministicPolicy()
	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		d := p.Delay(attempt)
		if d < prev {
			t.Fatalf("Delay(%d) = %v < Delay(%d) = %v", attempt, d, attempt-1, prev)
		}
		prev = d
	}
}

func TestRetryPolicy_JitterBounds(t *testing.T) {
	p := deterministicPolicy()
	p.Jitter = 0.2

	lo := time.Duration(float64(30*time.Second) * 0.8)
	hi := time.Duration(float64(30*time.Second) * 1.2)
	for i := 0; i < 200; i++ {
		d := p.Delay(1)
		if d < lo || d > hi {
			t.Fatalf("jittered delay %v outside [%v, %v]", d, lo, hi)
		}
	}
}

func TestRetryPolicy_Next(t *testing.T) {
	p := deterministicPolicy()
	now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)

	t.Run("transient failure reschedules", func(t *testing.T) {
		d := p.Next(now, 1, automation.Transient, "transient: timeout")
		if d.Terminal {
			t.Fatal("first transient failure must not be terminal")
		}
		if want := now.Add(30 * time.Second); !d.RetryAt.Equal(want) {
			t.Fatalf("RetryAt = %v, want %v", d.RetryAt, want)
		}
		if d.Reason != "transient: timeout" {
			t.Fatalf("Reason = %q", d.Reason)
		}
	})

	t.Run("permanent failure is terminal immediately", func(t *testing.T) {
		d := p.Next(now, 1, automation.Permanent, "permanent: dates rejected")
		if !d.Terminal {
			t.Fatal("permanent failure must be terminal")
		}
		if d.Reason != "permanent: dates rejected" {
			t.Fatalf("Reason = %q", d.Reason)
		}
	})

	t.Run("attempt ceiling is terminal with exhausted reason", func(t *testing.T) {
		d := p.Next(now, p.MaxAttempts, automation.Transient, "transient: timeout")
		if !d.Terminal {
			t.Fatal("reaching MaxAttempts must be terminal")
		}
		if d.Reason != ReasonExhausted {
			t.Fatalf("Reason = %q, want %q", d.Reason, ReasonExhausted)
		}
	})

	t.Run("one attempt left still retries", func(t *testing.T) {
		d := p.Next(now, p.MaxAttempts-1, automation.Transient, "transient: timeout")
		if d.Terminal {
			t.Fatal("attempt MaxAttempts-1 must reschedule")
		}
	})
}
