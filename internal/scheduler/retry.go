// Package scheduler drives the booking-to-block task pipeline: a polling
// dispatch loop, one serialized execution lane per target platform, and the
// retry policy deciding when a failed task runs again.
//
// This file holds the retry policy. It is a pure decision function — the
// scheduler owns all persistence side effects.
package scheduler

import (
	"math/rand"
	"time"

	"github.com/pkaratz/go-calsync-backend/internal/automation"
)

// ReasonExhausted is the terminal reason recorded when a task runs out of
// attempts.
const ReasonExhausted = "attempts exhausted"

// Decision is the outcome of consulting the retry policy after a failed
// attempt.
type Decision struct {
	// RetryAt is when the task becomes due again. Meaningless when Terminal.
	RetryAt time.Time
	// Terminal marks the task dead instead of rescheduling it.
	Terminal bool
	// Reason is the failure description to persist as last_error.
	Reason string
}

// RetryPolicy computes backoff schedules for transient failures and decides
// when a task is beyond saving. Exponential backoff with jitter: delay =
// BaseDelay * 2^(attempt-1), capped at MaxDelay, then spread by ±Jitter to
// avoid synchronized retry storms against one platform lane.
type RetryPolicy struct {
	// MaxAttempts is the ceiling on executions per task (default 5).
	MaxAttempts int
	// BaseDelay is the delay after the first failed attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// Jitter is the symmetric randomization fraction (0.2 = ±20%).
	// Zero disables jitter, which tests rely on for determinism.
	Jitter float64
}

// DefaultRetryPolicy mirrors the configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   30 * time.Second,
		MaxDelay:    15 * time.Minute,
		Jitter:      0.2,
	}
}

// Next decides what happens to a task whose attempt-th execution just failed
// with the given error class and description.
//
// A permanent failure is terminal regardless of the attempt count. Reaching
// MaxAttempts is terminal with ReasonExhausted. Everything else is
// rescheduled at now + Delay(attempt).
func (p RetryPolicy) Next(now time.Time, attempt int, class automation.Class, detail string) Decision {
	if class == automation.Permanent {
		return Decision{Terminal: true, Reason: detail}
	}
	if attempt >= p.MaxAttempts {
		return Decision{Terminal: true, Reason: ReasonExhausted}
	}
	return Decision{
		RetryAt: now.Add(p.Delay(attempt)),
		Reason:  detail,
	}
}

// Delay returns the backoff delay after the attempt-th failure, jittered.
// It is monotonically non-decreasing in attempt up to MaxDelay when Jitter
// is zero.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}

	if p.Jitter > 0 {
		// Spread into [d*(1-Jitter), d*(1+Jitter)].
		f := 1 + p.Jitter*(2*rand.Float64()-1)
		d = time.Duration(float64(d) * f)
	}
	return d
}
