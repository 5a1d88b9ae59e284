// Platform lanes: one serialized execution context per target platform.
//
// Authenticated automation sessions against the same host account must not
// run concurrently (session invalidation, platform-side fraud flags), so
// each lane owns a single session slot. The slot is an explicit semaphore
// rather than a mutex: acquisition is bounded, and a lane that cannot get
// the slot in time simply leaves the task due for the next scheduling pass.
package scheduler

import (
	"context"
	"time"

	"github.com/pkaratz/go-calsync-backend/internal/automation"
	"github.com/pkaratz/go-calsync-backend/internal/domain"
)

// OutcomeKind classifies a single lane execution.
type OutcomeKind string

const (
	// OutcomeSuccess means the dates are blocked on the target platform.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeRetryable means the attempt failed transiently.
	OutcomeRetryable OutcomeKind = "retryable_failure"
	// OutcomePermanent means the attempt failed in a way retries cannot fix.
	OutcomePermanent OutcomeKind = "permanent_failure"
)

// Outcome is the lane's classification of one automation invocation.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// Lane serializes automation executions against one platform. It invokes
// the capability exactly once per Execute call and maps the result onto an
// Outcome; retry scheduling is entirely the scheduler's concern.
type Lane struct {
	platform    domain.Platform
	capability  automation.Capability
	slot        chan struct{}
	slotTimeout time.Duration
}

// NewLane builds a lane for platform with a bounded session-slot wait.
func NewLane(platform domain.Platform, capability automation.Capability, slotTimeout time.Duration) *Lane {
	if slotTimeout <= 0 {
		slotTimeout = 5 * time.Second
	}
	slot := make(chan struct{}, 1)
	slot <- struct{}{}
	return &Lane{
		platform:    platform,
		capability:  capability,
		slot:        slot,
		slotTimeout: slotTimeout,
	}
}

// Platform returns the lane's target platform.
func (l *Lane) Platform() domain.Platform { return l.platform }

// TryAcquire claims the lane's session slot, waiting at most slotTimeout.
// Returning false is not a task failure — the caller leaves the task due.
func (l *Lane) TryAcquire(ctx context.Context) bool {
	timer := time.NewTimer(l.slotTimeout)
	defer timer.Stop()

	select {
	case <-l.slot:
		return true
	case <-timer.C:
		laneSlotTimeouts.WithLabelValues(string(l.platform)).Inc()
		return false
	case <-ctx.Done():
		return false
	}
}

// Release returns the session slot. Must be called exactly once per
// successful TryAcquire.
func (l *Lane) Release() {
	select {
	case l.slot <- struct{}{}:
	default:
		// Double release indicates a caller bug; dropping the token here
		// would deadlock the lane, so keep the slot full instead.
	}
}

// Execute invokes the automation capability once for the task and classifies
// the result. The caller must hold the session slot.
func (l *Lane) Execute(ctx context.Context, task *domain.BlockTask) Outcome {
	start := time.Now()
	err := l.capability.BlockDates(ctx, l.platform, task.Booking.Checkin, task.Booking.Checkout, task.Booking.ConfirmationCode)
	attemptDuration.WithLabelValues(string(l.platform)).Observe(time.Since(start).Seconds())

	if err == nil {
		return Outcome{Kind: OutcomeSuccess}
	}
	if automation.ClassOf(err) == automation.Permanent {
		return Outcome{Kind: OutcomePermanent, Reason: err.Error()}
	}
	return Outcome{Kind: OutcomeRetryable, Reason: err.Error()}
}
