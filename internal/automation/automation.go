// Package automation defines the contract between the task pipeline and the
// browser-driven calendar automation. The pipeline only ever consumes this
// interface; how a platform's calendar UI is actually driven lives behind it
// (in production a Playwright worker reached over HTTP, in tests a scripted
// fake).
//
// Every failure leaving this package carries a class so the scheduler never
// needs capability-specific knowledge: transient failures are retried per
// the backoff policy, permanent ones bury the task immediately.
package automation

import (
	"context"
	"errors"
	"time"

	"github.com/pkaratz/go-calsync-backend/internal/domain"
)

// Class partitions automation failures by retryability.
type Class string

const (
	// Transient covers network errors, timeouts, and temporary UI state —
	// anything worth retrying later.
	Transient Class = "transient"
	// Permanent covers rejected credentials, invalid dates, and other
	// failures that no amount of retrying will fix.
	Permanent Class = "permanent"
)

// Error is a classified automation failure.
type Error struct {
	Class  Class
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string { return string(e.Class) + ": " + e.Detail }

// NewTransient builds a retryable automation error.
func NewTransient(detail string) *Error { return &Error{Class: Transient, Detail: detail} }

// NewPermanent builds a non-retryable automation error.
func NewPermanent(detail string) *Error { return &Error{Class: Permanent, Detail: detail} }

// ClassOf extracts the class of an automation failure. Unclassified errors
// (raw transport failures, context deadlines) default to Transient: the
// safe assumption for an unreliable remote capability.
func ClassOf(err error) Class {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Class
	}
	return Transient
}

// Capability blocks a date range on one platform's calendar. Implementations
// must be safe for concurrent use across platforms; the per-platform lane
// guarantees they are never invoked concurrently for the same platform.
//
// A nil return means the dates are blocked. Non-nil returns should be
// *Error values; anything else is treated as transient.
type Capability interface {
	BlockDates(ctx context.Context, platform domain.Platform, checkin, checkout time.Time, confirmationCode string) error
}

// Func adapts a plain function to the Capability interface (test fakes).
type Func func(ctx context.Context, platform domain.Platform, checkin, checkout time.Time, confirmationCode string) error

// BlockDates implements Capability.
func (f Func) BlockDates(ctx context.Context, platform domain.Platform, checkin, checkout time.Time, confirmationCode string) error {
	return f(ctx, platform, checkin, checkout, confirmationCode)
}
