// Package services defines the business logic for booking ingestion and
// task administration. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import "errors"

var (
	// ErrTaskNotFound indicates that the requested block task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNotCancellable is returned when cancellation is requested for a
	// task that is running or already terminal. A running task's in-flight
	// automation call is allowed to finish and its outcome still applies.
	ErrNotCancellable = errors.New("task is not cancellable in its current state")

	// ErrNoTarget is returned when a booking's source platform has no
	// opposite calendar to block (unknown or manual sources must go through
	// the manual-block path, which names its targets explicitly).
	ErrNoTarget = errors.New("no target platform for booking")

	// ErrNoPlatformSelected is returned when a manual block request selects
	// no platform at all.
	ErrNoPlatformSelected = errors.New("no platform selected")
)
