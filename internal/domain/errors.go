// Package domain defines the core persistence models for the application.
// This file centralizes validation errors for booking construction so the
// ingestion boundary can reject malformed notifications consistently.
package domain

import "errors"

var (
	// ErrUnknownPlatform is returned when a booking names a platform the
	// system does not reconcile.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrMissingConfirmation is returned when a booking carries no
	// confirmation code; without it there is no dedup identity.
	ErrMissingConfirmation = errors.New("missing confirmation code")

	// ErrInvalidDateRange is returned when checkin is not strictly before
	// checkout.
	ErrInvalidDateRange = errors.New("checkin must be before checkout")
)
