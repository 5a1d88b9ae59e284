// Package handlers defines HTTP-layer error codes used across all API
// endpoints. Codes are lowercase snake_case; generic ones mirror HTTP status
// semantics and the domain-specific ones cover ingestion and task-admin
// failures that a status alone cannot convey. Handlers pick the most specific
// matching code and pass it to fail().
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeUnparseable    = "unparseable_notification"
	ErrCodeIngestFailed   = "ingest_failed"
	ErrCodeListFailed     = "list_failed"
	ErrCodeNotCancellable = "not_cancellable"
)
