// Booking ingestion HTTP handlers.
//
// This file exposes the ingress endpoint for forwarded platform
// notifications:
//   - POST /webhook/email   (parse a booking email, admit a block task)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. All task creation
// funnels through IngestService so the dedup guarantee holds regardless of
// how the notification arrived.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pkaratz/go-calsync-backend/internal/domain"
	"github.com/pkaratz/go-calsync-backend/internal/http/middleware"
	"github.com/pkaratz/go-calsync-backend/internal/ingest"
	"github.com/pkaratz/go-calsync-backend/internal/repo"
	"github.com/pkaratz/go-calsync-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// IngestService defines booking admission operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type IngestService interface {
	// Admit ingests one parsed booking; created reports whether a new task
	// was made (false means a dedup hit).
	Admit(ctx context.Context, booking domain.Booking) (*domain.BlockTask, bool, error)
	// AdmitManual ingests a walk-in block for each selected target platform.
	AdmitManual(ctx context.Context, checkin, checkout time.Time, propertyID string, targets []domain.Platform) ([]*domain.BlockTask, error)
}

// TaskService defines task read/admin operations consumed by HTTP handlers.
type TaskService interface {
	// ListPage returns a page of tasks matching the filter and the total count.
	ListPage(ctx context.Context, f repo.TaskFilter, page, pageSize int) ([]domain.BlockTask, int64, error)
	// Get returns one task by id.
	Get(ctx context.Context, id string) (*domain.BlockTask, error)
	// Stats returns per-state task totals.
	Stats(ctx context.Context) (repo.StateCounts, error)
	// Cancel marks a not-yet-running task dead.
	Cancel(ctx context.Context, id string) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for ingestion and task administration.
type Handlers struct {
	ingestSvc IngestService
	taskSvc   TaskService
}

// New constructs a Handlers instance bound to the given services.
func New(ingestSvc IngestService, taskSvc TaskService) *Handlers {
	return &Handlers{ingestSvc: ingestSvc, taskSvc: taskSvc}
}

//
// DTOs
//

// EmailWebhookRequest is the JSON payload delivered by the mail forwarder.
type EmailWebhookRequest struct {
	// Subject is the notification email subject line.
	Subject string `json:"subject"`
	// Body is the plain-text notification body.
	Body string `json:"body" binding:"required"`
}

// AdmitResponse reports the task responsible for a booking after admission.
type AdmitResponse struct {
	// Task is the block task covering the booking's dedup key.
	Task *domain.BlockTask `json:"task"`
	// Created is false when the notification was a duplicate and an existing
	// task already covers it.
	Created bool `json:"created"`
}

//
// Handlers
//

// EmailWebhook ingests a forwarded booking notification. Duplicates are not
// errors: the existing task is returned with created=false and HTTP 200.
// Newly admitted tasks return 202 because the block itself happens
// asynchronously.
func (h *Handlers) EmailWebhook(c *gin.Context) {
	var req EmailWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	booking, err := ingest.ParseEmail(req.Body, req.Subject)
	if err != nil {
		if errors.Is(err, ingest.ErrUnparseable) {
			fail(c, http.StatusBadRequest, ErrCodeUnparseable, "could not detect a booking in the notification")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, err.Error())
		return
	}

	task, created, err := h.ingestSvc.Admit(c.Request.Context(), *booking)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownPlatform),
			errors.Is(err, domain.ErrMissingConfirmation),
			errors.Is(err, domain.ErrInvalidDateRange),
			errors.Is(err, services.ErrNoTarget):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, err.Error())
		}
		return
	}

	lg := middleware.LoggerFrom(c)
	lg.Info().
		Str("task_id", task.ID).
		Str("source_platform", string(booking.SourcePlatform)).
		Str("target_platform", string(task.TargetPlatform)).
		Bool("created", created).
		Msg("notification admitted")

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	ok(c, status, AdmitResponse{Task: task, Created: created})
}
