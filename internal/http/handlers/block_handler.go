// Manual block HTTP handlers.
//
// This file exposes the dashboard endpoint for walk-in blocks:
//   - POST /api/v1/blocks   (close dates on selected platforms)
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pkaratz/go-calsync-backend/internal/domain"
	"github.com/pkaratz/go-calsync-backend/internal/services"
)

// dateLayout is the calendar-date wire format for block requests.
const dateLayout = "2006-01-02"

// CreateBlockRequest is the JSON payload for a manual block.
type CreateBlockRequest struct {
	// Checkin and Checkout are calendar dates, "YYYY-MM-DD".
	Checkin  string `json:"checkin" binding:"required"`
	Checkout string `json:"checkout" binding:"required"`
	// PropertyID optionally scopes the block to one listing.
	PropertyID string `json:"property_id"`
	// Platforms names the calendars to block ("airbnb", "booking").
	Platforms []string `json:"platforms" binding:"required"`
}

// CreateBlockResponse lists the tasks admitted for a manual block, one per
// selected platform.
type CreateBlockResponse struct {
	Tasks []*domain.BlockTask `json:"tasks"`
}

// CreateBlock admits a walk-in block. Each selected platform gets its own
// task; the response is 202 because the blocks execute asynchronously.
func (h *Handlers) CreateBlock(c *gin.Context) {
	var req CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	checkin, err := time.Parse(dateLayout, req.Checkin)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "checkin must be YYYY-MM-DD")
		return
	}
	checkout, err := time.Parse(dateLayout, req.Checkout)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "checkout must be YYYY-MM-DD")
		return
	}

	targets := make([]domain.Platform, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		targets = append(targets, domain.Platform(p))
	}

	tasks, err := h.ingestSvc.AdmitManual(c.Request.Context(), checkin, checkout, req.PropertyID, targets)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoPlatformSelected),
			errors.Is(err, domain.ErrUnknownPlatform),
			errors.Is(err, domain.ErrInvalidDateRange):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusAccepted, CreateBlockResponse{Tasks: tasks})
}
