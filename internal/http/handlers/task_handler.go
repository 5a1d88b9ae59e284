// Task administration HTTP handlers.
//
// This file exposes the dashboard's read/admin surface over the task store:
//   - GET  /api/v1/tasks            (list, paginated, filterable)
//   - GET  /api/v1/tasks/{id}       (single task)
//   - POST /api/v1/tasks/{id}/cancel
//   - GET  /api/v1/stats            (per-state totals)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pkaratz/go-calsync-backend/internal/domain"
	"github.com/pkaratz/go-calsync-backend/internal/repo"
	"github.com/pkaratz/go-calsync-backend/internal/services"
	"github.com/pkaratz/go-calsync-backend/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListTasksResponse wraps a page of tasks and pagination information.
type ListTasksResponse struct {
	Tasks      []domain.BlockTask `json:"tasks"`
	Pagination Pagination         `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// ListTasks returns a page of tasks, newest first. Optional query filters:
// state (pending|running|completed|failed_retryable|dead) and
// target_platform (airbnb|booking).
func (h *Handlers) ListTasks(c *gin.Context) {
	var f repo.TaskFilter
	if s := c.Query("state"); s != "" {
		st := domain.TaskState(s)
		switch st {
		case domain.TaskPending, domain.TaskRunning, domain.TaskCompleted,
			domain.TaskFailedRetryable, domain.TaskDead:
			f.State = st
		default:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown state filter")
			return
		}
	}
	if p := c.Query("target_platform"); p != "" {
		pl := domain.Platform(p)
		if !pl.Blockable() {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown target_platform filter")
			return
		}
		f.TargetPlatform = pl
	}

	page, pageSize := clampPagination(c)
	tasks, total, err := h.taskSvc.ListPage(c.Request.Context(), f, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListTasksResponse{
		Tasks: tasks,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetTask returns a single task by id.
func (h *Handlers) GetTask(c *gin.Context) {
	t, err := h.taskSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "task not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, t)
}

// CancelTask marks a pending or retry-waiting task dead. Running and
// terminal tasks return 409.
func (h *Handlers) CancelTask(c *gin.Context) {
	err := h.taskSvc.Cancel(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrTaskNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "task not found")
	case errors.Is(err, services.ErrNotCancellable):
		fail(c, http.StatusConflict, ErrCodeNotCancellable, "task is running or already finished")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// Stats returns per-state task totals for the dashboard.
func (h *Handlers) Stats(c *gin.Context) {
	counts, err := h.taskSvc.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, counts)
}
