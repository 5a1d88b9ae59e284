// Package services – TaskService
//
// This file implements the read projection over the task store (what the
// dashboard queries) plus the one administrative write: cancelling a task
// that has not started running. The projection holds no write authority
// beyond that; all other transitions belong to the scheduler and lanes.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pkaratz/go-calsync-backend/internal/domain"
	"github.com/pkaratz/go-calsync-backend/internal/repo"
)

// TaskService exposes task snapshots and administrative cancellation.
type TaskService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewTaskService constructs a TaskService.
func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{DB: db}
}

// ListPage returns a page of task snapshots matching the filter, newest
// first, along with the total count for pagination metadata.
func (s *TaskService) ListPage(ctx context.Context, f repo.TaskFilter, page, pageSize int) ([]domain.BlockTask, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountTasks(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.BlockTask{}, 0, nil
	}

	items, err := repo.ListTasksPage(ctx, s.DB, f, offset, pageSize)
	return items, total, err
}

// Get returns a single task snapshot, or ErrTaskNotFound.
func (s *TaskService) Get(ctx context.Context, id string) (*domain.BlockTask, error) {
	t, err := repo.GetTask(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return t, nil
}

// Stats returns per-state task totals for the dashboard.
func (s *TaskService) Stats(ctx context.Context) (repo.StateCounts, error) {
	return repo.CountTasksByState(ctx, s.DB)
}

// Cancel marks a pending or retry-waiting task dead (administrative
// override). Running tasks cannot be cancelled — the in-flight automation
// call finishes and its outcome still applies — and terminal tasks stay
// where they are. Both cases return ErrNotCancellable.
func (s *TaskService) Cancel(ctx context.Context, id string) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !t.State.Dispatchable() {
		return ErrNotCancellable
	}

	err = repo.TransitionTask(ctx, s.DB, id, t.State, domain.TaskDead, map[string]any{
		"last_error": "cancelled by operator",
	})
	if errors.Is(err, repo.ErrConflict) {
		// Claimed or resolved between the read and the write.
		return ErrNotCancellable
	}
	return err
}
