// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for bookings and
// block tasks.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a task is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - State transitions are compare-and-set on (id, expected_state); a write
//     raced by another actor returns ErrConflict so the caller can re-read
//     and re-decide.
//   - On other DB errors, the raw gorm error is propagated.
//
// The task store is the only mutable shared state in the pipeline. The
// scheduler, platform lanes, and the administrative API all mutate tasks
// exclusively through TransitionTask and its wrappers, so no in-memory task
// copy is ever authoritative.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pkaratz/go-calsync-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrConflict is returned when a compare-and-set state transition finds the
// task no longer in the expected state. The caller should re-read the task
// and reconsider; the error is never surfaced to API clients.
var ErrConflict = errors.New("task state conflict")

// TaskFilter narrows list queries. Zero values mean "any".
type TaskFilter struct {
	State          domain.TaskState
	TargetPlatform domain.Platform
}

func (f TaskFilter) apply(q *gorm.DB) *gorm.DB {
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	if f.TargetPlatform != "" {
		q = q.Where("target_platform = ?", f.TargetPlatform)
	}
	return q
}

// CreateTask inserts the booking row and a pending block task derived from
// it, in the given handle (callers wrap it in a transaction together with
// the dedup lookup). The new task starts with attempt_count = 0 and is due
// immediately.
func CreateTask(ctx context.Context, db *gorm.DB, booking domain.Booking, target domain.Platform, now time.Time) (*domain.BlockTask, error) {
	booking.ID = uuid.NewString()
	booking.CreatedAt = now
	if err := db.WithContext(ctx).Create(&booking).Error; err != nil {
		return nil, err
	}

	t := &domain.BlockTask{
		ID:             uuid.NewString(),
		BookingID:      booking.ID,
		TargetPlatform: target,
		DedupKey:       booking.DedupKey(),
		State:          domain.TaskPending,
		AttemptCount:   0,
		NextAttemptAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
		Booking:        booking,
	}
	if err := db.WithContext(ctx).Omit("Booking").Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// FindActiveTask returns the non-dead task for a dedup key, or ErrNotFound.
// The dedup invariant guarantees at most one such row exists.
func FindActiveTask(ctx context.Context, db *gorm.DB, dedupKey string) (*domain.BlockTask, error) {
	var t domain.BlockTask
	err := db.WithContext(ctx).
		Preload("Booking").
		Where("dedup_key = ? AND state <> ?", dedupKey, domain.TaskDead).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindLatestTask returns the most recent task for a dedup key regardless of
// state, or ErrNotFound. Used by the no-respawn admission policy to answer
// replays for abandoned keys.
func FindLatestTask(ctx context.Context, db *gorm.DB, dedupKey string) (*domain.BlockTask, error) {
	var t domain.BlockTask
	err := db.WithContext(ctx).
		Preload("Booking").
		Where("dedup_key = ?", dedupKey).
		Order("created_at desc, id desc").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTask fetches a single task (with its booking) by ID, or ErrNotFound.
func GetTask(ctx context.Context, db *gorm.DB, id string) (*domain.BlockTask, error) {
	var t domain.BlockTask
	err := db.WithContext(ctx).Preload("Booking").Where("id = ?", id).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DueTasks returns up to limit tasks eligible for dispatch at now, in FIFO
// order: next_attempt_at, then created_at, then id for determinism on ties.
func DueTasks(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.BlockTask, error) {
	var out []domain.BlockTask
	err := db.WithContext(ctx).
		Preload("Booking").
		Where("state IN ? AND next_attempt_at <= ?",
			[]domain.TaskState{domain.TaskPending, domain.TaskFailedRetryable}, now).
		Order("next_attempt_at asc, created_at asc, id asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountTasks returns the total number of tasks matching the filter.
func CountTasks(ctx context.Context, db *gorm.DB, f TaskFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.BlockTask{})).Count(&total).Error
	return total, err
}

// ListTasksPage returns a page of tasks matching the filter, newest first.
// Use CountTasks to obtain the total for pagination metadata.
func ListTasksPage(ctx context.Context, db *gorm.DB, f TaskFilter, offset, limit int) ([]domain.BlockTask, error) {
	var out []domain.BlockTask
	err := f.apply(db.WithContext(ctx).Preload("Booking")).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TransitionTask performs a compare-and-set state transition: the update is
// applied only if the task is currently in the expected state. Extra column
// updates (attempt counters, retry timestamps, error text) ride along in the
// same UPDATE so the transition is atomic.
//
// Returns ErrConflict when the row exists but was raced out of the expected
// state, and ErrNotFound when no such task exists.
func TransitionTask(ctx context.Context, db *gorm.DB, id string, from, to domain.TaskState, extra map[string]any) error {
	updates := map[string]any{
		"state":      to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := db.WithContext(ctx).
		Model(&domain.BlockTask{}).
		Where("id = ? AND state = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.WithContext(ctx).Model(&domain.BlockTask{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// ClaimTask transitions a dispatchable task to running and increments its
// attempt counter in the same write.
func ClaimTask(ctx context.Context, db *gorm.DB, id string, from domain.TaskState) error {
	return TransitionTask(ctx, db, id, from, domain.TaskRunning, map[string]any{
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// CompleteTask transitions a running task to completed. LastError is left
// untouched for audit.
func CompleteTask(ctx context.Context, db *gorm.DB, id string) error {
	return TransitionTask(ctx, db, id, domain.TaskRunning, domain.TaskCompleted, nil)
}

// RetryTask transitions a running task back to failed_retryable with the
// next attempt time and failure description.
func RetryTask(ctx context.Context, db *gorm.DB, id string, retryAt time.Time, lastErr string) error {
	return TransitionTask(ctx, db, id, domain.TaskRunning, domain.TaskFailedRetryable, map[string]any{
		"next_attempt_at": retryAt,
		"last_error":      lastErr,
	})
}

// BuryTask transitions a running task to dead with the terminal reason.
func BuryTask(ctx context.Context, db *gorm.DB, id string, reason string) error {
	return TransitionTask(ctx, db, id, domain.TaskRunning, domain.TaskDead, map[string]any{
		"last_error": reason,
	})
}
