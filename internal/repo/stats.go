// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries consumed by the
// dashboard stats endpoint and the stale-task janitor.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pkaratz/go-calsync-backend/internal/domain"
)

// StateCounts maps each task state to the number of tasks currently in it.
type StateCounts map[domain.TaskState]int64

// CountTasksByState returns per-state task totals in a single group-by.
// States with no tasks are absent from the map.
func CountTasksByState(ctx context.Context, db *gorm.DB) (StateCounts, error) {
	type row struct {
		State domain.TaskState
		N     int64
	}
	var rows []row
	err := db.WithContext(ctx).
		Model(&domain.BlockTask{}).
		Select("state, COUNT(*) AS n").
		Group("state").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(StateCounts, len(rows))
	for _, r := range rows {
		out[r.State] = r.N
	}
	return out, nil
}

// StaleRunningTasks returns tasks that have sat in running longer than the
// threshold — the process crashed or was killed mid-execution. The janitor
// requeues them via TransitionTask so a raced row is simply skipped.
func StaleRunningTasks(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]domain.BlockTask, error) {
	var out []domain.BlockTask
	err := db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", domain.TaskRunning, olderThan).
		Order("updated_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
