// Stale-task janitor. A task left in running after a crash would otherwise
// sit there forever, since the dispatch loop only looks at pending and
// failed_retryable rows. The janitor requeues such tasks on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pkaratz/go-calsync-backend/internal/domain"
	"github.com/pkaratz/go-calsync-backend/internal/repo"
)

// Reaper periodically requeues tasks stuck in running longer than
// StaleAfter. Requeueing is a compare-and-set back to failed_retryable, so
// a task that legitimately finished between the query and the write is left
// alone.
type Reaper struct {
	db         *gorm.DB
	staleAfter time.Duration
	cron       *cron.Cron
}

// NewReaper builds a janitor that sweeps once a minute.
func NewReaper(db *gorm.DB, staleAfter time.Duration) *Reaper {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &Reaper{
		db:         db,
		staleAfter: staleAfter,
		cron:       cron.New(),
	}
}

// Start schedules the sweep job and starts the cron runner.
func (r *Reaper) Start() error {
	if _, err := r.cron.AddFunc("@every 1m", func() {
		r.Sweep(context.Background())
	}); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Sweep requeues stale running tasks once. Exported so a sweep can be
// triggered directly in tests and at startup.
func (r *Reaper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.staleAfter)
	stale, err := repo.StaleRunningTasks(ctx, r.db, cutoff, 100)
	if err != nil {
		log.Error().Err(err).Msg("reaper: stale task query failed")
		return
	}

	for _, t := range stale {
		err := repo.TransitionTask(ctx, r.db, t.ID, domain.TaskRunning, domain.TaskFailedRetryable, map[string]any{
			"next_attempt_at": time.Now().UTC(),
			"last_error":      "requeued after stale running state",
		})
		if err != nil {
			// Conflict means the lane finished after our query. Fine.
			continue
		}
		log.Warn().Str("task_id", t.ID).Msg("reaper: requeued stale running task")
	}
}
