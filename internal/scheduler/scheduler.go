// The dispatch loop. A single scheduling authority polls the task store for
// due tasks and fans them out to per-platform lanes; lanes run concurrently
// with each other but never with themselves.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/pkaratz/go-calsync-backend/internal/automation"
	"github.com/pkaratz/go-calsync-backend/internal/domain"
	"github.com/pkaratz/go-calsync-backend/internal/repo"
)

// Options tune the dispatch loop.
type Options struct {
	// Interval between polling passes.
	Interval time.Duration
	// BatchSize caps how many due tasks one pass picks up.
	BatchSize int
	// SlotTimeout bounds the wait for a busy platform lane.
	SlotTimeout time.Duration
	// Policy decides retry schedules and terminal failures.
	Policy RetryPolicy
}

// Scheduler repeatedly selects due tasks and hands each to the lane for its
// target platform. All state transitions are compare-and-set against the
// task store; a raced transition is dropped, never retried blindly.
type Scheduler struct {
	db    *gorm.DB
	opts  Options
	lanes map[domain.Platform]*Lane

	wg sync.WaitGroup
}

// New builds a scheduler with one lane per blockable platform, all driving
// the same automation capability.
func New(db *gorm.DB, capability automation.Capability, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = DefaultRetryPolicy()
	}

	lanes := map[domain.Platform]*Lane{
		domain.PlatformAirbnb:  NewLane(domain.PlatformAirbnb, capability, opts.SlotTimeout),
		domain.PlatformBooking: NewLane(domain.PlatformBooking, capability, opts.SlotTimeout),
	}
	return &Scheduler{db: db, opts: opts, lanes: lanes}
}

// Run polls until ctx is cancelled, then waits for in-flight lane work. The
// in-flight automation call is allowed to finish and its outcome is still
// applied, so the target platform is never left in an unknown state.
func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.opts.Interval)
	defer t.Stop()

	// kick immediately
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-t.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single scheduling pass: select due tasks FIFO, group by
// target platform, and dispatch each group to its lane. It returns once the
// groups are handed off; execution and transition application happen on the
// lane goroutines.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := time.Now().UTC()
	due, err := repo.DueTasks(ctx, s.db, now, s.opts.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("scheduler: due task query failed")
		return
	}
	if len(due) == 0 {
		return
	}

	// Group per platform, preserving the FIFO order of the query.
	groups := make(map[domain.Platform][]domain.BlockTask)
	for _, t := range due {
		groups[t.TargetPlatform] = append(groups[t.TargetPlatform], t)
	}

	for platform, tasks := range groups {
		lane, ok := s.lanes[platform]
		if !ok {
			log.Warn().Str("platform", string(platform)).Msg("scheduler: no lane for platform")
			continue
		}
		tasks := tasks
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runGroup(ctx, lane, tasks)
		}()
	}
}

// Wait blocks until all dispatched lane work has completed. Used by tests
// that drive RunOnce directly.
func (s *Scheduler) Wait() { s.wg.Wait() }

// runGroup executes one platform's due tasks in order. If the session slot
// cannot be acquired within the bounded wait, the rest of the group is left
// due for the next pass.
func (s *Scheduler) runGroup(ctx context.Context, lane *Lane, tasks []domain.BlockTask) {
	for i := range tasks {
		if ctx.Err() != nil {
			return
		}
		if !lane.TryAcquire(ctx) {
			return
		}
		s.runTask(ctx, lane, &tasks[i])
		lane.Release()
	}
}

// runTask claims, executes, and transitions a single task. Claim and
// transition are both compare-and-set; losing either race just drops the
// task — another actor already decided its fate.
func (s *Scheduler) runTask(ctx context.Context, lane *Lane, task *domain.BlockTask) {
	ctx, span := otel.Tracer("scheduler").Start(ctx, "task.execute",
		trace.WithAttributes(
			attribute.String("task.id", task.ID),
			attribute.String("task.platform", string(task.TargetPlatform)),
		))
	defer span.End()

	if err := repo.ClaimTask(ctx, s.db, task.ID, task.State); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			claimConflicts.Inc()
			return
		}
		log.Error().Err(err).Str("task_id", task.ID).Msg("scheduler: claim failed")
		return
	}

	// Re-read for the authoritative attempt count; the claim may not be the
	// only transition since the due-task query under concurrent schedulers.
	claimed, err := repo.GetTask(ctx, s.db, task.ID)
	if err != nil {
		log.Error().Err(err).Str("task_id", task.ID).Msg("scheduler: reload after claim failed")
		return
	}
	attempt := claimed.AttemptCount

	outcome := lane.Execute(ctx, task)
	taskOutcomes.WithLabelValues(string(lane.Platform()), string(outcome.Kind)).Inc()

	if err := s.apply(ctx, task, attempt, outcome); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			// Raced by an external actor; re-read happens naturally on the
			// next pass.
			return
		}
		log.Error().Err(err).Str("task_id", task.ID).Msg("scheduler: transition failed")
	}
}

// apply maps an execution outcome onto the task state machine.
func (s *Scheduler) apply(ctx context.Context, task *domain.BlockTask, attempt int, outcome Outcome) error {
	now := time.Now().UTC()
	lg := log.With().
		Str("task_id", task.ID).
		Str("platform", string(task.TargetPlatform)).
		Str("confirmation_code", task.Booking.ConfirmationCode).
		Int("attempt", attempt).
		Logger()

	switch outcome.Kind {
	case OutcomeSuccess:
		lg.Info().Msg("dates blocked")
		return repo.CompleteTask(ctx, s.db, task.ID)

	case OutcomePermanent:
		lg.Warn().Str("reason", outcome.Reason).Msg("task buried: permanent failure")
		return repo.BuryTask(ctx, s.db, task.ID, outcome.Reason)

	default: // OutcomeRetryable
		d := s.opts.Policy.Next(now, attempt, automation.Transient, outcome.Reason)
		if d.Terminal {
			lg.Warn().Str("reason", d.Reason).Msg("task buried: attempts exhausted")
			return repo.BuryTask(ctx, s.db, task.ID, d.Reason)
		}
		lg.Info().Time("retry_at", d.RetryAt).Str("reason", d.Reason).Msg("task rescheduled")
		return repo.RetryTask(ctx, s.db, task.ID, d.RetryAt, d.Reason)
	}
}
