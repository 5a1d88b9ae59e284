// Package services – IngestService
//
// This file implements the deduplication index at the ingestion boundary.
// Booking notifications arrive at-least-once (forwarded emails get
// redelivered, webhooks retry), so admission must be idempotent: the same
// (source_platform, confirmation_code) key maps to the same task for as
// long as that task is alive. Admission is the only code path that creates
// tasks.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pkaratz/go-calsync-backend/internal/domain"
	"github.com/pkaratz/go-calsync-backend/internal/repo"
)

// IngestService admits parsed bookings into the task pipeline.
//
// The check-and-create runs inside a transaction and under a process-level
// admission mutex. SQLite read snapshots would otherwise let two concurrent
// admissions of the same confirmation code both miss the lookup and both
// insert; the mutex makes this process the single admission authority.
type IngestService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// RespawnDead controls what a notification for an abandoned (dead)
	// task's key does: true (default) starts a fresh attempt chain, false
	// treats the replay as a permanent no-op returning the dead task.
	RespawnDead bool

	mu sync.Mutex
}

// NewIngestService constructs an IngestService with the respawn policy.
func NewIngestService(db *gorm.DB, respawnDead bool) *IngestService {
	return &IngestService{DB: db, RespawnDead: respawnDead}
}

// Admit ingests one booking and returns the task responsible for blocking
// its dates on the opposite platform. created reports whether a new task was
// made; a dedup hit returns the existing task and is never an error.
func (s *IngestService) Admit(ctx context.Context, booking domain.Booking) (task *domain.BlockTask, created bool, err error) {
	if err := booking.Validate(); err != nil {
		return nil, false, err
	}
	target := booking.SourcePlatform.Other()
	if !target.Blockable() {
		return nil, false, ErrNoTarget
	}
	return s.admit(ctx, booking, target)
}

// AdmitManual ingests a walk-in block: dates entered by the host that must
// be closed on the selected platforms. Each target gets its own booking row
// with a synthetic confirmation code, so repeated manual blocks never
// collapse into one task.
func (s *IngestService) AdmitManual(ctx context.Context, checkin, checkout time.Time, propertyID string, targets []domain.Platform) ([]*domain.BlockTask, error) {
	if len(targets) == 0 {
		return nil, ErrNoPlatformSelected
	}
	if !checkin.Before(checkout) {
		return nil, domain.ErrInvalidDateRange
	}

	out := make([]*domain.BlockTask, 0, len(targets))
	for _, target := range targets {
		if !target.Blockable() {
			return nil, domain.ErrUnknownPlatform
		}
		booking := domain.Booking{
			SourcePlatform:   domain.PlatformManual,
			ConfirmationCode: "MANUAL-" + uuid.NewString()[:8],
			Checkin:          checkin,
			Checkout:         checkout,
			GuestName:        "Walk-in",
			PropertyID:       propertyID,
		}
		task, _, err := s.admit(ctx, booking, target)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

// admit performs the atomic check-and-create for one booking/target pair.
func (s *IngestService) admit(ctx context.Context, booking domain.Booking, target domain.Platform) (task *domain.BlockTask, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := booking.DedupKey()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, ferr := repo.FindActiveTask(ctx, tx, key)
		if ferr == nil {
			task = existing
			return nil
		}
		if !errors.Is(ferr, gorm.ErrRecordNotFound) {
			return ferr
		}

		if !s.RespawnDead {
			// Key may have an abandoned chain; replay is then a no-op.
			if dead, derr := repo.FindLatestTask(ctx, tx, key); derr == nil {
				task = dead
				return nil
			} else if !errors.Is(derr, gorm.ErrRecordNotFound) {
				return derr
			}
		}

		fresh, cerr := repo.CreateTask(ctx, tx, booking, target, time.Now().UTC())
		if cerr != nil {
			return cerr
		}
		task = fresh
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return task, created, nil
}
