package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pkaratz/go-calsync-backend/internal/domain"
	"github.com/pkaratz/go-calsync-backend/internal/repo"
)

func TestTaskService_GetNotFound(t *testing.T) {
	svc := NewTaskService(newServiceDB(t))
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("want ErrTaskNotFound, got %v", err)
	}
}

func TestTaskService_ListPage(t *testing.T) {
	db := newServiceDB(t)
	ingest := NewIngestService(db, true)
	svc := NewTaskService(db)
	ctx := context.Background()

	for _, code := range []string{"L1", "L2", "L3"} {
		if _, _, err := ingest.Admit(ctx, airbnbBooking(code)); err != nil {
			t.Fatalf("admit %s: %v", code, err)
		}
	}

	items, total, err := svc.ListPage(ctx, repo.TaskFilter{}, 1, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("total=%d len=%d, want 3/2", total, len(items))
	}

	// Out-of-range page parameters fall back to defaults.
	items, total, err = svc.ListPage(ctx, repo.TaskFilter{}, -5, 0)
	if err != nil {
		t.Fatalf("ListPage defaults: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("defaulted page: total=%d len=%d", total, len(items))
	}

	// Filter that matches nothing returns an empty page, not an error.
	items, total, err = svc.ListPage(ctx, repo.TaskFilter{State: domain.TaskDead}, 1, 10)
	if err != nil {
		t.Fatalf("ListPage empty: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("empty filter: total=%d len=%d", total, len(items))
	}
}

func TestTaskService_Stats(t *testing.T) {
	db := newServiceDB(t)
	ingest := NewIngestService(db, true)
	svc := NewTaskService(db)
	ctx := context.Background()

	task, _, err := ingest.Admit(ctx, airbnbBooking("ST1"))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if _, _, err := ingest.Admit(ctx, airbnbBooking("ST2")); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if err := repo.ClaimTask(ctx, db, task.ID, domain.TaskPending); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.CompleteTask(ctx, db, task.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	counts, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if counts[domain.TaskPending] != 1 || counts[domain.TaskCompleted] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestTaskService_Cancel(t *testing.T) {
	db := newServiceDB(t)
	ingest := NewIngestService(db, true)
	svc := NewTaskService(db)
	ctx := context.Background()

	t.Run("pending task cancels to dead", func(t *testing.T) {
		task, _, err := ingest.Admit(ctx, airbnbBooking("CX1"))
		if err != nil {
			t.Fatalf("admit: %v", err)
		}
		if err := svc.Cancel(ctx, task.ID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		got, err := svc.Get(ctx, task.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.State != domain.TaskDead || got.LastError != "cancelled by operator" {
			t.Fatalf("after cancel: %+v", got)
		}
	})

	t.Run("retry-waiting task cancels to dead", func(t *testing.T) {
		task, _, err := ingest.Admit(ctx, airbnbBooking("CX2"))
		if err != nil {
			t.Fatalf("admit: %v", err)
		}
		if err := repo.ClaimTask(ctx, db, task.ID, domain.TaskPending); err != nil {
			t.Fatalf("claim: %v", err)
		}
		if err := repo.RetryTask(ctx, db, task.ID, time.Now().UTC().Add(time.Hour), "transient: timeout"); err != nil {
			t.Fatalf("retry: %v", err)
		}
		if err := svc.Cancel(ctx, task.ID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
	})

	t.Run("running task is not cancellable", func(t *testing.T) {
		task, _, err := ingest.Admit(ctx, airbnbBooking("CX3"))
		if err != nil {
			t.Fatalf("admit: %v", err)
		}
		if err := repo.ClaimTask(ctx, db, task.ID, domain.TaskPending); err != nil {
			t.Fatalf("claim: %v", err)
		}
		if err := svc.Cancel(ctx, task.ID); !errors.Is(err, ErrNotCancellable) {
			t.Fatalf("want ErrNotCancellable, got %v", err)
		}
	})

	t.Run("terminal task is not cancellable", func(t *testing.T) {
		task, _, err := ingest.Admit(ctx, airbnbBooking("CX4"))
		if err != nil {
			t.Fatalf("admit: %v", err)
		}
		if err := repo.ClaimTask(ctx, db, task.ID, domain.TaskPending); err != nil {
			t.Fatalf("claim: %v", err)
		}
		if err := repo.CompleteTask(ctx, db, task.ID); err != nil {
			t.Fatalf("complete: %v", err)
		}
		if err := svc.Cancel(ctx, task.ID); !errors.Is(err, ErrNotCancellable) {
			t.Fatalf("want ErrNotCancellable, got %v", err)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		if err := svc.Cancel(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
			t.Fatalf("want ErrTaskNotFound, got %v", err)
		}
	})
}
