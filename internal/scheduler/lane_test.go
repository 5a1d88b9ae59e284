package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pkaratz/go-calsync-backend/internal/automation"
	"github.com/pkaratz/go-calsync-backend/internal/domain"
)

func noopCapability() automation.Capability {
	return automation.Func(func(ctx context.Context, p domain.Platform, in, out time.Time, code string) error {
		return nil
	})
}

func TestLane_TryAcquireTimesOutWhenSlotHeld(t *testing.T) {
	lane := NewLane(domain.PlatformAirbnb, noopCapability(), 20*time.Millisecond)
	ctx := context.Background()

	if !lane.TryAcquire(ctx) {
		t.Fatal("fresh lane slot should be available")
	}

	start := time.Now()
	if lane.TryAcquire(ctx) {
		t.Fatal("held slot must not be acquired again")
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("second acquire returned after %v, want a bounded wait", elapsed)
	}

	lane.Release()
	if !lane.TryAcquire(ctx) {
		t.Fatal("released slot should be available again")
	}
}

func TestLane_TryAcquireHonorsContext(t *testing.T) {
	lane := NewLane(domain.PlatformAirbnb, noopCapability(), time.Minute)
	ctx := context.Background()

	if !lane.TryAcquire(ctx) {
		t.Fatal("fresh lane slot should be available")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	start := time.Now()
	if lane.TryAcquire(cancelled) {
		t.Fatal("cancelled context must not acquire")
	}
	if time.Since(start) > time.Second {
		t.Fatal("cancelled acquire should return promptly")
	}
}

func TestLane_ReleaseIsIdempotentOnCallerBug(t *testing.T) {
	lane := NewLane(domain.PlatformAirbnb, noopCapability(), 20*time.Millisecond)

	// Double release must not manufacture a second slot.
	lane.Release()
	lane.Release()

	ctx := context.Background()
	if !lane.TryAcquire(ctx) {
		t.Fatal("slot should be available")
	}
	if lane.TryAcquire(ctx) {
		t.Fatal("double release created a phantom slot")
	}
}

func TestLane_ExecuteClassifiesOutcomes(t *testing.T) {
	task := &domain.BlockTask{
		ID: "t1",
		Booking: domain.Booking{
			Checkin:          time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC),
			Checkout:         time.Date(2025, 12, 18, 0, 0, 0, 0, time.UTC),
			ConfirmationCode: "HM1",
		},
	}
	ctx := context.Background()

	cases := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{"nil error is success", nil, OutcomeSuccess},
		{"transient error is retryable", automation.NewTransient("timeout"), OutcomeRetryable},
		{"permanent error is permanent", automation.NewPermanent("rejected"), OutcomePermanent},
		{"unclassified error defaults to retryable", errors.New("connection reset"), OutcomeRetryable},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			lane := NewLane(domain.PlatformBooking, automation.Func(
				func(ctx context.Context, p domain.Platform, in, out time.Time, code string) error {
					return c.err
				}), time.Second)
			got := lane.Execute(ctx, task)
			if got.Kind != c.want {
				t.Fatalf("Outcome.Kind = %q, want %q", got.Kind, c.want)
			}
			if c.err != nil && got.Reason == "" {
				t.Fatal("failure outcome must carry a reason")
			}
		})
	}
}
