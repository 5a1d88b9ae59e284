package domain

import (
	"errors"
	"testing"
	"time"
)

func TestPlatform_Valid(t *testing.T) {
	for _, p := range []Platform{PlatformAirbnb, PlatformBooking, PlatformManual} {
		if !p.Valid() {
			t.Fatalf("%q should be valid", p)
		}
	}
	for _, p := range []Platform{"", "vrbo", "AIRBNB"} {
		if p.Valid() {
			t.Fatalf("%q should be invalid", p)
		}
	}
}

func TestPlatform_Blockable(t *testing.T) {
	if !PlatformAirbnb.Blockable() || !PlatformBooking.Blockable() {
		t.Fatal("real platforms must be blockable")
	}
	if PlatformManual.Blockable() {
		t.Fatal("manual is a source marker, not a block target")
	}
}

func TestPlatform_Other(t *testing.T) {
	if got := PlatformAirbnb.Other(); got != PlatformBooking {
		t.Fatalf("airbnb.Other() = %q, want booking", got)
	}
	if got := PlatformBooking.Other(); got != PlatformAirbnb {
		t.Fatalf("booking.Other() = %q, want airbnb", got)
	}
	if got := PlatformManual.Other(); got != "" {
		t.Fatalf("manual.Other() = %q, want empty", got)
	}
}

func TestTaskState_TerminalAndDispatchable(t *testing.T) {
	cases := []struct {
		state        TaskState
		terminal     bool
		dispatchable bool
	}{
		{TaskPending, false, true},
		{TaskRunning, false, false},
		{TaskCompleted, true, false},
		{TaskFailedRetryable, false, true},
		{TaskDead, true, false},
	}
	for _, c := range cases {
		if got := c.state.Terminal(); got != c.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", c.state, got, c.terminal)
		}
		if got := c.state.Dispatchable(); got != c.dispatchable {
			t.Errorf("%s.Dispatchable() = %v, want %v", c.state, got, c.dispatchable)
		}
	}
}

func validBooking() Booking {
	return Booking{
		SourcePlatform:   PlatformAirbnb,
		ConfirmationCode: "HM123456789",
		Checkin:          time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC),
		Checkout:         time.Date(2025, 12, 18, 0, 0, 0, 0, time.UTC),
	}
}

func TestBooking_Validate(t *testing.T) {
	if err := validBooking().Validate(); err != nil {
		t.Fatalf("valid booking rejected: %v", err)
	}

	b := validBooking()
	b.SourcePlatform = "vrbo"
	if err := b.Validate(); !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("want ErrUnknownPlatform, got %v", err)
	}

	b = validBooking()
	b.ConfirmationCode = ""
	if err := b.Validate(); !errors.Is(err, ErrMissingConfirmation) {
		t.Fatalf("want ErrMissingConfirmation, got %v", err)
	}

	b = validBooking()
	b.Checkout = b.Checkin
	if err := b.Validate(); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("zero-night stay: want ErrInvalidDateRange, got %v", err)
	}

	b = validBooking()
	b.Checkin, b.Checkout = b.Checkout, b.Checkin
	if err := b.Validate(); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("inverted range: want ErrInvalidDateRange, got %v", err)
	}
}

func TestBooking_DedupKey(t *testing.T) {
	b := validBooking()
	if got, want := b.DedupKey(), "airbnb:HM123456789"; got != want {
		t.Fatalf("DedupKey() = %q, want %q", got, want)
	}
	if got := DedupKeyFor(PlatformBooking, "9876543210"); got != "booking:9876543210" {
		t.Fatalf("DedupKeyFor = %q", got)
	}
}

func TestBlockTask_Due(t *testing.T) {
	now := time.Now().UTC()

	due := BlockTask{State: TaskPending, NextAttemptAt: now.Add(-time.Second)}
	if !due.Due(now) {
		t.Fatal("past pending task should be due")
	}

	future := BlockTask{State: TaskPending, NextAttemptAt: now.Add(time.Hour)}
	if future.Due(now) {
		t.Fatal("future task must not be due")
	}

	running := BlockTask{State: TaskRunning, NextAttemptAt: now.Add(-time.Hour)}
	if running.Due(now) {
		t.Fatal("running task must not be due")
	}

	dead := BlockTask{State: TaskDead, NextAttemptAt: now.Add(-time.Hour)}
	if dead.Due(now) {
		t.Fatal("dead task must not be due")
	}
}
