// Package domain defines the persistence models for bookings and block
// tasks. These types are mapped with GORM and form the core data layer of
// the calendar sync backend.
package domain

import (
	"time"
)

// Platform identifies one of the booking platforms the system reconciles.
type Platform string

const (
	// PlatformAirbnb is the Airbnb host calendar.
	PlatformAirbnb Platform = "airbnb"
	// PlatformBooking is the Booking.com extranet calendar.
	PlatformBooking Platform = "booking"
	// PlatformManual is a source-only pseudo-platform for walk-in blocks
	// entered through the dashboard rather than detected from an email.
	PlatformManual Platform = "manual"
)

// Valid reports whether p is a known platform value.
func (p Platform) Valid() bool {
	switch p {
	case PlatformAirbnb, PlatformBooking, PlatformManual:
		return true
	}
	return false
}

// Blockable reports whether p is a real platform whose calendar can be
// targeted by automation. PlatformManual is a source marker only.
func (p Platform) Blockable() bool {
	return p == PlatformAirbnb || p == PlatformBooking
}

// Other returns the opposite real platform: a reservation on Airbnb must be
// blocked on Booking.com and vice versa. For PlatformManual (or unknown
// values) it returns "" — manual blocks choose their targets explicitly.
func (p Platform) Other() Platform {
	switch p {
	case PlatformAirbnb:
		return PlatformBooking
	case PlatformBooking:
		return PlatformAirbnb
	}
	return ""
}

// TaskState is the lifecycle state of a BlockTask.
type TaskState string

const (
	// TaskPending means the task is waiting for its next_attempt_at to pass.
	TaskPending TaskState = "pending"
	// TaskRunning means a platform lane is currently executing the task.
	TaskRunning TaskState = "running"
	// TaskCompleted means the dates were blocked on the target platform. Terminal.
	TaskCompleted TaskState = "completed"
	// TaskFailedRetryable means the last attempt failed transiently and the
	// task will be retried once next_attempt_at passes.
	TaskFailedRetryable TaskState = "failed_retryable"
	// TaskDead means the task was abandoned: permanent failure, attempts
	// exhausted, or cancelled by an operator. Terminal; surfaced for manual
	// remediation.
	TaskDead TaskState = "dead"
)

// Terminal reports whether s is a final state that never transitions again.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskDead
}

// Dispatchable reports whether a task in this state may be claimed by the
// scheduler (subject to next_attempt_at).
func (s TaskState) Dispatchable() bool {
	return s == TaskPending || s == TaskFailedRetryable
}

// Booking represents a canonical reservation fact derived from a raw
// notification (or entered manually). Immutable once constructed.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - SourcePlatform: platform the reservation originated on.
//   - Checkin / Checkout: calendar dates; Checkin < Checkout always holds.
//   - ConfirmationCode: unique per source platform; together with
//     SourcePlatform it forms the dedup key used to collapse duplicate
//     notifications.
//   - GuestName / PropertyID: optional metadata extracted from the email.
type Booking struct {
	ID               string    `json:"id"                gorm:"type:char(36);primaryKey"`
	SourcePlatform   Platform  `json:"source_platform"   gorm:"type:varchar(16);not null;index:idx_booking_dedup,priority:1"`
	ConfirmationCode string    `json:"confirmation_code" gorm:"type:varchar(64);not null;index:idx_booking_dedup,priority:2"`
	Checkin          time.Time `json:"checkin"           gorm:"not null"`
	Checkout         time.Time `json:"checkout"          gorm:"not null"`
	GuestName        string    `json:"guest_name,omitempty"  gorm:"type:varchar(128)"`
	PropertyID       string    `json:"property_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName returns the database table name for Booking.
func (Booking) TableName() string { return "bookings" }

// Validate checks the structural invariants of a booking before admission.
func (b Booking) Validate() error {
	if !b.SourcePlatform.Valid() {
		return ErrUnknownPlatform
	}
	if b.ConfirmationCode == "" {
		return ErrMissingConfirmation
	}
	if !b.Checkin.Before(b.Checkout) {
		return ErrInvalidDateRange
	}
	return nil
}

// DedupKey returns the admission identity of the booking:
// "source_platform:confirmation_code".
func (b Booking) DedupKey() string {
	return DedupKeyFor(b.SourcePlatform, b.ConfirmationCode)
}

// BlockTask is the unit of work representing "block these dates on the
// target platform". Derived 1:1 from a Booking by dedup key; rows are never
// deleted — they are retained for audit and replay idempotency checks.
//
// Fields:
//   - ID: stable UUID primary key.
//   - BookingID / Booking: the triggering reservation (owned copy via FK).
//   - TargetPlatform: the platform whose calendar must be blocked.
//   - DedupKey: "source_platform:confirmation_code", indexed for admission
//     lookups. At most one non-dead task exists per key at any time.
//   - State: lifecycle state, mutated only through compare-and-set
//     transitions in the repo layer.
//   - AttemptCount: incremented each time the scheduler claims the task.
//   - NextAttemptAt: the task is eligible for dispatch only once this passes.
//   - LastError: last failure description, retained for audit even after a
//     later success.
type BlockTask struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	BookingID      string    `json:"booking_id"      gorm:"type:char(36);not null;index"`
	TargetPlatform Platform  `json:"target_platform" gorm:"type:varchar(16);not null;index"`
	DedupKey       string    `json:"-"               gorm:"type:varchar(96);not null;index:idx_task_dedup"`
	State          TaskState `json:"state"           gorm:"type:varchar(24);not null;index;check:state IN ('pending','running','completed','failed_retryable','dead')"`
	AttemptCount   int       `json:"attempt_count"   gorm:"not null;default:0"`
	NextAttemptAt  time.Time `json:"next_attempt_at" gorm:"not null;index"`
	LastError      string    `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Booking is the reservation that triggered this task.
	Booking Booking `json:"booking" gorm:"foreignKey:BookingID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for BlockTask.
func (BlockTask) TableName() string { return "block_tasks" }

// DedupKeyFor builds the admission identity for a booking:
// "source_platform:confirmation_code".
func DedupKeyFor(source Platform, confirmationCode string) string {
	return string(source) + ":" + confirmationCode
}

// Due reports whether the task is eligible for dispatch at now.
func (t BlockTask) Due(now time.Time) bool {
	return t.State.Dispatchable() && !t.NextAttemptAt.After(now)
}
