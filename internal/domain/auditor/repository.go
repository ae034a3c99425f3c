package auditor

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"target_audit_reminder/internal/domain/reminder"
)

var (
	ErrNotFound = errors.New("auditor not found")
	// ErrStateConflict is returned when the reminder state for the day has
	// already been recorded, e.g. by an overlapping cycle.
	ErrStateConflict = errors.New("reminder state already recorded for this day")
)

// Repository is the read/write view of auditor target windows used by the
// reminder scheduler.
type Repository interface {
	// ListActiveReminderCandidates returns auditors whose window has not
	// ended as of now and who have a reminder time configured. The filter
	// is coarse; exact eligibility is decided per auditor.
	ListActiveReminderCandidates(ctx context.Context, now time.Time) ([]*Auditor, error)
	GetByID(ctx context.Context, id int64) (*Auditor, error)
	// PersistReminderState records state only if no reminder has been
	// recorded for state.LastReminderDate yet, else ErrStateConflict.
	PersistReminderState(ctx context.Context, auditorID int64, state reminder.ReminderState) error
}
