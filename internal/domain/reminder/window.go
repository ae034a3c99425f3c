package reminder

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// DateLayout is the layout used for calendar dates in storage and messages.
const DateLayout = "2006-01-02"

// TargetWindow is the quota an auditor is expected to meet between two
// calendar dates, both inclusive. Only the year, month and day of StartDate
// and EndDate are significant; their location is ignored.
type TargetWindow struct {
	Quota        int
	StartDate    time.Time
	EndDate      time.Time
	ReminderTime string // "HH:mm"
}

// Validate checks the window and returns its parsed reminder time.
func (w TargetWindow) Validate() (TimeOfDay, error) {
	if w.Quota <= 0 {
		return TimeOfDay{}, errors.Wrapf(ErrConfiguration, "quota must be positive, got %d", w.Quota)
	}
	if w.StartDate.IsZero() || w.EndDate.IsZero() {
		return TimeOfDay{}, errors.Wrap(ErrConfiguration, "target window dates are not set")
	}
	if civilDate(w.EndDate).Before(civilDate(w.StartDate)) {
		return TimeOfDay{}, errors.Wrapf(ErrConfiguration, "target window is inverted: %s > %s",
			w.StartDate.Format(DateLayout), w.EndDate.Format(DateLayout))
	}
	return ParseTimeOfDay(w.ReminderTime)
}

// Bounds returns the half-open instant range [start of StartDate, start of
// the day after EndDate) in loc.
func (w TargetWindow) Bounds(loc *time.Location) (time.Time, time.Time) {
	return dateIn(w.StartDate, loc), dateIn(w.EndDate, loc).AddDate(0, 0, 1)
}

// ReminderState is the scheduler-owned record of the last reminder sent for
// a target window. A zero value means no reminder has been sent yet.
type ReminderState struct {
	LastReminderDate             sql.NullTime
	LastCompletedCountAtReminder int
	StagnantStreak               int
}

// IsEmpty reports whether no reminder has been recorded.
func (s ReminderState) IsEmpty() bool {
	return !s.LastReminderDate.Valid
}

// SentOn reports whether the last reminder was recorded on the calendar day of t.
func (s ReminderState) SentOn(t time.Time) bool {
	if !s.LastReminderDate.Valid {
		return false
	}
	ly, lm, ld := s.LastReminderDate.Time.Date()
	y, m, d := t.Date()
	return ly == y && lm == m && ld == d
}

// civilDate drops the clock and location of t, keeping its calendar date.
func civilDate(t time.Time) time.Time {
	return dateIn(t, time.UTC)
}

func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
