package reminder

import (
	"database/sql"
	"time"
)

type Outcome int

const (
	OutcomeSkip Outcome = iota
	OutcomeRemind
)

func (o Outcome) String() string {
	if o == OutcomeRemind {
		return "remind"
	}
	return "skip"
}

// SkipReason explains a Skip outcome.
type SkipReason string

const (
	SkipWindowInactive SkipReason = "window_inactive"
	SkipTargetMet      SkipReason = "target_met"
	SkipTooEarly       SkipReason = "too_early"
	SkipAlreadySent    SkipReason = "already_sent"
)

// Phase is the per-auditor state derived for the current instant.
type Phase string

const (
	PhaseInactive       Phase = "INACTIVE"
	PhaseWaitingForTime Phase = "WAITING_FOR_TIME"
	PhaseArmed          Phase = "ARMED"
	PhaseSent           Phase = "SENT"
)

// Decision is the result of one evaluation of a target window.
type Decision struct {
	Outcome   Outcome
	Reason    SkipReason // empty unless Outcome is OutcomeSkip
	Quota     int
	Completed int
	Pending   int
	Escalated bool
	// EligibleAt is today's nominal reminder instant plus the safety offset.
	// Zero when the window is inactive.
	EligibleAt time.Time
	// NewState is the state to persist. Only meaningful for OutcomeRemind.
	NewState ReminderState
}

func (d Decision) ShouldRemind() bool {
	return d.Outcome == OutcomeRemind
}

// Phase maps the decision onto the Inactive / WaitingForTime / Armed / Sent
// state machine.
func (d Decision) Phase() Phase {
	if d.Outcome == OutcomeRemind {
		return PhaseArmed
	}
	switch d.Reason {
	case SkipTooEarly:
		return PhaseWaitingForTime
	case SkipAlreadySent:
		return PhaseSent
	default:
		return PhaseInactive
	}
}

// Label is a compact outcome name used for metrics.
func (d Decision) Label() string {
	switch {
	case d.Outcome == OutcomeRemind && d.Escalated:
		return "remind_escalated"
	case d.Outcome == OutcomeRemind:
		return "remind"
	default:
		return "skip_" + string(d.Reason)
	}
}

// Decide evaluates a target window at now. It has no side effects. The local
// calendar day is taken from now's location. A malformed window returns an
// error wrapping ErrConfiguration.
func Decide(now time.Time, w TargetWindow, prior ReminderState, completed int, p Policy) (Decision, error) {
	at, err := w.Validate()
	if err != nil {
		return Decision{}, err
	}
	if completed < 0 {
		completed = 0
	}

	d := Decision{
		Outcome:   OutcomeSkip,
		Quota:     w.Quota,
		Completed: completed,
		Pending:   max(0, w.Quota-completed),
	}

	start, end := w.Bounds(now.Location())
	if now.Before(start) || !now.Before(end) {
		d.Reason = SkipWindowInactive
		return d, nil
	}
	if d.Pending == 0 {
		d.Reason = SkipTargetMet
		return d, nil
	}

	d.EligibleAt = at.On(now).Add(p.SafetyOffset)
	if now.Before(d.EligibleAt) {
		d.Reason = SkipTooEarly
		return d, nil
	}
	// Only exact calendar-day equality counts as already sent; a date in the
	// future (clock skew) does not suppress today's reminder.
	if prior.SentOn(now) {
		d.Reason = SkipAlreadySent
		return d, nil
	}

	streak := 0
	if !prior.IsEmpty() && completed <= prior.LastCompletedCountAtReminder {
		streak = prior.StagnantStreak + 1
	}

	d.Outcome = OutcomeRemind
	d.Reason = ""
	d.Escalated = streak >= p.threshold()
	d.NewState = ReminderState{
		LastReminderDate:             sql.NullTime{Time: dateIn(now, now.Location()), Valid: true},
		LastCompletedCountAtReminder: completed,
		StagnantStreak:               streak,
	}
	return d, nil
}
