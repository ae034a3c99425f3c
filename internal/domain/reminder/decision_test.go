package reminder

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLoc = time.FixedZone("UTC+3", 3*60*60)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, testLoc)
}

func januaryWindow() TargetWindow {
	return TargetWindow{
		Quota:        10,
		StartDate:    date(2024, time.January, 1),
		EndDate:      date(2024, time.January, 10),
		ReminderTime: "09:00",
	}
}

func sentState(day time.Time, completed, streak int) ReminderState {
	return ReminderState{
		LastReminderDate:             sql.NullTime{Time: day, Valid: true},
		LastCompletedCountAtReminder: completed,
		StagnantStreak:               streak,
	}
}

func TestDecide_FirstReminder(t *testing.T) {
	d, err := Decide(at(2024, time.January, 5, 9, 1, 0), januaryWindow(), ReminderState{}, 3, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRemind, d.Outcome)
	assert.Equal(t, 7, d.Pending)
	assert.False(t, d.Escalated)
	assert.Equal(t, 0, d.NewState.StagnantStreak)
	assert.Equal(t, 3, d.NewState.LastCompletedCountAtReminder)
	assert.True(t, d.NewState.SentOn(at(2024, time.January, 5, 0, 0, 0)))
	assert.Equal(t, PhaseArmed, d.Phase())
}

func TestDecide_EscalatesOnSecondStagnantStreak(t *testing.T) {
	prior := sentState(date(2024, time.January, 4), 3, 1)

	d, err := Decide(at(2024, time.January, 5, 9, 1, 0), januaryWindow(), prior, 3, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRemind, d.Outcome)
	assert.Equal(t, 7, d.Pending)
	assert.True(t, d.Escalated)
	assert.Equal(t, 2, d.NewState.StagnantStreak)
	assert.Equal(t, "remind_escalated", d.Label())
}

func TestDecide_TooEarly(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
	}{
		{name: "before reminder time", now: at(2024, time.January, 5, 8, 59, 0)},
		{name: "inside safety offset", now: at(2024, time.January, 5, 9, 0, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(tt.now, januaryWindow(), ReminderState{}, 3, DefaultPolicy())
			require.NoError(t, err)
			assert.Equal(t, OutcomeSkip, d.Outcome)
			assert.Equal(t, SkipTooEarly, d.Reason)
			assert.Equal(t, PhaseWaitingForTime, d.Phase())
		})
	}
}

func TestDecide_FiresAfterSafetyOffset(t *testing.T) {
	d, err := Decide(at(2024, time.January, 5, 9, 0, 30), januaryWindow(), ReminderState{}, 3, DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, d.ShouldRemind())
	assert.Equal(t, at(2024, time.January, 5, 9, 0, 30), d.EligibleAt)
}

func TestDecide_Idempotent(t *testing.T) {
	now := at(2024, time.January, 5, 9, 1, 0)
	first, err := Decide(now, januaryWindow(), ReminderState{}, 3, DefaultPolicy())
	require.NoError(t, err)
	require.True(t, first.ShouldRemind())

	for _, later := range []time.Time{now, now.Add(time.Minute), at(2024, time.January, 5, 23, 59, 59)} {
		second, err := Decide(later, januaryWindow(), first.NewState, 3, DefaultPolicy())
		require.NoError(t, err)
		assert.Equal(t, SkipAlreadySent, second.Reason, "at %s", later)
		assert.Equal(t, PhaseSent, second.Phase())
	}

	next, err := Decide(at(2024, time.January, 6, 9, 1, 0), januaryWindow(), first.NewState, 3, DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, next.ShouldRemind())
}

func TestDecide_StreakResetsOnProgress(t *testing.T) {
	prior := sentState(date(2024, time.January, 4), 3, 5)

	d, err := Decide(at(2024, time.January, 5, 10, 0, 0), januaryWindow(), prior, 4, DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, d.ShouldRemind())
	assert.Equal(t, 0, d.NewState.StagnantStreak)
	assert.False(t, d.Escalated)
}

func TestDecide_EscalationThreshold(t *testing.T) {
	w := januaryWindow()
	state := ReminderState{}
	var escalated []bool
	for day := 1; day <= 5; day++ {
		d, err := Decide(at(2024, time.January, day, 9, 5, 0), w, state, 2, DefaultPolicy())
		require.NoError(t, err)
		require.True(t, d.ShouldRemind(), "day %d", day)
		escalated = append(escalated, d.Escalated)
		state = d.NewState
	}
	assert.Equal(t, []bool{false, false, true, true, true}, escalated)
}

func TestDecide_CustomThreshold(t *testing.T) {
	prior := sentState(date(2024, time.January, 4), 3, 0)
	p := Policy{SafetyOffset: 0, StagnationThreshold: 1}

	d, err := Decide(at(2024, time.January, 5, 9, 0, 0), januaryWindow(), prior, 3, p)
	require.NoError(t, err)
	assert.True(t, d.Escalated)
}

func TestDecide_WindowBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		remind bool
	}{
		{name: "last second of end date", now: at(2024, time.January, 10, 23, 59, 59), remind: true},
		{name: "one second after end date", now: at(2024, time.January, 11, 0, 0, 0)},
		{name: "first day after reminder time", now: at(2024, time.January, 1, 9, 1, 0), remind: true},
		{name: "day before start", now: at(2023, time.December, 31, 12, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(tt.now, januaryWindow(), ReminderState{}, 0, DefaultPolicy())
			require.NoError(t, err)
			assert.Equal(t, tt.remind, d.ShouldRemind())
			if !tt.remind {
				assert.Equal(t, SkipWindowInactive, d.Reason)
				assert.Equal(t, PhaseInactive, d.Phase())
			}
		})
	}
}

func TestDecide_SingleDayWindowAndMidnight(t *testing.T) {
	w := TargetWindow{
		Quota:        1,
		StartDate:    date(2024, time.March, 3),
		EndDate:      date(2024, time.March, 3),
		ReminderTime: "00:00",
	}
	d, err := Decide(at(2024, time.March, 3, 0, 0, 30), w, ReminderState{}, 0, DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, d.ShouldRemind())
	assert.Equal(t, 1, d.Pending)
}

func TestDecide_QuotaMet(t *testing.T) {
	priors := []ReminderState{{}, sentState(date(2024, time.January, 4), 9, 3)}
	for _, prior := range priors {
		for _, completed := range []int{10, 11, 100} {
			for _, now := range []time.Time{at(2024, time.January, 5, 9, 1, 0), at(2024, time.January, 5, 23, 0, 0)} {
				d, err := Decide(now, januaryWindow(), prior, completed, DefaultPolicy())
				require.NoError(t, err)
				assert.Equal(t, SkipTargetMet, d.Reason)
				assert.Equal(t, 0, d.Pending)
			}
		}
	}
}

func TestDecide_FutureLastReminderDoesNotSuppress(t *testing.T) {
	prior := sentState(date(2024, time.January, 8), 3, 0)

	d, err := Decide(at(2024, time.January, 5, 9, 1, 0), januaryWindow(), prior, 3, DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, d.ShouldRemind())
	assert.Equal(t, 1, d.NewState.StagnantStreak)
}

func TestDecide_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TargetWindow)
	}{
		{name: "malformed reminder time", mutate: func(w *TargetWindow) { w.ReminderTime = "9am" }},
		{name: "out of range reminder time", mutate: func(w *TargetWindow) { w.ReminderTime = "25:00" }},
		{name: "empty reminder time", mutate: func(w *TargetWindow) { w.ReminderTime = "" }},
		{name: "inverted window", mutate: func(w *TargetWindow) { w.StartDate, w.EndDate = w.EndDate, w.StartDate }},
		{name: "zero quota", mutate: func(w *TargetWindow) { w.Quota = 0 }},
		{name: "missing dates", mutate: func(w *TargetWindow) { w.EndDate = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := januaryWindow()
			tt.mutate(&w)
			_, err := Decide(at(2024, time.January, 5, 9, 1, 0), w, ReminderState{}, 3, DefaultPolicy())
			require.ErrorIs(t, err, ErrConfiguration)
			assert.Equal(t, "configuration", FailureKind(err))
		})
	}
}
