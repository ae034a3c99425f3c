package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"target_audit_reminder/internal/domain/notification"
	"target_audit_reminder/internal/domain/reminder"
)

func remindDecision(escalated bool, streak int) reminder.Decision {
	return reminder.Decision{
		Outcome:   reminder.OutcomeRemind,
		Quota:     10,
		Completed: 3,
		Pending:   7,
		Escalated: escalated,
		NewState:  reminder.ReminderState{StagnantStreak: streak},
	}
}

func TestDispatcher_SendsBothChannels(t *testing.T) {
	pub := &fakePublisher{}
	mail := &fakeEmailSender{}
	d := NewDispatcher(pub, mail, time.Second, nil, testLogger())
	fixed := time.Date(2024, time.January, 5, 9, 1, 0, 0, time.UTC)
	d.nowFunc = func() time.Time { return fixed }

	a := newTestAuditor(42, "ann@example.com", 0)
	d.Dispatch(context.Background(), a, remindDecision(false, 0), notification.RecipientSet{To: []string{"ann@example.com"}})

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notification.EventTypeTargetAuditReminder, events[0].Type)
	assert.Equal(t, int64(42), events[0].EmployeeID)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, "You have 7 pending audit(s) out of 10 for 2024-01-01 to 2024-01-10.", events[0].Message)

	sent := mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"ann@example.com"}, sent[0].To)
	assert.Equal(t, "Target audit reminder", sent[0].Subject)
	for _, want := range []string{"2024-01-01", "2024-01-10", "<td>10</td>", "<td>3</td>", "<td>7</td>"} {
		assert.Contains(t, sent[0].BodyHTML, want)
	}
	assert.NotContains(t, sent[0].BodyHTML, "Escalation notice")
}

func TestDispatcher_EscalationNotice(t *testing.T) {
	mail := &fakeEmailSender{}
	d := NewDispatcher(&fakePublisher{}, mail, time.Second, nil, testLogger())

	rcpt := notification.RecipientSet{To: []string{"ann@example.com"}, Cc: []string{"boss@example.com"}, Escalated: true}
	d.Dispatch(context.Background(), newTestAuditor(1, "ann@example.com", 3), remindDecision(true, 2), rcpt)

	sent := mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ESCALATION: target audit reminder", sent[0].Subject)
	assert.Equal(t, []string{"boss@example.com"}, sent[0].Cc)
	assert.Contains(t, sent[0].BodyHTML, "Escalation notice")
	assert.Contains(t, sent[0].BodyHTML, "last 3 reminders")
}

func TestDispatcher_ChannelFailuresAreIsolated(t *testing.T) {
	tests := []struct {
		name      string
		pub       *fakePublisher
		mail      *fakeEmailSender
		wantEmail int
		wantEvent int
		failed    string
	}{
		{
			name:      "broadcast error",
			pub:       &fakePublisher{err: errors.New("no listeners")},
			mail:      &fakeEmailSender{},
			wantEmail: 1,
			failed:    ChannelBroadcast,
		},
		{
			name:      "broadcast panic",
			pub:       &fakePublisher{panics: true},
			mail:      &fakeEmailSender{},
			wantEmail: 1,
			failed:    ChannelBroadcast,
		},
		{
			name:      "email error",
			pub:       &fakePublisher{},
			mail:      &fakeEmailSender{err: errors.New("smtp 451")},
			wantEvent: 1,
			failed:    ChannelEmail,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newCountingRecorder()
			d := NewDispatcher(tt.pub, tt.mail, time.Second, rec, testLogger())

			d.Dispatch(context.Background(), newTestAuditor(1, "ann@example.com", 0), remindDecision(false, 0),
				notification.RecipientSet{To: []string{"ann@example.com"}})

			assert.Len(t, tt.mail.Sent(), tt.wantEmail)
			assert.Len(t, tt.pub.Events(), tt.wantEvent)
			assert.Equal(t, 1, rec.dispatchFailures[tt.failed])
		})
	}
}

func TestDispatcher_NoRecipientsSkipsEmail(t *testing.T) {
	pub := &fakePublisher{}
	mail := &fakeEmailSender{}
	d := NewDispatcher(pub, mail, time.Second, nil, testLogger())

	d.Dispatch(context.Background(), newTestAuditor(1, "", 0), remindDecision(false, 0), notification.RecipientSet{})

	assert.Empty(t, mail.Sent())
	assert.Len(t, pub.Events(), 1)
}
