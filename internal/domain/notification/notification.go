// Package notification holds the contracts of the two reminder channels.
package notification

import (
	"context"
	"time"
)

const EventTypeTargetAuditReminder = "target-audit-reminder"

// Event is a transient broadcast to connected listeners.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EmployeeID int64     `json:"employeeId"`
	Message    string    `json:"message"`
	Escalated  bool      `json:"escalated"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher emits events without acknowledgement.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, cc []string, subject, bodyHTML string) error
}

// RecipientSet is the resolved audience of one reminder.
type RecipientSet struct {
	To        []string
	Cc        []string
	Escalated bool
}

func (r RecipientSet) Empty() bool {
	return len(r.To) == 0
}
