package telegram

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/telebot.v3"

	"target_audit_reminder/internal/domain/notification"
)

// BroadcastListener forwards reminder events to an operations chat.
type BroadcastListener struct {
	client Client
	chatID int64
}

func NewBroadcastListener(c Client, chatID int64) *BroadcastListener {
	return &BroadcastListener{client: c, chatID: chatID}
}

func (l *BroadcastListener) Deliver(ctx context.Context, evt notification.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if evt.Type != notification.EventTypeTargetAuditReminder {
		return nil
	}
	if err := l.client.SendMessage(l.chatID, formatEvent(evt), &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return errors.Wrapf(err, "forwarding event %s to chat %d", evt.ID, l.chatID)
	}
	return nil
}

func formatEvent(evt notification.Event) string {
	prefix := "Reminder"
	if evt.Escalated {
		prefix = "ESCALATED reminder"
	}
	return fmt.Sprintf("%s for employee %d: %s", prefix, evt.EmployeeID, evt.Message)
}

// Alerter sends operator alerts to the admin's private chat.
type Alerter struct {
	client  Client
	adminID int64
}

func NewAlerter(c Client, adminID int64) *Alerter {
	return &Alerter{client: c, adminID: adminID}
}

func (a *Alerter) Alert(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.adminID == 0 {
		return errors.New("admin telegram id is not configured")
	}
	return a.client.SendMessage(a.adminID, "ALERT: "+message, nil)
}
