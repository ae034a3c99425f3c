package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"target_audit_reminder/internal/domain/auditor"
	"target_audit_reminder/internal/domain/notification"
	"target_audit_reminder/internal/domain/reminder"
)

const (
	ChannelBroadcast = "broadcast"
	ChannelEmail     = "email"
)

// Dispatcher delivers a reminder over the broadcast and email channels.
// Delivery is best effort: a failure on one channel never affects the other,
// and nothing is reported to the caller.
type Dispatcher struct {
	publisher notification.Publisher
	email     notification.EmailSender
	timeout   time.Duration
	recorder  Recorder
	logger    *logrus.Entry
	nowFunc   func() time.Time
}

func NewDispatcher(p notification.Publisher, e notification.EmailSender, timeout time.Duration, rec Recorder, logger *logrus.Entry) *Dispatcher {
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Dispatcher{
		publisher: p,
		email:     e,
		timeout:   timeout,
		recorder:  rec,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, a *auditor.Auditor, dec reminder.Decision, rcpt notification.RecipientSet) {
	logCtx := d.logger.WithFields(logrus.Fields{
		"auditor_id": a.ID,
		"escalated":  dec.Escalated,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.run(ctx, ChannelBroadcast, logCtx, func(ctx context.Context) error {
			return d.broadcast(ctx, a, dec)
		})
	}()
	go func() {
		defer wg.Done()
		d.run(ctx, ChannelEmail, logCtx, func(ctx context.Context) error {
			return d.sendEmail(ctx, a, dec, rcpt, logCtx)
		})
	}()
	wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, channel string, logCtx *logrus.Entry, fn func(context.Context) error) {
	callCtx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in %s channel: %v", channel, r)
			}
		}()
		return fn(callCtx)
	}()
	if err != nil {
		d.recorder.DispatchFailed(channel)
		logCtx.WithError(err).WithField("channel", channel).Error("Reminder delivery failed")
		return
	}
	logCtx.WithField("channel", channel).Debug("Reminder delivered")
}

func (d *Dispatcher) broadcast(ctx context.Context, a *auditor.Auditor, dec reminder.Decision) error {
	evt := notification.Event{
		ID:         uuid.NewString(),
		Type:       notification.EventTypeTargetAuditReminder,
		EmployeeID: a.ID,
		Message:    reminderMessage(a, dec),
		Escalated:  dec.Escalated,
		Timestamp:  d.nowFunc(),
	}
	if err := d.publisher.Publish(ctx, evt); err != nil {
		return reminder.TransportFailure(err, "publishing reminder event")
	}
	return nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, a *auditor.Auditor, dec reminder.Decision, rcpt notification.RecipientSet, logCtx *logrus.Entry) error {
	if rcpt.Empty() {
		logCtx.Warn("Auditor has no email address; skipping reminder email")
		return nil
	}
	subject, body, err := renderReminderEmail(a, dec)
	if err != nil {
		return err
	}
	if err := d.email.SendEmail(ctx, rcpt.To, rcpt.Cc, subject, body); err != nil {
		return reminder.TransportFailure(err, "sending reminder email")
	}
	logCtx.WithFields(logrus.Fields{
		"to": rcpt.To,
		"cc": rcpt.Cc,
	}).Info("Reminder email sent")
	return nil
}
