package broadcast

import (
	"context"

	"github.com/sirupsen/logrus"

	"target_audit_reminder/internal/domain/notification"
)

// NewLogListener records every broadcast event in the log.
func NewLogListener(logger *logrus.Entry) Listener {
	return ListenerFunc(func(_ context.Context, evt notification.Event) error {
		logger.WithFields(logrus.Fields{
			"event_type":  evt.Type,
			"event_id":    evt.ID,
			"employee_id": evt.EmployeeID,
			"escalated":   evt.Escalated,
		}).Info(evt.Message)
		return nil
	})
}
