package auditor

import (
	"database/sql"

	"target_audit_reminder/internal/domain/reminder"
)

// Auditor is an employee with an assigned audit target.
type Auditor struct {
	ID           int64
	Name         string
	Email        string
	DepartmentID sql.NullInt64
	Target       reminder.TargetWindow
	State        reminder.ReminderState
}
