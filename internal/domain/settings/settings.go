package settings

import (
	"context"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("department notification settings not found")

// EscalationRecipients are the supervisory contacts configured for a department.
type EscalationRecipients struct {
	DepartmentID int64
	To           []string
	Cc           []string
}

type Repository interface {
	// GetEscalationRecipients returns ErrNotFound when the department has
	// no configuration.
	GetEscalationRecipients(ctx context.Context, departmentID int64) (*EscalationRecipients, error)
}
