package app

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"target_audit_reminder/internal/domain/auditor"
	"target_audit_reminder/internal/domain/reminder"
)

var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

// TargetStatus is a read-only snapshot of an auditor's target and reminder state.
type TargetStatus struct {
	Auditor  *auditor.Auditor
	Decision reminder.Decision
	Phase    reminder.Phase
	// ConfigError is set when the auditor's target window is malformed.
	ConfigError error
}

// AdminService exposes operator actions over the reminder scheduler.
type AdminService struct {
	auditors        auditor.Repository
	reminders       *ReminderService
	adminTelegramID int64
}

func NewAdminService(ar auditor.Repository, rs *ReminderService, adminID int64) *AdminService {
	return &AdminService{
		auditors:        ar,
		reminders:       rs,
		adminTelegramID: adminID,
	}
}

func (s *AdminService) authorize(performingAdminID int64) error {
	if s.adminTelegramID == 0 || performingAdminID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

// RunCycleNow triggers an immediate evaluation cycle.
func (s *AdminService) RunCycleNow(ctx context.Context, performingAdminID int64) (CycleReport, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return CycleReport{}, err
	}
	return s.reminders.RunCycle(ctx)
}

// TargetStatus reports where an auditor stands right now without sending anything.
func (s *AdminService) TargetStatus(ctx context.Context, performingAdminID, auditorID int64) (*TargetStatus, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	a, err := s.auditors.GetByID(ctx, auditorID)
	if err != nil {
		return nil, err
	}
	status := &TargetStatus{Auditor: a}
	dec, err := s.reminders.Evaluate(ctx, a)
	if err != nil {
		if errors.Is(err, reminder.ErrConfiguration) {
			status.ConfigError = err
			status.Phase = reminder.PhaseInactive
			return status, nil
		}
		return nil, errors.Wrapf(err, "evaluating target of auditor %d", auditorID)
	}
	status.Decision = dec
	status.Phase = dec.Phase()
	return status, nil
}

// ListCandidates returns the auditors the next cycle will evaluate.
func (s *AdminService) ListCandidates(ctx context.Context, performingAdminID int64) ([]*auditor.Auditor, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	candidates, err := s.auditors.ListActiveReminderCandidates(ctx, s.reminders.now())
	if err != nil {
		return nil, errors.Wrap(err, "listing reminder candidates")
	}
	return candidates, nil
}
