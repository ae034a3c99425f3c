package app

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"target_audit_reminder/internal/domain/auditor"
	"target_audit_reminder/internal/domain/notification"
	"target_audit_reminder/internal/domain/reminder"
	"target_audit_reminder/internal/domain/settings"
)

// RecipientResolver maps an auditor to the addresses of one reminder.
type RecipientResolver struct {
	settingsRepo settings.Repository
	timeout      time.Duration
	logger       *logrus.Entry
}

func NewRecipientResolver(sr settings.Repository, timeout time.Duration, logger *logrus.Entry) *RecipientResolver {
	return &RecipientResolver{
		settingsRepo: sr,
		timeout:      timeout,
		logger:       logger,
	}
}

// Resolve always includes the auditor's own address. On escalation the
// department's configured recipients are merged in; a department without
// configuration degrades to self-notification. If the settings lookup fails
// the self-only set is returned together with the error.
func (r *RecipientResolver) Resolve(ctx context.Context, a *auditor.Auditor, escalated bool) (notification.RecipientSet, error) {
	to := newAddressSet()
	cc := newAddressSet()
	to.add(a.Email)

	set := func() notification.RecipientSet {
		return notification.RecipientSet{
			To:        to.list(),
			Cc:        cc.without(to),
			Escalated: escalated,
		}
	}

	if !escalated || !a.DepartmentID.Valid {
		return set(), nil
	}

	lookupCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	cfg, err := r.settingsRepo.GetEscalationRecipients(lookupCtx, a.DepartmentID.Int64)
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			r.logger.WithFields(logrus.Fields{
				"auditor_id":    a.ID,
				"department_id": a.DepartmentID.Int64,
			}).Debug("No escalation recipients configured for department")
			return set(), nil
		}
		if !errors.Is(err, reminder.ErrDataUnavailable) {
			err = reminder.DataUnavailable(err, "looking up escalation recipients")
		}
		return set(), err
	}

	for _, addr := range cfg.To {
		to.add(addr)
	}
	for _, addr := range cfg.Cc {
		cc.add(addr)
	}
	return set(), nil
}

// addressSet keeps the first spelling of each address, compared case-insensitively.
type addressSet struct {
	seen  map[string]struct{}
	order []string
}

func newAddressSet() *addressSet {
	return &addressSet{seen: make(map[string]struct{})}
}

func (s *addressSet) add(addr string) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	key := strings.ToLower(addr)
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.order = append(s.order, addr)
}

func (s *addressSet) has(addr string) bool {
	_, ok := s.seen[strings.ToLower(addr)]
	return ok
}

func (s *addressSet) list() []string {
	return append([]string(nil), s.order...)
}

func (s *addressSet) without(other *addressSet) []string {
	out := make([]string, 0, len(s.order))
	for _, addr := range s.order {
		if !other.has(addr) {
			out = append(out, addr)
		}
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
