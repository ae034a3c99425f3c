package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"target_audit_reminder/internal/domain/audit"
	"target_audit_reminder/internal/domain/auditor"
	"target_audit_reminder/internal/domain/reminder"
)

var ErrCycleInProgress = errors.New("an evaluation cycle is already running")

// Alerter notifies operators about sustained failures.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}

type ReminderServiceConfig struct {
	Policy      reminder.Policy
	Location    *time.Location
	CallTimeout time.Duration
	// Concurrency bounds the number of auditors processed at once.
	Concurrency int
	// ListFailureAlert is the number of consecutive candidate listing
	// failures after which operators are alerted.
	ListFailureAlert int
}

// CycleReport summarises one evaluation cycle.
type CycleReport struct {
	CycleID    string
	StartedAt  time.Time
	Duration   time.Duration
	Candidates int
	Reminded   int
	Escalated  int
	Skipped    int
	Failed     int
}

// ReminderService runs evaluation cycles over all reminder candidates.
type ReminderService struct {
	auditors   auditor.Repository
	counter    audit.CompletionCounter
	resolver   *RecipientResolver
	dispatcher *Dispatcher
	alerter    Alerter
	recorder   Recorder
	cfg        ReminderServiceConfig
	logger     *logrus.Entry
	nowFunc    func() time.Time

	cycleMu      sync.Mutex
	listFailures int
}

func NewReminderService(
	ar auditor.Repository,
	cc audit.CompletionCounter,
	resolver *RecipientResolver,
	dispatcher *Dispatcher,
	alerter Alerter, // optional
	rec Recorder,
	cfg ReminderServiceConfig,
	logger *logrus.Entry,
) *ReminderService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if rec == nil {
		rec = NopRecorder{}
	}
	return &ReminderService{
		auditors:   ar,
		counter:    cc,
		resolver:   resolver,
		dispatcher: dispatcher,
		alerter:    alerter,
		recorder:   rec,
		cfg:        cfg,
		logger:     logger,
		nowFunc:    time.Now,
	}
}

func (s *ReminderService) now() time.Time {
	return s.nowFunc().In(s.cfg.Location)
}

// RunCycle performs one evaluation cycle. Only one cycle runs at a time;
// a concurrent call returns ErrCycleInProgress. Per-auditor failures are
// logged and counted in the report, never returned.
func (s *ReminderService) RunCycle(ctx context.Context) (CycleReport, error) {
	if !s.cycleMu.TryLock() {
		return CycleReport{}, ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	report := CycleReport{CycleID: uuid.NewString(), StartedAt: s.now()}
	logCtx := s.logger.WithField("cycle_id", report.CycleID)
	logCtx.Debug("Evaluation cycle started")

	listCtx, cancel := withTimeout(ctx, s.cfg.CallTimeout)
	candidates, err := s.auditors.ListActiveReminderCandidates(listCtx, report.StartedAt)
	cancel()
	if err != nil {
		s.candidateListFailed(ctx, logCtx, err)
		return report, errors.Wrap(err, "listing reminder candidates")
	}
	s.listFailures = 0
	s.recorder.CandidateListFailures(0)
	report.Candidates = len(candidates)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for _, a := range candidates {
		g.Go(func() error {
			dec, err := s.ProcessAuditor(ctx, report.StartedAt, a)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, auditor.ErrStateConflict):
				report.Skipped++
			case err != nil:
				report.Failed++
			case dec.ShouldRemind():
				report.Reminded++
				if dec.Escalated {
					report.Escalated++
				}
			default:
				report.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = s.nowFunc().Sub(report.StartedAt)
	s.recorder.CycleCompleted(report.Duration)
	logCtx.WithFields(logrus.Fields{
		"candidates": report.Candidates,
		"reminded":   report.Reminded,
		"escalated":  report.Escalated,
		"skipped":    report.Skipped,
		"failed":     report.Failed,
		"duration":   report.Duration.String(),
	}).Info("Evaluation cycle finished")
	return report, nil
}

func (s *ReminderService) candidateListFailed(ctx context.Context, logCtx *logrus.Entry, err error) {
	s.listFailures++
	s.recorder.CandidateListFailures(s.listFailures)
	logCtx = logCtx.WithError(err).WithField("consecutive_failures", s.listFailures)

	if s.cfg.ListFailureAlert <= 0 || s.listFailures < s.cfg.ListFailureAlert {
		logCtx.Warn("Failed to list reminder candidates")
		return
	}
	logCtx.WithField("alert", true).Error("Listing reminder candidates keeps failing")
	if s.alerter == nil || s.listFailures != s.cfg.ListFailureAlert {
		return
	}
	alertCtx, cancel := withTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	msg := fmt.Sprintf("Target audit reminders are stalled: listing candidates failed %d times in a row. Last error: %v", s.listFailures, err)
	if aerr := s.alerter.Alert(alertCtx, msg); aerr != nil {
		logCtx.WithField("alert_error", aerr.Error()).Error("Failed to alert operators")
	}
}

// ProcessAuditor runs count, decide, resolve, persist and dispatch for one
// auditor. The new state is persisted before dispatch and independently of
// its outcome, so a day is never sent twice.
func (s *ReminderService) ProcessAuditor(ctx context.Context, now time.Time, a *auditor.Auditor) (dec reminder.Decision, err error) {
	logCtx := s.logger.WithField("auditor_id", a.ID)
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic processing auditor %d: %v", a.ID, r)
		}
		if err != nil {
			kind := reminder.FailureKind(err)
			if errors.Is(err, auditor.ErrStateConflict) {
				kind = "conflict"
			}
			s.recorder.AuditorFailed(kind)
			entry := logCtx.WithError(err).WithField("kind", kind)
			switch kind {
			case "configuration", "conflict":
				entry.Warn("Skipping auditor")
			default:
				entry.Error("Failed to process auditor")
			}
		}
	}()

	completed, err := s.countCompletions(ctx, a)
	if err != nil {
		return reminder.Decision{}, err
	}

	dec, err = reminder.Decide(now, a.Target, a.State, completed, s.cfg.Policy)
	if err != nil {
		return reminder.Decision{}, err
	}
	s.recorder.DecisionMade(dec.Label())
	if !dec.ShouldRemind() {
		logCtx.WithField("reason", dec.Reason).Debug("No reminder due")
		return dec, nil
	}

	rcpt, rerr := s.resolver.Resolve(ctx, a, dec.Escalated)
	if rerr != nil {
		logCtx.WithError(rerr).Warn("Escalation recipients unavailable; notifying auditor only")
	}

	persistCtx, cancel := withTimeout(ctx, s.cfg.CallTimeout)
	err = s.auditors.PersistReminderState(persistCtx, a.ID, dec.NewState)
	cancel()
	if err != nil {
		if errors.Is(err, auditor.ErrStateConflict) {
			return dec, err
		}
		if !errors.Is(err, reminder.ErrDataUnavailable) {
			err = reminder.DataUnavailable(err, "persisting reminder state")
		}
		return dec, err
	}
	a.State = dec.NewState

	logCtx.WithFields(logrus.Fields{
		"pending":   dec.Pending,
		"completed": dec.Completed,
		"streak":    dec.NewState.StagnantStreak,
		"escalated": dec.Escalated,
	}).Info("Sending target audit reminder")
	s.dispatcher.Dispatch(ctx, a, dec, rcpt)
	return dec, nil
}

func (s *ReminderService) countCompletions(ctx context.Context, a *auditor.Auditor) (int, error) {
	countCtx, cancel := withTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	n, err := s.counter.CountCompletions(countCtx, a.ID, a.Target.StartDate, a.Target.EndDate)
	if err != nil {
		if !errors.Is(err, reminder.ErrDataUnavailable) {
			err = reminder.DataUnavailable(err, "counting completed audits")
		}
		return 0, err
	}
	return n, nil
}

// Evaluate computes the decision for an auditor at the current instant
// without persisting or sending anything.
func (s *ReminderService) Evaluate(ctx context.Context, a *auditor.Auditor) (reminder.Decision, error) {
	completed, err := s.countCompletions(ctx, a)
	if err != nil {
		return reminder.Decision{}, err
	}
	return reminder.Decide(s.now(), a.Target, a.State, completed, s.cfg.Policy)
}
