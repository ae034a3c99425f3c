package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"target_audit_reminder/internal/app"
)

// CycleRunner is implemented by app.ReminderService.
type CycleRunner interface {
	RunCycle(ctx context.Context) (app.CycleReport, error)
}

// ReminderScheduler triggers an evaluation cycle once at start and then on
// every poll interval. A tick that arrives while a cycle is still running is
// skipped.
type ReminderScheduler struct {
	cronEngine *cron.Cron
	runner     CycleRunner
	interval   time.Duration
	logger     *logrus.Entry

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewReminderScheduler(runner CycleRunner, interval time.Duration, loc *time.Location, logger *logrus.Entry) *ReminderScheduler {
	if loc == nil {
		loc = time.Local
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &ReminderScheduler{
		cronEngine: cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{logger})),
		runner:     runner,
		interval:   interval,
		logger:     logger,
		baseCtx:    baseCtx,
		cancel:     cancel,
	}
}

func (s *ReminderScheduler) Start() error {
	if s.interval < time.Second {
		return fmt.Errorf("poll interval must be at least 1s, got %s", s.interval)
	}
	s.logger.WithField("interval", s.interval.String()).Info("Starting reminder scheduler...")

	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.logger})).Then(cron.FuncJob(s.runCycle))
	if _, err := s.cronEngine.AddJob("@every "+s.interval.String(), job); err != nil {
		return errors.Wrap(err, "adding reminder cron job")
	}

	// Catch up immediately instead of waiting a full interval after a restart.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		job.Run()
	}()

	s.cronEngine.Start()
	s.logger.Info("Reminder scheduler started.")
	return nil
}

func (s *ReminderScheduler) runCycle() {
	report, err := s.runner.RunCycle(s.baseCtx)
	switch {
	case errors.Is(err, app.ErrCycleInProgress):
		s.logger.Info("Cycle already in progress, tick skipped")
	case err != nil:
		s.logger.WithError(err).WithField("cycle_id", report.CycleID).Error("Evaluation cycle failed")
	}
}

// Stop stops scheduling and waits for the running cycle. If ctx expires
// first, the running cycle is cancelled and awaited.
func (s *ReminderScheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping reminder scheduler...")
	cronDone := s.cronEngine.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("Reminder scheduler gracefully stopped.")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Shutdown grace period expired, cancelling running cycle")
		s.cancel()
		<-done
		return errors.Wrap(ctx.Err(), "waiting for running cycle")
	}
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithError(err).WithFields(kvFields(keysAndValues)).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
