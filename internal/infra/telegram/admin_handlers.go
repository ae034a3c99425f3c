package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"target_audit_reminder/internal/app"
	"target_audit_reminder/internal/domain/auditor"
	"target_audit_reminder/internal/domain/reminder"
)

const msgNotAuthorized = "Error: you are not authorized to run this command."

// AdminOps is the part of app.AdminService the bot exposes.
type AdminOps interface {
	RunCycleNow(ctx context.Context, performingAdminID int64) (app.CycleReport, error)
	TargetStatus(ctx context.Context, performingAdminID, auditorID int64) (*app.TargetStatus, error)
	ListCandidates(ctx context.Context, performingAdminID int64) ([]*auditor.Auditor, error)
}

// Registrar is satisfied by *telebot.Bot.
type Registrar interface {
	Handle(endpoint interface{}, h telebot.HandlerFunc, m ...telebot.MiddlewareFunc)
}

// RegisterAdminHandlers registers handlers for admin commands.
// It requires the bot instance, admin service, and the configured admin Telegram ID.
func RegisterAdminHandlers(ctx context.Context, b Registrar, adminService AdminOps, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle("/run_cycle", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/run_cycle",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgNotAuthorized)
		}

		report, err := adminService.RunCycleNow(ctx, c.Sender().ID)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send(msgNotAuthorized)
			case errors.Is(err, app.ErrCycleInProgress):
				logWithError.Info("Cycle already running")
				return c.Send("A cycle is already running. Try again in a moment.")
			default:
				logWithError.Error("Manual cycle failed")
				return c.Send(fmt.Sprintf("The cycle failed: %s", err.Error()))
			}
		}

		handlerLogger.WithField("cycle_id", report.CycleID).Info("Manual cycle finished")
		return c.Send(formatCycleReport(report))
	})

	b.Handle("/target_status", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/target_status",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgNotAuthorized)
		}

		args := c.Args()
		// Expected format: /target_status <AuditorID>
		if len(args) != 1 {
			return c.Send("Invalid command format. Use: /target_status <AuditorID>")
		}
		auditorID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			handlerLogger.WithField("arg", args[0]).Warn("Invalid auditor ID format")
			return c.Send("Error: auditor ID must be a number.")
		}
		handlerLogger = handlerLogger.WithField("auditor_id", auditorID)

		status, err := adminService.TargetStatus(ctx, c.Sender().ID, auditorID)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send(msgNotAuthorized)
			case errors.Is(err, auditor.ErrNotFound):
				logWithError.Warn("Auditor not found")
				return c.Send(fmt.Sprintf("Auditor %d not found.", auditorID))
			default:
				logWithError.Error("Failed to evaluate target")
				return c.Send(fmt.Sprintf("Could not evaluate the target: %s", err.Error()))
			}
		}
		return c.Send(formatTargetStatus(status))
	})

	b.Handle("/list_targets", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/list_targets",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgNotAuthorized)
		}

		candidates, err := adminService.ListCandidates(ctx, c.Sender().ID)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send(msgNotAuthorized)
			}
			logWithError.Error("Failed to list reminder candidates")
			return c.Send(fmt.Sprintf("Could not list targets: %s", err.Error()))
		}
		if len(candidates) == 0 {
			return c.Send("No active targets.")
		}

		handlerLogger.WithField("candidates_count", len(candidates)).Info("Successfully retrieved target list")
		var response strings.Builder
		response.WriteString("--- Active targets ---\n")
		for _, a := range candidates {
			response.WriteString(fmt.Sprintf("ID: %d, Name: %s, Quota: %d, Window: %s..%s, Reminder at: %s\n",
				a.ID,
				a.Name,
				a.Target.Quota,
				a.Target.StartDate.Format(reminder.DateLayout),
				a.Target.EndDate.Format(reminder.DateLayout),
				a.Target.ReminderTime))
		}
		return c.Send(response.String())
	})
}

func formatCycleReport(r app.CycleReport) string {
	return fmt.Sprintf("Cycle %s finished in %s.\nCandidates: %d\nReminded: %d (escalated: %d)\nSkipped: %d\nFailed: %d",
		r.CycleID, r.Duration.Round(time.Millisecond), r.Candidates, r.Reminded, r.Escalated, r.Skipped, r.Failed)
}

func formatTargetStatus(s *app.TargetStatus) string {
	a := s.Auditor
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Auditor %d (%s)\n", a.ID, a.Name))
	b.WriteString(fmt.Sprintf("Phase: %s\n", s.Phase))
	if s.ConfigError != nil {
		b.WriteString(fmt.Sprintf("Target misconfigured: %s\n", s.ConfigError.Error()))
		return b.String()
	}
	d := s.Decision
	b.WriteString(fmt.Sprintf("Completed: %d of %d (pending %d)\n", d.Completed, d.Quota, d.Pending))
	if d.Reason != "" {
		b.WriteString(fmt.Sprintf("Next cycle: skip (%s)\n", d.Reason))
	} else {
		b.WriteString("Next cycle: remind\n")
	}
	if !d.EligibleAt.IsZero() {
		b.WriteString(fmt.Sprintf("Eligible at: %s\n", d.EligibleAt.Format("2006-01-02 15:04:05")))
	}
	last := "never"
	if a.State.LastReminderDate.Valid {
		last = a.State.LastReminderDate.Time.Format(reminder.DateLayout)
	}
	b.WriteString(fmt.Sprintf("Last reminder: %s\nStagnant streak: %d", last, a.State.StagnantStreak))
	return b.String()
}
