package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"target_audit_reminder/internal/domain/auditor"
	"target_audit_reminder/internal/domain/reminder"
)

var auditorColumns = []string{
	"id", "name", "email", "department_id",
	"target_quota", "target_start_date", "target_end_date", "reminder_time",
	"last_reminder_date", "last_completed_count_at_reminder", "stagnant_streak",
}

type PostgresAuditorRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewPostgresAuditorRepository returns a store that interprets calendar days in loc.
func NewPostgresAuditorRepository(db *sql.DB, loc *time.Location) *PostgresAuditorRepository {
	return &PostgresAuditorRepository{db: db, loc: loc}
}

func (r *PostgresAuditorRepository) ListActiveReminderCandidates(ctx context.Context, now time.Time) ([]*auditor.Auditor, error) {
	today := now.In(r.loc).Format(reminder.DateLayout)
	query, args, err := psql.Select(auditorColumns...).
		From("auditors").
		Where(squirrel.Gt{"target_quota": 0}).
		Where(squirrel.NotEq{"target_start_date": nil}).
		Where(squirrel.GtOrEq{"target_end_date": today}).
		Where(squirrel.NotEq{"reminder_time": nil}).
		Where(squirrel.NotEq{"reminder_time": ""}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building reminder candidate query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, reminder.DataUnavailable(err, "error listing reminder candidates")
	}
	defer rows.Close()

	auditors := make([]*auditor.Auditor, 0)
	for rows.Next() {
		a, err := scanAuditor(rows)
		if err != nil {
			return nil, reminder.DataUnavailable(err, "error scanning reminder candidate")
		}
		auditors = append(auditors, a)
	}
	if err = rows.Err(); err != nil {
		return nil, reminder.DataUnavailable(err, "error iterating reminder candidates")
	}
	return auditors, nil
}

func (r *PostgresAuditorRepository) GetByID(ctx context.Context, id int64) (*auditor.Auditor, error) {
	query, args, err := psql.Select(auditorColumns...).
		From("auditors").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building auditor query: %w", err)
	}

	a, err := scanAuditor(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, auditor.ErrNotFound
		}
		return nil, reminder.DataUnavailable(err, "error getting auditor by ID")
	}
	return a, nil
}

// PersistReminderState is a conditional write: it only updates the row if
// no reminder has been recorded for the same day yet.
func (r *PostgresAuditorRepository) PersistReminderState(ctx context.Context, auditorID int64, state reminder.ReminderState) error {
	if !state.LastReminderDate.Valid {
		return fmt.Errorf("reminder state for auditor %d has no reminder date", auditorID)
	}
	sentOn := state.LastReminderDate.Time.Format(reminder.DateLayout)

	query, args, err := psql.Update("auditors").
		Set("last_reminder_date", sentOn).
		Set("last_completed_count_at_reminder", state.LastCompletedCountAtReminder).
		Set("stagnant_streak", state.StagnantStreak).
		Where(squirrel.Eq{"id": auditorID}).
		Where(squirrel.Or{
			squirrel.Eq{"last_reminder_date": nil},
			squirrel.NotEq{"last_reminder_date": sentOn},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building reminder state update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return reminder.DataUnavailable(err, "error persisting reminder state")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return reminder.DataUnavailable(err, "error reading affected rows")
	}
	if n == 0 {
		return auditor.ErrStateConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditor(row rowScanner) (*auditor.Auditor, error) {
	var (
		a            auditor.Auditor
		quota        sql.NullInt64
		start, end   sql.NullTime
		reminderTime sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.DepartmentID,
		&quota, &start, &end, &reminderTime,
		&a.State.LastReminderDate, &a.State.LastCompletedCountAtReminder, &a.State.StagnantStreak,
	)
	if err != nil {
		return nil, err
	}
	a.Target = reminder.TargetWindow{
		Quota:        int(quota.Int64),
		StartDate:    start.Time,
		EndDate:      end.Time,
		ReminderTime: reminderTime.String,
	}
	return &a, nil
}
