package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"target_audit_reminder/internal/domain/reminder"
)

type PostgresCompletionCounter struct {
	db  *sql.DB
	loc *time.Location
}

func NewPostgresCompletionCounter(db *sql.DB, loc *time.Location) *PostgresCompletionCounter {
	return &PostgresCompletionCounter{db: db, loc: loc}
}

// CountCompletions counts audits completed from the start of startDate up
// to, but excluding, the day after endDate, with days taken in the
// counter's location.
func (c *PostgresCompletionCounter) CountCompletions(ctx context.Context, auditorID int64, startDate, endDate time.Time) (int, error) {
	from, to := reminder.TargetWindow{StartDate: startDate, EndDate: endDate}.Bounds(c.loc)

	query, args, err := psql.Select("COUNT(*)").
		From("audits").
		Where(squirrel.Eq{"auditor_id": auditorID}).
		Where(squirrel.GtOrEq{"completed_at": from}).
		Where(squirrel.Lt{"completed_at": to}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("error building completion count query: %w", err)
	}

	var n int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, reminder.DataUnavailable(err, "error counting completed audits")
	}
	return n, nil
}
