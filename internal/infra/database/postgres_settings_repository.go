package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"target_audit_reminder/internal/domain/reminder"
	"target_audit_reminder/internal/domain/settings"
)

type PostgresSettingsRepository struct {
	db *sql.DB
}

func NewPostgresSettingsRepository(db *sql.DB) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

func (r *PostgresSettingsRepository) GetEscalationRecipients(ctx context.Context, departmentID int64) (*settings.EscalationRecipients, error) {
	query, args, err := psql.Select("department_id", "to_emails", "cc_emails").
		From("department_notification_settings").
		Where(squirrel.Eq{"department_id": departmentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building settings query: %w", err)
	}

	var (
		rec    settings.EscalationRecipients
		to, cc pq.StringArray
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&rec.DepartmentID, &to, &cc)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, settings.ErrNotFound
		}
		return nil, reminder.DataUnavailable(err, "error getting department notification settings")
	}
	rec.To = []string(to)
	rec.Cc = []string(cc)
	return &rec, nil
}
