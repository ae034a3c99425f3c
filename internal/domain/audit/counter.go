package audit

import (
	"context"
	"time"
)

// CompletionCounter counts completed audits owned by an auditor whose
// completion date falls inside [startDate, endDate], both inclusive.
// Implementations must be safe for concurrent use.
type CompletionCounter interface {
	CountCompletions(ctx context.Context, auditorID int64, startDate, endDate time.Time) (int, error)
}
