package audit

import (
	"context"
	"time"
)

// Repository persists AuditEntry rows and supports retention cleanup.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	Recent(ctx context.Context, limit int) ([]*Entry, error)
	// DeleteOlderThan removes entries with Timestamp before cutoff, returning
	// the number of rows removed, for the periodic retention job.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
