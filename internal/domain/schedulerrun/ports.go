package schedulerrun

import "context"

// Repository persists SchedulerRun audit records.
type Repository interface {
	Create(ctx context.Context, r *SchedulerRun) error
	Recent(ctx context.Context, limit int) ([]*SchedulerRun, error)
}
