package job

import "context"

// Repository persists Job aggregates.
type Repository interface {
	Create(ctx context.Context, j *Job) error
	Update(ctx context.Context, j *Job) error
	FindByID(ctx context.Context, id int64) (*Job, error)
	// Schedulable returns jobs eligible for a scheduler pass: state in
	// {pending, scheduled}, hold=false, is_locked=false.
	Schedulable(ctx context.Context) ([]*Job, error)
	// Printing returns jobs currently in the printing state, used to seed
	// per-printer timelines with projected completion times.
	Printing(ctx context.Context) ([]*Job, error)
	// ByPrinterAndStatus returns jobs on a printer in any of the given
	// statuses, used by Dispatcher reconciliation.
	ByPrinterAndStatus(ctx context.Context, printerID int64, statuses ...Status) ([]*Job, error)
	List(ctx context.Context) ([]*Job, error)
}
