package printrecord

import "context"

// Repository persists PrintRecord rows.
type Repository interface {
	Create(ctx context.Context, r *PrintRecord) error
	Update(ctx context.Context, r *PrintRecord) error
	FindByID(ctx context.Context, id int64) (*PrintRecord, error)
	// FindInFlightByPrinterAndFilename supports Dispatcher reconciliation's
	// match-by-filename rule.
	FindInFlightByPrinterAndFilename(ctx context.Context, printerID int64, filename string) (*PrintRecord, error)
	// FindSoleInFlightByPrinter supports the "sole in-flight job" fallback
	// match rule when the filename doesn't resolve.
	FindSoleInFlightByPrinter(ctx context.Context, printerID int64) (*PrintRecord, error)
}
