package spool

import "context"

// Repository persists Spool, FilamentLibrary and Usage rows.
type Repository interface {
	Create(ctx context.Context, s *Spool) error
	Update(ctx context.Context, s *Spool) error
	FindByID(ctx context.Context, id int64) (*Spool, error)
	FindByRFID(ctx context.Context, rfidTag string) (*Spool, error)
	FindActiveBySlot(ctx context.Context, printerID int64, slotNumber int) (*Spool, error)
	List(ctx context.Context) ([]*Spool, error)

	CreateUsage(ctx context.Context, u *Usage) error
	UsagesBySpool(ctx context.Context, spoolID int64) ([]*Usage, error)

	LibraryByID(ctx context.Context, id int64) (*FilamentLibrary, error)
	LibraryByMaterialHex(ctx context.Context, material, hex string) (*FilamentLibrary, error)
	LibraryByHex(ctx context.Context, hex string) (*FilamentLibrary, error)
	ListLibrary(ctx context.Context) ([]*FilamentLibrary, error)
}

// IDGenerator mints new spool QR codes for auto-created spools (AMS
// reconciliation step 2).
type IDGenerator interface {
	NewQRCode() string
}
