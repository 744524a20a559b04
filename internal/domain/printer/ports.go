package printer

import "context"

// Repository persists Printer aggregates and their FilamentSlots.
type Repository interface {
	Create(ctx context.Context, p *Printer) error
	Update(ctx context.Context, p *Printer) error
	FindByID(ctx context.Context, id int64) (*Printer, error)
	FindByName(ctx context.Context, name string) (*Printer, error)
	ListActive(ctx context.Context) ([]*Printer, error)
	List(ctx context.Context) ([]*Printer, error)
	Delete(ctx context.Context, id int64) error

	Slots(ctx context.Context, printerID int64) ([]*FilamentSlot, error)
	UpsertSlot(ctx context.Context, slot *FilamentSlot) error
	SlotByNumber(ctx context.Context, printerID int64, slotNumber int) (*FilamentSlot, error)
}
