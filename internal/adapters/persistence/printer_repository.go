package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/printfleet/printfleet/internal/domain/printer"
)

// PrinterRepositoryGORM implements printer.Repository using GORM.
type PrinterRepositoryGORM struct {
	db *gorm.DB
}

// NewPrinterRepository creates a new GORM-based printer repository.
func NewPrinterRepository(db *gorm.DB) *PrinterRepositoryGORM {
	return &PrinterRepositoryGORM{db: db}
}

func toPrinterModel(p *printer.Printer) *PrinterModel {
	return &PrinterModel{
		ID:               p.ID,
		Name:             p.Name,
		Kind:             string(p.Kind),
		Host:             p.Host,
		CredentialsBlob:  p.CredentialsBlob,
		ModelFamily:      p.ModelFamily,
		SlotCount:        p.SlotCount,
		Active:           p.Active,
		LifetimePrintSec: p.LifetimePrintSec,
		PrintCount:       p.PrintCount,
		HoursSinceServ:   p.HoursSinceServ,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func fromPrinterModel(m *PrinterModel) *printer.Printer {
	return &printer.Printer{
		ID:               m.ID,
		Name:             m.Name,
		Kind:             printer.Kind(m.Kind),
		Host:             m.Host,
		CredentialsBlob:  m.CredentialsBlob,
		ModelFamily:      m.ModelFamily,
		SlotCount:        m.SlotCount,
		Active:           m.Active,
		LifetimePrintSec: m.LifetimePrintSec,
		PrintCount:       m.PrintCount,
		HoursSinceServ:   m.HoursSinceServ,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func (r *PrinterRepositoryGORM) Create(ctx context.Context, p *printer.Printer) error {
	model := toPrinterModel(p)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("persistence: create printer: %w", err)
	}
	p.ID = model.ID
	return nil
}

func (r *PrinterRepositoryGORM) Update(ctx context.Context, p *printer.Printer) error {
	if err := r.db.WithContext(ctx).Save(toPrinterModel(p)).Error; err != nil {
		return fmt.Errorf("persistence: update printer %d: %w", p.ID, err)
	}
	return nil
}

func (r *PrinterRepositoryGORM) FindByID(ctx context.Context, id int64) (*printer.Printer, error) {
	var model PrinterModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find printer %d: %w", id, err)
	}
	return fromPrinterModel(&model), nil
}

func (r *PrinterRepositoryGORM) FindByName(ctx context.Context, name string) (*printer.Printer, error) {
	var model PrinterModel
	if err := r.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find printer by name %q: %w", name, err)
	}
	return fromPrinterModel(&model), nil
}

func (r *PrinterRepositoryGORM) ListActive(ctx context.Context) ([]*printer.Printer, error) {
	var models []*PrinterModel
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("persistence: list active printers: %w", err)
	}
	out := make([]*printer.Printer, len(models))
	for i, m := range models {
		out[i] = fromPrinterModel(m)
	}
	return out, nil
}

func (r *PrinterRepositoryGORM) List(ctx context.Context) ([]*printer.Printer, error) {
	var models []*PrinterModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("persistence: list printers: %w", err)
	}
	out := make([]*printer.Printer, len(models))
	for i, m := range models {
		out[i] = fromPrinterModel(m)
	}
	return out, nil
}

func (r *PrinterRepositoryGORM) Delete(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Delete(&PrinterModel{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("persistence: delete printer %d: %w", id, err)
	}
	return nil
}

func toSlotModel(s *printer.FilamentSlot) *FilamentSlotModel {
	return &FilamentSlotModel{
		ID:              s.ID,
		PrinterID:       s.PrinterID,
		SlotNumber:      s.SlotNumber,
		Material:        s.Material,
		ColorLabel:      s.ColorLabel,
		ColorHex:        s.ColorHex,
		AssignedSpoolID: s.AssignedSpoolID,
		SpoolConfirmed:  s.SpoolConfirmed,
		UpdatedAt:       s.UpdatedAt,
	}
}

func fromSlotModel(m *FilamentSlotModel) *printer.FilamentSlot {
	return &printer.FilamentSlot{
		ID:              m.ID,
		PrinterID:       m.PrinterID,
		SlotNumber:      m.SlotNumber,
		Material:        m.Material,
		ColorLabel:      m.ColorLabel,
		ColorHex:        m.ColorHex,
		AssignedSpoolID: m.AssignedSpoolID,
		SpoolConfirmed:  m.SpoolConfirmed,
		UpdatedAt:       m.UpdatedAt,
	}
}

func (r *PrinterRepositoryGORM) Slots(ctx context.Context, printerID int64) ([]*printer.FilamentSlot, error) {
	var models []*FilamentSlotModel
	if err := r.db.WithContext(ctx).
		Where("printer_id = ?", printerID).
		Order("slot_number ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("persistence: list slots for printer %d: %w", printerID, err)
	}
	out := make([]*printer.FilamentSlot, len(models))
	for i, m := range models {
		out[i] = fromSlotModel(m)
	}
	return out, nil
}

func (r *PrinterRepositoryGORM) UpsertSlot(ctx context.Context, slot *printer.FilamentSlot) error {
	model := toSlotModel(slot)
	err := r.db.WithContext(ctx).
		Where("printer_id = ? AND slot_number = ?", slot.PrinterID, slot.SlotNumber).
		Assign(model).
		FirstOrCreate(model).Error
	if err != nil {
		return fmt.Errorf("persistence: upsert slot %d/%d: %w", slot.PrinterID, slot.SlotNumber, err)
	}
	slot.ID = model.ID
	return nil
}

func (r *PrinterRepositoryGORM) SlotByNumber(ctx context.Context, printerID int64, slotNumber int) (*printer.FilamentSlot, error) {
	var model FilamentSlotModel
	err := r.db.WithContext(ctx).
		Where("printer_id = ? AND slot_number = ?", printerID, slotNumber).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find slot %d/%d: %w", printerID, slotNumber, err)
	}
	return fromSlotModel(&model), nil
}
