package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/printfleet/printfleet/internal/domain/spool"
)

// SpoolRepositoryGORM implements spool.Repository using GORM.
type SpoolRepositoryGORM struct {
	db *gorm.DB
}

// NewSpoolRepository creates a new GORM-based spool repository.
func NewSpoolRepository(db *gorm.DB) *SpoolRepositoryGORM {
	return &SpoolRepositoryGORM{db: db}
}

func toSpoolModel(s *spool.Spool) *SpoolModel {
	return &SpoolModel{
		ID:              s.ID,
		LibraryID:       s.LibraryID,
		InitialGrams:    s.InitialGrams,
		RemainingGrams:  s.RemainingGrams,
		EmptySpoolGrams: s.EmptySpoolGrams,
		RFIDTag:         s.RFIDTag,
		QRCode:          s.QRCode,
		Status:          string(s.Status),
		PrinterID:       s.PrinterID,
		SlotNumber:      s.SlotNumber,
		StorageLocation: s.StorageLocation,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func fromSpoolModel(m *SpoolModel) *spool.Spool {
	return &spool.Spool{
		ID:              m.ID,
		LibraryID:       m.LibraryID,
		InitialGrams:    m.InitialGrams,
		RemainingGrams:  m.RemainingGrams,
		EmptySpoolGrams: m.EmptySpoolGrams,
		RFIDTag:         m.RFIDTag,
		QRCode:          m.QRCode,
		Status:          spool.Status(m.Status),
		PrinterID:       m.PrinterID,
		SlotNumber:      m.SlotNumber,
		StorageLocation: m.StorageLocation,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func (r *SpoolRepositoryGORM) Create(ctx context.Context, s *spool.Spool) error {
	model := toSpoolModel(s)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("persistence: create spool: %w", err)
	}
	s.ID = model.ID
	return nil
}

func (r *SpoolRepositoryGORM) Update(ctx context.Context, s *spool.Spool) error {
	if err := r.db.WithContext(ctx).Save(toSpoolModel(s)).Error; err != nil {
		return fmt.Errorf("persistence: update spool %d: %w", s.ID, err)
	}
	return nil
}

func (r *SpoolRepositoryGORM) FindByID(ctx context.Context, id int64) (*spool.Spool, error) {
	var model SpoolModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find spool %d: %w", id, err)
	}
	return fromSpoolModel(&model), nil
}

func (r *SpoolRepositoryGORM) FindByRFID(ctx context.Context, rfidTag string) (*spool.Spool, error) {
	var model SpoolModel
	if err := r.db.WithContext(ctx).First(&model, "rfid_tag = ?", rfidTag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find spool by rfid %q: %w", rfidTag, err)
	}
	return fromSpoolModel(&model), nil
}

func (r *SpoolRepositoryGORM) FindActiveBySlot(ctx context.Context, printerID int64, slotNumber int) (*spool.Spool, error) {
	var model SpoolModel
	err := r.db.WithContext(ctx).
		Where("printer_id = ? AND slot_number = ? AND status = ?", printerID, slotNumber, string(spool.StatusActive)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find active spool for %d/%d: %w", printerID, slotNumber, err)
	}
	return fromSpoolModel(&model), nil
}

func (r *SpoolRepositoryGORM) List(ctx context.Context) ([]*spool.Spool, error) {
	var models []*SpoolModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("persistence: list spools: %w", err)
	}
	out := make([]*spool.Spool, len(models))
	for i, m := range models {
		out[i] = fromSpoolModel(m)
	}
	return out, nil
}

func (r *SpoolRepositoryGORM) CreateUsage(ctx context.Context, u *spool.Usage) error {
	model := &SpoolUsageModel{
		SpoolID:   u.SpoolID,
		JobID:     u.JobID,
		Grams:     u.Grams,
		Notes:     u.Notes,
		CreatedAt: u.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("persistence: create spool usage: %w", err)
	}
	u.ID = model.ID
	return nil
}

func (r *SpoolRepositoryGORM) UsagesBySpool(ctx context.Context, spoolID int64) ([]*spool.Usage, error) {
	var models []*SpoolUsageModel
	if err := r.db.WithContext(ctx).
		Where("spool_id = ?", spoolID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("persistence: list usages for spool %d: %w", spoolID, err)
	}
	out := make([]*spool.Usage, len(models))
	for i, m := range models {
		out[i] = &spool.Usage{
			ID:        m.ID,
			SpoolID:   m.SpoolID,
			JobID:     m.JobID,
			Grams:     m.Grams,
			Notes:     m.Notes,
			CreatedAt: m.CreatedAt,
		}
	}
	return out, nil
}

func fromLibraryModel(m *FilamentLibraryModel) *spool.FilamentLibrary {
	return &spool.FilamentLibrary{
		ID:          m.ID,
		Brand:       m.Brand,
		ProductName: m.ProductName,
		Material:    m.Material,
		ColorHex:    m.ColorHex,
		CostPerGram: m.CostPerGram,
	}
}

func (r *SpoolRepositoryGORM) LibraryByID(ctx context.Context, id int64) (*spool.FilamentLibrary, error) {
	var model FilamentLibraryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find filament library %d: %w", id, err)
	}
	return fromLibraryModel(&model), nil
}

func (r *SpoolRepositoryGORM) LibraryByMaterialHex(ctx context.Context, material, hex string) (*spool.FilamentLibrary, error) {
	var model FilamentLibraryModel
	err := r.db.WithContext(ctx).
		Where("material = ? AND color_hex = ?", material, hex).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find filament library %s/%s: %w", material, hex, err)
	}
	return fromLibraryModel(&model), nil
}

func (r *SpoolRepositoryGORM) LibraryByHex(ctx context.Context, hex string) (*spool.FilamentLibrary, error) {
	var model FilamentLibraryModel
	if err := r.db.WithContext(ctx).Where("color_hex = ?", hex).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find filament library by hex %s: %w", hex, err)
	}
	return fromLibraryModel(&model), nil
}

func (r *SpoolRepositoryGORM) ListLibrary(ctx context.Context) ([]*spool.FilamentLibrary, error) {
	var models []*FilamentLibraryModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("persistence: list filament library: %w", err)
	}
	out := make([]*spool.FilamentLibrary, len(models))
	for i, m := range models {
		out[i] = fromLibraryModel(m)
	}
	return out, nil
}
