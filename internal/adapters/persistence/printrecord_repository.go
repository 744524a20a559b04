package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/printfleet/printfleet/internal/domain/printrecord"
)

// PrintRecordRepositoryGORM implements printrecord.Repository using GORM.
type PrintRecordRepositoryGORM struct {
	db *gorm.DB
}

// NewPrintRecordRepository creates a new GORM-based print record repository.
func NewPrintRecordRepository(db *gorm.DB) *PrintRecordRepositoryGORM {
	return &PrintRecordRepositoryGORM{db: db}
}

func toPrintRecordModel(rec *printrecord.PrintRecord) *PrintRecordModel {
	return &PrintRecordModel{
		ID:           rec.ID,
		PrinterID:    rec.PrinterID,
		Filename:     rec.Filename,
		ProgressPct:  rec.ProgressPct,
		RemainingMin: rec.RemainingMin,
		CurrentLayer: rec.CurrentLayer,
		TotalLayers:  rec.TotalLayers,
		Status:       string(rec.Status),
		JobID:        rec.JobID,
		StartedAt:    rec.StartedAt,
		EndedAt:      rec.EndedAt,
	}
}

func fromPrintRecordModel(m *PrintRecordModel) *printrecord.PrintRecord {
	return &printrecord.PrintRecord{
		ID:           m.ID,
		PrinterID:    m.PrinterID,
		Filename:     m.Filename,
		ProgressPct:  m.ProgressPct,
		RemainingMin: m.RemainingMin,
		CurrentLayer: m.CurrentLayer,
		TotalLayers:  m.TotalLayers,
		Status:       printrecord.Status(m.Status),
		JobID:        m.JobID,
		StartedAt:    m.StartedAt,
		EndedAt:      m.EndedAt,
	}
}

func (r *PrintRecordRepositoryGORM) Create(ctx context.Context, rec *printrecord.PrintRecord) error {
	model := toPrintRecordModel(rec)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("persistence: create print record: %w", err)
	}
	rec.ID = model.ID
	return nil
}

func (r *PrintRecordRepositoryGORM) Update(ctx context.Context, rec *printrecord.PrintRecord) error {
	if err := r.db.WithContext(ctx).Save(toPrintRecordModel(rec)).Error; err != nil {
		return fmt.Errorf("persistence: update print record %d: %w", rec.ID, err)
	}
	return nil
}

func (r *PrintRecordRepositoryGORM) FindByID(ctx context.Context, id int64) (*printrecord.PrintRecord, error) {
	var model PrintRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find print record %d: %w", id, err)
	}
	return fromPrintRecordModel(&model), nil
}

func (r *PrintRecordRepositoryGORM) FindInFlightByPrinterAndFilename(ctx context.Context, printerID int64, filename string) (*printrecord.PrintRecord, error) {
	var model PrintRecordModel
	err := r.db.WithContext(ctx).
		Where("printer_id = ? AND filename = ? AND status = ?", printerID, filename, string(printrecord.StatusRunning)).
		Order("started_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find in-flight record for %d/%s: %w", printerID, filename, err)
	}
	return fromPrintRecordModel(&model), nil
}

func (r *PrintRecordRepositoryGORM) FindSoleInFlightByPrinter(ctx context.Context, printerID int64) (*printrecord.PrintRecord, error) {
	var models []*PrintRecordModel
	err := r.db.WithContext(ctx).
		Where("printer_id = ? AND status = ?", printerID, string(printrecord.StatusRunning)).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("persistence: find in-flight records for printer %d: %w", printerID, err)
	}
	if len(models) != 1 {
		return nil, nil
	}
	return fromPrintRecordModel(models[0]), nil
}
