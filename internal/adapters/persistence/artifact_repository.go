package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/printfleet/printfleet/internal/domain/artifact"
)

// ArtifactRepositoryGORM implements artifact.Repository using GORM.
type ArtifactRepositoryGORM struct {
	db *gorm.DB
}

// NewArtifactRepository creates a new GORM-based artifact repository.
func NewArtifactRepository(db *gorm.DB) *ArtifactRepositoryGORM {
	return &ArtifactRepositoryGORM{db: db}
}

func toArtifactModel(a *artifact.PrintArtifact) (*PrintArtifactModel, error) {
	slotJSON, err := json.Marshal(a.PerSlotFilament)
	if err != nil {
		return nil, fmt.Errorf("persistence: marshal per-slot filament: %w", err)
	}
	compatJSON, err := json.Marshal(a.CompatiblePrinterModels)
	if err != nil {
		return nil, fmt.Errorf("persistence: marshal compatible printer models: %w", err)
	}
	return &PrintArtifactModel{
		ID:                          a.ID,
		Format:                      string(a.Format),
		FileID:                      a.FileID,
		OriginalName:                a.OriginalName,
		StoragePath:                 a.StoragePath,
		ContentHash:                 a.ContentHash,
		EstimatedPrintSec:           a.EstimatedPrintSec,
		TotalGrams:                  a.TotalGrams,
		PerSlotFilamentJSON:         string(slotJSON),
		ThumbnailPath:               a.ThumbnailPath,
		CompatiblePrinterModelsJSON: string(compatJSON),
		BedWidthMM:                  a.BedWidthMM,
		BedDepthMM:                  a.BedDepthMM,
		SupportsUsed:                a.SupportsUsed,
		ModelID:                     a.ModelID,
		CreatedAt:                   a.CreatedAt,
	}, nil
}

func fromArtifactModel(row *PrintArtifactModel) (*artifact.PrintArtifact, error) {
	slots := make(map[int]artifact.FilamentUse)
	if row.PerSlotFilamentJSON != "" {
		if err := json.Unmarshal([]byte(row.PerSlotFilamentJSON), &slots); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal per-slot filament for artifact %d: %w", row.ID, err)
		}
	}
	var compat []string
	if row.CompatiblePrinterModelsJSON != "" {
		if err := json.Unmarshal([]byte(row.CompatiblePrinterModelsJSON), &compat); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal compatible printer models for artifact %d: %w", row.ID, err)
		}
	}
	return &artifact.PrintArtifact{
		ID:                      row.ID,
		Format:                  artifact.Format(row.Format),
		FileID:                  row.FileID,
		OriginalName:            row.OriginalName,
		StoragePath:             row.StoragePath,
		ContentHash:             row.ContentHash,
		EstimatedPrintSec:       row.EstimatedPrintSec,
		TotalGrams:              row.TotalGrams,
		PerSlotFilament:         slots,
		ThumbnailPath:           row.ThumbnailPath,
		CompatiblePrinterModels: compat,
		BedWidthMM:              row.BedWidthMM,
		BedDepthMM:              row.BedDepthMM,
		SupportsUsed:            row.SupportsUsed,
		ModelID:                 row.ModelID,
		CreatedAt:               row.CreatedAt,
	}, nil
}

func (r *ArtifactRepositoryGORM) Create(ctx context.Context, a *artifact.PrintArtifact) error {
	row, err := toArtifactModel(a)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("persistence: create artifact: %w", err)
	}
	a.ID = row.ID
	return nil
}

func (r *ArtifactRepositoryGORM) FindByID(ctx context.Context, id int64) (*artifact.PrintArtifact, error) {
	var row PrintArtifactModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find artifact %d: %w", id, err)
	}
	return fromArtifactModel(&row)
}

func (r *ArtifactRepositoryGORM) FindByContentHash(ctx context.Context, hash string) (*artifact.PrintArtifact, error) {
	var row PrintArtifactModel
	if err := r.db.WithContext(ctx).First(&row, "content_hash = ?", hash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find artifact by hash %q: %w", hash, err)
	}
	return fromArtifactModel(&row)
}

func (r *ArtifactRepositoryGORM) List(ctx context.Context) ([]*artifact.PrintArtifact, error) {
	var rows []*PrintArtifactModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("persistence: list artifacts: %w", err)
	}
	out := make([]*artifact.PrintArtifact, 0, len(rows))
	for _, row := range rows {
		a, err := fromArtifactModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
