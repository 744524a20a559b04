package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/printfleet/printfleet/internal/domain/model"
)

// ModelRepositoryGORM implements model.Repository using GORM.
type ModelRepositoryGORM struct {
	db *gorm.DB
}

// NewModelRepository creates a new GORM-based model repository.
func NewModelRepository(db *gorm.DB) *ModelRepositoryGORM {
	return &ModelRepositoryGORM{db: db}
}

func toModelModel(m *model.Model) (*ModelModel, error) {
	reqJSON, err := json.Marshal(m.ColorRequirements)
	if err != nil {
		return nil, fmt.Errorf("persistence: marshal color requirements: %w", err)
	}
	return &ModelModel{
		ID:                    m.ID,
		DisplayName:           m.DisplayName,
		EstimatedBuildSec:     m.EstimatedBuildSec,
		DefaultMaterial:       m.DefaultMaterial,
		ColorRequirementsJSON: string(reqJSON),
		ThumbnailPath:         m.ThumbnailPath,
		ArtifactID:            m.ArtifactID,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}, nil
}

func fromModelModel(row *ModelModel) (*model.Model, error) {
	reqs := make(map[int]model.ColorRequirement)
	if row.ColorRequirementsJSON != "" {
		if err := json.Unmarshal([]byte(row.ColorRequirementsJSON), &reqs); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal color requirements for model %d: %w", row.ID, err)
		}
	}
	return &model.Model{
		ID:                row.ID,
		DisplayName:       row.DisplayName,
		EstimatedBuildSec: row.EstimatedBuildSec,
		DefaultMaterial:   row.DefaultMaterial,
		ColorRequirements: reqs,
		ThumbnailPath:     row.ThumbnailPath,
		ArtifactID:        row.ArtifactID,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

func (r *ModelRepositoryGORM) Create(ctx context.Context, m *model.Model) error {
	row, err := toModelModel(m)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("persistence: create model: %w", err)
	}
	m.ID = row.ID
	return nil
}

func (r *ModelRepositoryGORM) Update(ctx context.Context, m *model.Model) error {
	row, err := toModelModel(m)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("persistence: update model %d: %w", m.ID, err)
	}
	return nil
}

func (r *ModelRepositoryGORM) FindByID(ctx context.Context, id int64) (*model.Model, error) {
	var row ModelModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find model %d: %w", id, err)
	}
	return fromModelModel(&row)
}

func (r *ModelRepositoryGORM) List(ctx context.Context) ([]*model.Model, error) {
	var rows []*ModelModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("persistence: list models: %w", err)
	}
	out := make([]*model.Model, 0, len(rows))
	for _, row := range rows {
		m, err := fromModelModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *ModelRepositoryGORM) Delete(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Delete(&ModelModel{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("persistence: delete model %d: %w", id, err)
	}
	return nil
}
