package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/printfleet/printfleet/internal/domain/audit"
)

// AuditRepositoryGORM implements audit.Repository using GORM.
type AuditRepositoryGORM struct {
	db *gorm.DB
}

// NewAuditRepository creates a new GORM-based audit repository.
func NewAuditRepository(db *gorm.DB) *AuditRepositoryGORM {
	return &AuditRepositoryGORM{db: db}
}

func (r *AuditRepositoryGORM) Create(ctx context.Context, e *audit.Entry) error {
	detailJSON, err := json.Marshal(e.Detail)
	if err != nil {
		return fmt.Errorf("persistence: marshal audit detail: %w", err)
	}
	model := &AuditEntryModel{
		Timestamp:  e.Timestamp,
		Action:     e.Action,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Actor:      e.Actor,
		SourceIP:   e.SourceIP,
		DetailJSON: string(detailJSON),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("persistence: create audit entry: %w", err)
	}
	e.ID = model.ID
	return nil
}

func (r *AuditRepositoryGORM) Recent(ctx context.Context, limit int) ([]*audit.Entry, error) {
	var models []*AuditEntryModel
	if err := r.db.WithContext(ctx).Order("timestamp DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("persistence: list recent audit entries: %w", err)
	}
	out := make([]*audit.Entry, 0, len(models))
	for _, m := range models {
		detail := make(map[string]interface{})
		if m.DetailJSON != "" {
			if err := json.Unmarshal([]byte(m.DetailJSON), &detail); err != nil {
				return nil, fmt.Errorf("persistence: unmarshal detail for audit entry %d: %w", m.ID, err)
			}
		}
		out = append(out, &audit.Entry{
			ID:         m.ID,
			Timestamp:  m.Timestamp,
			Action:     m.Action,
			EntityKind: m.EntityKind,
			EntityID:   m.EntityID,
			Actor:      m.Actor,
			SourceIP:   m.SourceIP,
			Detail:     detail,
		})
	}
	return out, nil
}

func (r *AuditRepositoryGORM) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result := r.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&AuditEntryModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("persistence: delete audit entries older than %s: %w", cutoff, result.Error)
	}
	return int(result.RowsAffected), nil
}
