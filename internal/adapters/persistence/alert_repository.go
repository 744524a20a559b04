package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/printfleet/printfleet/internal/domain/alert"
)

// AlertRepositoryGORM implements alert.Repository using GORM.
type AlertRepositoryGORM struct {
	db *gorm.DB
}

// NewAlertRepository creates a new GORM-based alert repository.
func NewAlertRepository(db *gorm.DB) *AlertRepositoryGORM {
	return &AlertRepositoryGORM{db: db}
}

func toAlertModel(a *alert.Alert) *AlertModel {
	return &AlertModel{
		ID:         a.ID,
		Kind:       a.Kind,
		Severity:   string(a.Severity),
		TargetUser: a.TargetUser,
		Title:      a.Title,
		Message:    a.Message,
		Read:       a.Read,
		Dismissed:  a.Dismissed,
		PrinterID:  a.PrinterID,
		JobID:      a.JobID,
		SpoolID:    a.SpoolID,
		CreatedAt:  a.CreatedAt,
	}
}

func fromAlertModel(m *AlertModel) *alert.Alert {
	return &alert.Alert{
		ID:         m.ID,
		Kind:       m.Kind,
		Severity:   alert.Severity(m.Severity),
		TargetUser: m.TargetUser,
		Title:      m.Title,
		Message:    m.Message,
		Read:       m.Read,
		Dismissed:  m.Dismissed,
		PrinterID:  m.PrinterID,
		JobID:      m.JobID,
		SpoolID:    m.SpoolID,
		CreatedAt:  m.CreatedAt,
	}
}

func (r *AlertRepositoryGORM) Create(ctx context.Context, a *alert.Alert) error {
	model := toAlertModel(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("persistence: create alert: %w", err)
	}
	a.ID = model.ID
	return nil
}

func (r *AlertRepositoryGORM) Update(ctx context.Context, a *alert.Alert) error {
	if err := r.db.WithContext(ctx).Save(toAlertModel(a)).Error; err != nil {
		return fmt.Errorf("persistence: update alert %d: %w", a.ID, err)
	}
	return nil
}

func (r *AlertRepositoryGORM) FindByID(ctx context.Context, id int64) (*alert.Alert, error) {
	var model AlertModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find alert %d: %w", id, err)
	}
	return fromAlertModel(&model), nil
}

func (r *AlertRepositoryGORM) ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]*alert.Alert, error) {
	query := r.db.WithContext(ctx).Where("target_user = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	var models []*AlertModel
	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("persistence: list alerts for user %d: %w", userID, err)
	}
	out := make([]*alert.Alert, len(models))
	for i, m := range models {
		out[i] = fromAlertModel(m)
	}
	return out, nil
}

func (r *AlertRepositoryGORM) PreferenceFor(ctx context.Context, userID int64, kind string) (*alert.AlertPreference, error) {
	var model AlertPreferenceModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find alert preference %d/%s: %w", userID, kind, err)
	}
	return &alert.AlertPreference{
		ID:              model.ID,
		UserID:          model.UserID,
		Kind:            model.Kind,
		InAppEnabled:    model.InAppEnabled,
		EmailEnabled:    model.EmailEnabled,
		PushEnabled:     model.PushEnabled,
		WebhookEnabled:  model.WebhookEnabled,
		QuietHoursStart: model.QuietHoursStart,
		QuietHoursEnd:   model.QuietHoursEnd,
		DigestBatching:  model.DigestBatching,
	}, nil
}

func (r *AlertRepositoryGORM) UpsertPreference(ctx context.Context, p *alert.AlertPreference) error {
	model := &AlertPreferenceModel{
		ID:              p.ID,
		UserID:          p.UserID,
		Kind:            p.Kind,
		InAppEnabled:    p.InAppEnabled,
		EmailEnabled:    p.EmailEnabled,
		PushEnabled:     p.PushEnabled,
		WebhookEnabled:  p.WebhookEnabled,
		QuietHoursStart: p.QuietHoursStart,
		QuietHoursEnd:   p.QuietHoursEnd,
		DigestBatching:  p.DigestBatching,
	}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", p.UserID, p.Kind).
		Assign(model).
		FirstOrCreate(model).Error
	if err != nil {
		return fmt.Errorf("persistence: upsert alert preference %d/%s: %w", p.UserID, p.Kind, err)
	}
	p.ID = model.ID
	return nil
}
