package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/printfleet/printfleet/internal/domain/schedulerrun"
)

// SchedulerRunRepositoryGORM implements schedulerrun.Repository using GORM.
type SchedulerRunRepositoryGORM struct {
	db *gorm.DB
}

// NewSchedulerRunRepository creates a new GORM-based scheduler run repository.
func NewSchedulerRunRepository(db *gorm.DB) *SchedulerRunRepositoryGORM {
	return &SchedulerRunRepositoryGORM{db: db}
}

func (r *SchedulerRunRepositoryGORM) Create(ctx context.Context, run *schedulerrun.SchedulerRun) error {
	notesJSON, err := json.Marshal(run.Notes)
	if err != nil {
		return fmt.Errorf("persistence: marshal scheduler run notes: %w", err)
	}
	row := &SchedulerRunModel{
		RanAt:          run.RanAt,
		ScheduledCount: run.ScheduledCount,
		SkippedCount:   run.SkippedCount,
		SetupBlocks:    run.SetupBlocks,
		NotesJSON:      string(notesJSON),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("persistence: create scheduler run: %w", err)
	}
	run.ID = row.ID
	return nil
}

func (r *SchedulerRunRepositoryGORM) Recent(ctx context.Context, limit int) ([]*schedulerrun.SchedulerRun, error) {
	var rows []*SchedulerRunModel
	if err := r.db.WithContext(ctx).Order("ran_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("persistence: list recent scheduler runs: %w", err)
	}
	out := make([]*schedulerrun.SchedulerRun, 0, len(rows))
	for _, row := range rows {
		var notes []string
		if row.NotesJSON != "" {
			if err := json.Unmarshal([]byte(row.NotesJSON), &notes); err != nil {
				return nil, fmt.Errorf("persistence: unmarshal notes for scheduler run %d: %w", row.ID, err)
			}
		}
		out = append(out, &schedulerrun.SchedulerRun{
			ID:             row.ID,
			RanAt:          row.RanAt,
			ScheduledCount: row.ScheduledCount,
			SkippedCount:   row.SkippedCount,
			SetupBlocks:    row.SetupBlocks,
			Notes:          notes,
		})
	}
	return out, nil
}
