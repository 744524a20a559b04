package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/printfleet/printfleet/internal/domain/job"
)

// JobRepositoryGORM implements job.Repository using GORM.
type JobRepositoryGORM struct {
	db *gorm.DB
}

// NewJobRepository creates a new GORM-based job repository.
func NewJobRepository(db *gorm.DB) *JobRepositoryGORM {
	return &JobRepositoryGORM{db: db}
}

func toJobModel(j *job.Job) (*JobModel, error) {
	reqJSON, err := json.Marshal(j.ColorRequirements)
	if err != nil {
		return nil, fmt.Errorf("persistence: marshal job color requirements: %w", err)
	}
	var failReason *string
	if j.FailReason != nil {
		s := string(*j.FailReason)
		failReason = &s
	}
	return &JobModel{
		ID:                    j.ID,
		ModelID:               j.ModelID,
		ItemName:              j.ItemName,
		Quantity:              j.Quantity,
		Priority:              j.Priority,
		EffectiveDurationSec:  int64(j.EffectiveDuration / time.Second),
		ColorRequirementsJSON: string(reqJSON),
		Material:              j.Material,
		Hold:                  j.Hold,
		DueDate:               j.DueDate,
		PrinterID:             j.PrinterID,
		ScheduledStart:        j.ScheduledStart,
		ScheduledEnd:          j.ScheduledEnd,
		ActualStart:           j.ActualStart,
		ActualEnd:             j.ActualEnd,
		IsLocked:              j.IsLocked,
		EstimatedCost:         j.EstimatedCost,
		SuggestedPrice:        j.SuggestedPrice,
		MatchScore:            j.MatchScore,
		Notes:                 j.Notes,
		FailReason:            failReason,
		ArtifactID:            j.ArtifactID,
		Status:                string(j.Status),
		CreatedAt:             j.CreatedAt,
		UpdatedAt:             j.UpdatedAt,
	}, nil
}

func fromJobModel(row *JobModel) (*job.Job, error) {
	reqs := make(map[int]job.ColorRequirement)
	if row.ColorRequirementsJSON != "" {
		if err := json.Unmarshal([]byte(row.ColorRequirementsJSON), &reqs); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal color requirements for job %d: %w", row.ID, err)
		}
	}
	var failReason *job.FailReason
	if row.FailReason != nil {
		fr := job.FailReason(*row.FailReason)
		failReason = &fr
	}
	return &job.Job{
		ID:                row.ID,
		ModelID:           row.ModelID,
		ItemName:          row.ItemName,
		Quantity:          row.Quantity,
		Priority:          row.Priority,
		EffectiveDuration: time.Duration(row.EffectiveDurationSec) * time.Second,
		ColorRequirements: reqs,
		Material:          row.Material,
		Hold:              row.Hold,
		DueDate:           row.DueDate,
		PrinterID:         row.PrinterID,
		ScheduledStart:    row.ScheduledStart,
		ScheduledEnd:      row.ScheduledEnd,
		ActualStart:       row.ActualStart,
		ActualEnd:         row.ActualEnd,
		IsLocked:          row.IsLocked,
		EstimatedCost:     row.EstimatedCost,
		SuggestedPrice:    row.SuggestedPrice,
		MatchScore:        row.MatchScore,
		Notes:             row.Notes,
		FailReason:        failReason,
		ArtifactID:        row.ArtifactID,
		Status:            job.Status(row.Status),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

func (r *JobRepositoryGORM) Create(ctx context.Context, j *job.Job) error {
	row, err := toJobModel(j)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("persistence: create job: %w", err)
	}
	j.ID = row.ID
	return nil
}

func (r *JobRepositoryGORM) Update(ctx context.Context, j *job.Job) error {
	row, err := toJobModel(j)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("persistence: update job %d: %w", j.ID, err)
	}
	return nil
}

func (r *JobRepositoryGORM) FindByID(ctx context.Context, id int64) (*job.Job, error) {
	var row JobModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: find job %d: %w", id, err)
	}
	return fromJobModel(&row)
}

func (r *JobRepositoryGORM) Schedulable(ctx context.Context) ([]*job.Job, error) {
	var rows []*JobModel
	err := r.db.WithContext(ctx).
		Where("status IN (?, ?) AND hold = ? AND is_locked = ?",
			string(job.StatusPending), string(job.StatusScheduled), false, false).
		Order("priority ASC, due_date ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("persistence: list schedulable jobs: %w", err)
	}
	return jobsFromRows(rows)
}

func (r *JobRepositoryGORM) Printing(ctx context.Context) ([]*job.Job, error) {
	var rows []*JobModel
	if err := r.db.WithContext(ctx).Where("status = ?", string(job.StatusPrinting)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("persistence: list printing jobs: %w", err)
	}
	return jobsFromRows(rows)
}

func (r *JobRepositoryGORM) ByPrinterAndStatus(ctx context.Context, printerID int64, statuses ...job.Status) ([]*job.Job, error) {
	strStatuses := make([]string, len(statuses))
	for i, s := range statuses {
		strStatuses[i] = string(s)
	}
	var rows []*JobModel
	err := r.db.WithContext(ctx).
		Where("printer_id = ? AND status IN ?", printerID, strStatuses).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("persistence: list jobs for printer %d: %w", printerID, err)
	}
	return jobsFromRows(rows)
}

func (r *JobRepositoryGORM) List(ctx context.Context) ([]*job.Job, error) {
	var rows []*JobModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("persistence: list jobs: %w", err)
	}
	return jobsFromRows(rows)
}

func jobsFromRows(rows []*JobModel) ([]*job.Job, error) {
	out := make([]*job.Job, 0, len(rows))
	for _, row := range rows {
		j, err := fromJobModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}
