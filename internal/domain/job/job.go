// Package job holds Job: the core scheduling unit, its state machine and
// its closed fail-reason enum.
package job

import (
	"fmt"
	"time"

	"github.com/printfleet/printfleet/internal/domain/shared"
)

// Status is a Job's position in its lifecycle.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusPrinting  Status = "printing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// FailReason is the closed set of reasons a failed Job may carry.
type FailReason string

const (
	FailSpaghetti     FailReason = "spaghetti"
	FailAdhesion      FailReason = "adhesion"
	FailClog          FailReason = "clog"
	FailLayerShift    FailReason = "layer_shift"
	FailStringing     FailReason = "stringing"
	FailWarping       FailReason = "warping"
	FailFilamentRunout FailReason = "filament_runout"
	FailFilamentTangle FailReason = "filament_tangle"
	FailPowerLoss     FailReason = "power_loss"
	FailFirmwareError FailReason = "firmware_error"
	FailUserCancelled FailReason = "user_cancelled"
	FailOther         FailReason = "other"
)

// ColorRequirement mirrors model.ColorRequirement without importing the
// model package, since a Job may override its model's requirements.
type ColorRequirement struct {
	Color string
	Grams float64
}

// Job is the core scheduling unit.
type Job struct {
	ID                int64
	ModelID           *int64
	ItemName          string
	Quantity          int
	Priority          int // 1-5, lower = higher priority
	EffectiveDuration time.Duration
	ColorRequirements map[int]ColorRequirement
	Material          string
	Hold              bool
	DueDate           *time.Time
	PrinterID         *int64
	ScheduledStart    *time.Time
	ScheduledEnd      *time.Time
	ActualStart       *time.Time
	ActualEnd         *time.Time
	IsLocked          bool
	EstimatedCost     float64
	SuggestedPrice    float64
	MatchScore        *int // set by the Scheduler, cleared by ResetJob
	Notes             string
	FailReason        *FailReason
	ArtifactID        *int64
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MinEffectiveDuration is substituted for a job with zero effective
// duration.
const MinEffectiveDuration = 30 * time.Minute

// New constructs a submitted Job with cost fields frozen at creation
// time.
func New(itemName string, priority int, effectiveDuration time.Duration, estimatedCost, suggestedPrice float64, clock shared.Clock) (*Job, error) {
	if itemName == "" {
		return nil, shared.NewValidationError("item_name", "must not be empty")
	}
	if priority < 1 || priority > 5 {
		return nil, shared.NewValidationError("priority", "must be between 1 and 5")
	}
	if effectiveDuration <= 0 {
		effectiveDuration = MinEffectiveDuration
	}
	now := clock.Now()
	return &Job{
		ItemName:          itemName,
		Quantity:          1,
		Priority:          priority,
		EffectiveDuration: effectiveDuration,
		ColorRequirements: make(map[int]ColorRequirement),
		EstimatedCost:     estimatedCost,
		SuggestedPrice:    suggestedPrice,
		Status:            StatusSubmitted,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// RequiredColors returns the distinct color set the job needs, derived from
// ColorRequirements.
func (j *Job) RequiredColors() []string {
	seen := make(map[string]bool)
	var colors []string
	for _, req := range j.ColorRequirements {
		if !seen[req.Color] {
			seen[req.Color] = true
			colors = append(colors, req.Color)
		}
	}
	return colors
}

func (j *Job) transitionError(to Status) error {
	return shared.NewConflictError(fmt.Sprintf("job %d: cannot transition from %s to %s", j.ID, j.Status, to))
}

// Approve transitions submitted -> pending.
func (j *Job) Approve(clock shared.Clock) error {
	if j.Status != StatusSubmitted {
		return j.transitionError(StatusPending)
	}
	j.Status = StatusPending
	j.UpdatedAt = clock.Now()
	return nil
}

// Reject transitions submitted -> rejected.
func (j *Job) Reject(clock shared.Clock) error {
	if j.Status != StatusSubmitted {
		return j.transitionError(StatusRejected)
	}
	j.Status = StatusRejected
	j.UpdatedAt = clock.Now()
	return nil
}

// Schedule transitions pending -> scheduled, assigning printer and window.
// Used by the Scheduler.
func (j *Job) Schedule(printerID int64, start, end time.Time, matchScore int, clock shared.Clock) error {
	if j.Status != StatusPending {
		return j.transitionError(StatusScheduled)
	}
	j.PrinterID = &printerID
	j.ScheduledStart = &start
	j.ScheduledEnd = &end
	j.MatchScore = &matchScore
	j.Status = StatusScheduled
	j.UpdatedAt = clock.Now()
	return nil
}

// ResetJob transitions scheduled -> pending, clearing the scheduling
// decision including MatchScore.
func (j *Job) ResetJob(clock shared.Clock) error {
	if j.Status != StatusScheduled {
		return j.transitionError(StatusPending)
	}
	j.PrinterID = nil
	j.ScheduledStart = nil
	j.ScheduledEnd = nil
	j.MatchScore = nil
	j.Status = StatusPending
	j.UpdatedAt = clock.Now()
	return nil
}

// Cancel transitions pending|scheduled -> cancelled, or printing -> cancelled
// once hardware confirms idle (caller enforces the latter ordering; this
// method only performs the status mutation).
func (j *Job) Cancel(clock shared.Clock) error {
	switch j.Status {
	case StatusPending, StatusScheduled, StatusPrinting:
		j.Status = StatusCancelled
		now := clock.Now()
		j.ActualEnd = &now
		j.UpdatedAt = now
		return nil
	default:
		return j.transitionError(StatusCancelled)
	}
}

// StartPrinting transitions scheduled -> printing. The lock flag is set
// here and remains set through terminal states, so a printing or finished
// job can never be picked up by a later scheduler pass.
func (j *Job) StartPrinting(clock shared.Clock) error {
	if j.Status != StatusScheduled {
		return j.transitionError(StatusPrinting)
	}
	now := clock.Now()
	j.Status = StatusPrinting
	j.ActualStart = &now
	j.IsLocked = true
	j.UpdatedAt = now
	return nil
}

// Complete transitions printing -> completed. Idempotent: calling
// Complete on an already-completed job is a no-op returning nil, so a
// duplicate terminal frame can never double-apply downstream effects.
func (j *Job) Complete(clock shared.Clock) error {
	if j.Status == StatusCompleted {
		return nil
	}
	if j.Status != StatusPrinting {
		return j.transitionError(StatusCompleted)
	}
	now := clock.Now()
	j.Status = StatusCompleted
	j.ActualEnd = &now
	j.UpdatedAt = now
	return nil
}

// Fail transitions printing|scheduled -> failed, recording reason and
// appending a note. scheduled is a valid source state because the
// Dispatcher can fail a job during upload, before StartPrinting ever runs.
func (j *Job) Fail(reason FailReason, note string, clock shared.Clock) error {
	if j.Status != StatusPrinting && j.Status != StatusScheduled {
		return j.transitionError(StatusFailed)
	}
	now := clock.Now()
	j.Status = StatusFailed
	j.FailReason = &reason
	j.AppendNote(note, clock)
	j.ActualEnd = &now
	j.UpdatedAt = now
	return nil
}

// AppendNote accumulates free-form text onto Job.Notes, matching the
// original's `job.notes = f"{job.notes or ''}\n..."` pattern.
func (j *Job) AppendNote(note string, clock shared.Clock) {
	if note == "" {
		return
	}
	if j.Notes == "" {
		j.Notes = note
	} else {
		j.Notes = j.Notes + "\n" + note
	}
	j.UpdatedAt = clock.Now()
}

// IsTerminal reports whether the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}
