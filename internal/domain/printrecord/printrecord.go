// Package printrecord holds PrintRecord: the observed print on hardware,
// independent of Job, produced by Dispatcher reconciliation.
package printrecord

import "time"

// Status is the observed state of a print on hardware.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// PrintRecord is live print telemetry, optionally linked to a Job after the
// fact.
type PrintRecord struct {
	ID              int64
	PrinterID       int64
	Filename        string
	ProgressPct     *float64
	RemainingMin    *int
	CurrentLayer    *int
	TotalLayers     *int
	Status          Status
	JobID           *int64 // nil until explicitly matched to a Job
	StartedAt       time.Time
	EndedAt         *time.Time
}

// LinkToJob associates this record with a Job. This is an explicit admin
// action, never performed automatically by reconciliation.
func (r *PrintRecord) LinkToJob(jobID int64) {
	r.JobID = &jobID
}
