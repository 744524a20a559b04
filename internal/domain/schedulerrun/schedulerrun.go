// Package schedulerrun holds SchedulerRun: the audit record of one
// Scheduler batch pass.
package schedulerrun

import "time"

// SchedulerRun records the outcome of one scheduler batch.
type SchedulerRun struct {
	ID             int64
	RanAt          time.Time
	ScheduledCount int
	SkippedCount   int
	SetupBlocks    int
	Notes          []string // one reason string per job left pending
}

// CandidateCount returns scheduled+skipped, which must equal the number of
// candidate jobs considered.
func (r *SchedulerRun) CandidateCount() int {
	return r.ScheduledCount + r.SkippedCount
}
