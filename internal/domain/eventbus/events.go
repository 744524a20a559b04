// Package eventbus is the in-process publish/subscribe bus. Each topic
// carries its own tagged payload struct rather than a single interface{}
// blob, so subscribers and channel adapters get a stable wire schema.
package eventbus

import "time"

// Topic names a bus channel.
type Topic string

const (
	TopicPrinterStateChanged  Topic = "printer.state_changed"
	TopicPrinterConnected     Topic = "printer.connected"
	TopicPrinterDisconnected  Topic = "printer.disconnected"
	TopicPrinterError         Topic = "printer.error"
	TopicPrinterHMSCode       Topic = "printer.hms_code"
	TopicJobSubmitted         Topic = "job.submitted"
	TopicJobApproved          Topic = "job.approved"
	TopicJobRejected          Topic = "job.rejected"
	TopicJobStarted           Topic = "job.started"
	TopicJobScheduled         Topic = "job.scheduled"
	TopicJobCompleted         Topic = "job.completed"
	TopicJobFailed            Topic = "job.failed"
	TopicInventorySpoolLow    Topic = "inventory.spool_low"
	TopicInventorySpoolEmpty  Topic = "inventory.spool_empty"
	TopicVisionDetection      Topic = "vision.detection"
	TopicSystemBackupComplete Topic = "system.backup_completed"
)

// PrinterStateChanged carries the new Fleet State projection summary.
type PrinterStateChanged struct {
	PrinterID  int64
	IsOnline   bool
	IsPrinting bool
	At         time.Time
}

// PrinterConnected / PrinterDisconnected mark session transport lifecycle.
type PrinterConnected struct {
	PrinterID int64
	At        time.Time
}

type PrinterDisconnected struct {
	PrinterID int64
	Reason    string
	At        time.Time
}

// PrinterError carries a decoded vendor error (see hmscodes).
type PrinterError struct {
	PrinterID int64
	Code      string
	Message   string
	At        time.Time
}

// PrinterHMSCode is the raw vendor error code before decoding, published
// alongside PrinterError for subscribers that want the untranslated code.
type PrinterHMSCode struct {
	PrinterID int64
	AttrCode  string
	At        time.Time
}

// JobSubmitted / JobApproved / JobRejected / JobStarted mirror Job state
// transitions.
type JobSubmitted struct {
	JobID int64
	At    time.Time
}

type JobApproved struct {
	JobID int64
	At    time.Time
}

type JobRejected struct {
	JobID int64
	At    time.Time
}

type JobStarted struct {
	JobID     int64
	PrinterID int64
	At        time.Time
}

// JobScheduled is emitted once per job placed by a Scheduler run.
type JobScheduled struct {
	JobID          int64
	PrinterID      int64
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	MatchScore     int
	At             time.Time
}

// JobCompleted / JobFailed are terminal transitions, published on topics
// with a deeper per-subscriber buffer (terminalBufferSize).
type JobCompleted struct {
	JobID     int64
	PrinterID int64
	At        time.Time
}

type JobFailed struct {
	JobID      int64
	PrinterID  int64
	FailReason string
	At         time.Time
}

// InventorySpoolLow / InventorySpoolEmpty fire from Filament Accounting
// deduction.
type InventorySpoolLow struct {
	SpoolID        int64
	RemainingGrams float64
	At             time.Time
}

type InventorySpoolEmpty struct {
	SpoolID int64
	At      time.Time
}

// VisionDetection is a pass-through topic for the external vision/AI
// subsystem (out of scope; the bus only carries its events).
type VisionDetection struct {
	PrinterID int64
	Kind      string
	At        time.Time
}

// SystemBackupCompleted reports a CLI `backup create` run.
type SystemBackupCompleted struct {
	Path string
	At   time.Time
}
