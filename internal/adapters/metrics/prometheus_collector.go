// Package metrics exposes Prometheus collectors for the daemon's
// subsystems: scheduler runs, dispatch attempts, session transport health
// and filament accounting. Collectors register against a package Registry
// created once at startup; when metrics are disabled the Registry stays
// nil and every package-level Record function is a no-op, so call sites
// never need their own enabled check.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	// Namespace for all metrics
	namespace = "printfleet"
	// Subsystem for daemon metrics
	subsystem = "daemon"
)

var (
	// Registry is the global Prometheus registry for all metrics
	Registry *prometheus.Registry

	// globalSchedulerCollector is set by SetGlobalSchedulerCollector()
	// when metrics are enabled
	globalSchedulerCollector SchedulerMetricsRecorder

	// globalDispatchCollector is set by SetGlobalDispatchCollector()
	globalDispatchCollector DispatchMetricsRecorder

	// globalSessionCollector is set by SetGlobalSessionCollector()
	globalSessionCollector SessionMetricsRecorder

	// globalAccountingCollector is set by SetGlobalAccountingCollector()
	globalAccountingCollector AccountingMetricsRecorder
)

// SchedulerMetricsRecorder defines the interface for recording scheduler
// batch-run metrics.
type SchedulerMetricsRecorder interface {
	RecordSchedulerRun(scheduled, skipped, setupBlocks int, durationSeconds float64)
}

// DispatchMetricsRecorder defines the interface for recording job-dispatch
// metrics.
type DispatchMetricsRecorder interface {
	RecordDispatch(printerID int64, status string)
	RecordUploadAttempt(success bool)
}

// SessionMetricsRecorder defines the interface for recording session
// transport metrics.
type SessionMetricsRecorder interface {
	RecordConnect(printerID int64)
	RecordDisconnect(printerID int64)
	RecordReconnectBackoff(delaySeconds float64)
	RecordStatusFrame(printerID int64)
}

// AccountingMetricsRecorder defines the interface for recording filament
// accounting metrics.
type AccountingMetricsRecorder interface {
	RecordDeduction(grams float64)
	RecordSpoolLow()
	RecordSpoolEmpty()
	RecordReconciliation(tier string)
}

// InitRegistry initializes the Prometheus registry.
// Should be called once at application startup if metrics are enabled.
func InitRegistry() {
	Registry = prometheus.NewRegistry()
}

// GetRegistry returns the global Prometheus registry.
// Returns nil if metrics are not initialized.
func GetRegistry() *prometheus.Registry {
	return Registry
}

// IsEnabled returns true if metrics collection is enabled.
func IsEnabled() bool {
	return Registry != nil
}

// SetGlobalSchedulerCollector sets the global scheduler metrics collector.
func SetGlobalSchedulerCollector(collector SchedulerMetricsRecorder) {
	globalSchedulerCollector = collector
}

// RecordSchedulerRun records one completed scheduler batch globally.
func RecordSchedulerRun(scheduled, skipped, setupBlocks int, durationSeconds float64) {
	if globalSchedulerCollector != nil {
		globalSchedulerCollector.RecordSchedulerRun(scheduled, skipped, setupBlocks, durationSeconds)
	}
}

// SetGlobalDispatchCollector sets the global dispatch metrics collector.
func SetGlobalDispatchCollector(collector DispatchMetricsRecorder) {
	globalDispatchCollector = collector
}

// RecordDispatch records one DispatchJob outcome globally.
func RecordDispatch(printerID int64, status string) {
	if globalDispatchCollector != nil {
		globalDispatchCollector.RecordDispatch(printerID, status)
	}
}

// RecordUploadAttempt records one artifact upload attempt globally.
func RecordUploadAttempt(success bool) {
	if globalDispatchCollector != nil {
		globalDispatchCollector.RecordUploadAttempt(success)
	}
}

// SetGlobalSessionCollector sets the global session metrics collector.
func SetGlobalSessionCollector(collector SessionMetricsRecorder) {
	globalSessionCollector = collector
}

// RecordSessionConnect records a successful transport connect globally.
func RecordSessionConnect(printerID int64) {
	if globalSessionCollector != nil {
		globalSessionCollector.RecordConnect(printerID)
	}
}

// RecordSessionDisconnect records a transport teardown globally.
func RecordSessionDisconnect(printerID int64) {
	if globalSessionCollector != nil {
		globalSessionCollector.RecordDisconnect(printerID)
	}
}

// RecordReconnectBackoff records one reconnect backoff delay globally.
func RecordReconnectBackoff(delaySeconds float64) {
	if globalSessionCollector != nil {
		globalSessionCollector.RecordReconnectBackoff(delaySeconds)
	}
}

// RecordStatusFrame records one processed StatusFrame globally.
func RecordStatusFrame(printerID int64) {
	if globalSessionCollector != nil {
		globalSessionCollector.RecordStatusFrame(printerID)
	}
}

// SetGlobalAccountingCollector sets the global accounting metrics collector.
func SetGlobalAccountingCollector(collector AccountingMetricsRecorder) {
	globalAccountingCollector = collector
}

// RecordDeduction records one spool consumption deduction globally.
func RecordDeduction(grams float64) {
	if globalAccountingCollector != nil {
		globalAccountingCollector.RecordDeduction(grams)
	}
}

// RecordSpoolLow records an inventory.spool_low emission globally.
func RecordSpoolLow() {
	if globalAccountingCollector != nil {
		globalAccountingCollector.RecordSpoolLow()
	}
}

// RecordSpoolEmpty records an inventory.spool_empty emission globally.
func RecordSpoolEmpty() {
	if globalAccountingCollector != nil {
		globalAccountingCollector.RecordSpoolEmpty()
	}
}

// RecordReconciliation records which AMS-sync tier resolved a slot globally.
func RecordReconciliation(tier string) {
	if globalAccountingCollector != nil {
		globalAccountingCollector.RecordReconciliation(tier)
	}
}
