package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/adapters/metrics"
)

// gatheredCount sums every sample value for the named metric family across
// all label combinations.
func gatheredCount(t *testing.T, name string) float64 {
	t.Helper()
	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)
	total := 0.0
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if m.GetCounter() != nil {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestCollectors_RegisterAndRecord(t *testing.T) {
	metrics.InitRegistry()

	sched := metrics.NewSchedulerMetricsCollector()
	require.NoError(t, sched.Register())
	dispatch := metrics.NewDispatchMetricsCollector()
	require.NoError(t, dispatch.Register())
	session := metrics.NewSessionMetricsCollector()
	require.NoError(t, session.Register())
	acct := metrics.NewAccountingMetricsCollector()
	require.NoError(t, acct.Register())

	sched.RecordSchedulerRun(3, 1, 2, 0.25)
	dispatch.RecordDispatch(7, "started")
	dispatch.RecordUploadAttempt(false)
	dispatch.RecordUploadAttempt(true)
	session.RecordConnect(7)
	session.RecordStatusFrame(7)
	session.RecordStatusFrame(7)
	acct.RecordDeduction(42.5)
	acct.RecordSpoolLow()
	acct.RecordReconciliation("rfid")

	assert.Equal(t, 1.0, gatheredCount(t, "printfleet_daemon_scheduler_runs_total"))
	assert.Equal(t, 3.0, gatheredCount(t, "printfleet_daemon_scheduler_jobs_scheduled_total"))
	assert.Equal(t, 2.0, gatheredCount(t, "printfleet_daemon_scheduler_setup_blocks_total"))
	assert.Equal(t, 1.0, gatheredCount(t, "printfleet_daemon_dispatches_total"))
	assert.Equal(t, 2.0, gatheredCount(t, "printfleet_daemon_upload_attempts_total"))
	assert.Equal(t, 2.0, gatheredCount(t, "printfleet_daemon_session_status_frames_total"))
	assert.Equal(t, 42.5, gatheredCount(t, "printfleet_daemon_accounting_grams_deducted_total"))
	assert.Equal(t, 1.0, gatheredCount(t, "printfleet_daemon_accounting_spool_low_total"))
	assert.Equal(t, 1.0, gatheredCount(t, "printfleet_daemon_accounting_reconciliations_total"))
}

func TestRecord_IsANoOpWhenDisabled(t *testing.T) {
	// No registry, no global collectors: every package-level Record call
	// must be safe to make from instrumented code paths.
	metrics.SetGlobalSchedulerCollector(nil)
	metrics.SetGlobalDispatchCollector(nil)
	metrics.SetGlobalSessionCollector(nil)
	metrics.SetGlobalAccountingCollector(nil)

	metrics.RecordSchedulerRun(1, 0, 0, 0.1)
	metrics.RecordDispatch(1, "started")
	metrics.RecordUploadAttempt(true)
	metrics.RecordSessionConnect(1)
	metrics.RecordSessionDisconnect(1)
	metrics.RecordReconnectBackoff(1.5)
	metrics.RecordStatusFrame(1)
	metrics.RecordDeduction(10)
	metrics.RecordSpoolLow()
	metrics.RecordSpoolEmpty()
	metrics.RecordReconciliation("library")
}
