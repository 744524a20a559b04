package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetricsCollector handles job-dispatch metrics.
type DispatchMetricsCollector struct {
	dispatchesTotal     *prometheus.CounterVec
	uploadAttemptsTotal *prometheus.CounterVec
}

// NewDispatchMetricsCollector creates a new dispatch metrics collector.
func NewDispatchMetricsCollector() *DispatchMetricsCollector {
	return &DispatchMetricsCollector{
		// Dispatch outcomes counter
		dispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dispatches_total",
				Help:      "Total number of DispatchJob outcomes by printer and status",
			},
			[]string{"printer_id", "status"},
		),

		// Artifact upload attempts counter, retries included
		uploadAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "upload_attempts_total",
				Help:      "Total number of artifact upload attempts by result",
			},
			[]string{"result"},
		),
	}
}

// Register registers all dispatch metrics with the global registry.
func (c *DispatchMetricsCollector) Register() error {
	collectors := []prometheus.Collector{
		c.dispatchesTotal,
		c.uploadAttemptsTotal,
	}
	for _, metric := range collectors {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

// RecordDispatch implements DispatchMetricsRecorder.
func (c *DispatchMetricsCollector) RecordDispatch(printerID int64, status string) {
	c.dispatchesTotal.WithLabelValues(strconv.FormatInt(printerID, 10), status).Inc()
}

// RecordUploadAttempt implements DispatchMetricsRecorder.
func (c *DispatchMetricsCollector) RecordUploadAttempt(success bool) {
	result := "error"
	if success {
		result = "ok"
	}
	c.uploadAttemptsTotal.WithLabelValues(result).Inc()
}
