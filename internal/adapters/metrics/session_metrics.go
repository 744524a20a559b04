package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetricsCollector handles session transport metrics.
type SessionMetricsCollector struct {
	connectsTotal    *prometheus.CounterVec
	disconnectsTotal *prometheus.CounterVec
	framesTotal      *prometheus.CounterVec
	reconnectBackoff prometheus.Histogram
}

// NewSessionMetricsCollector creates a new session metrics collector.
func NewSessionMetricsCollector() *SessionMetricsCollector {
	return &SessionMetricsCollector{
		connectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "session_connects_total",
				Help:      "Total number of successful transport connects by printer",
			},
			[]string{"printer_id"},
		),
		disconnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "session_disconnects_total",
				Help:      "Total number of transport teardowns by printer",
			},
			[]string{"printer_id"},
		),
		framesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "session_status_frames_total",
				Help:      "Total number of StatusFrames processed by printer",
			},
			[]string{"printer_id"},
		),
		reconnectBackoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_reconnect_backoff_seconds",
			Help:      "Reconnect backoff delay distribution",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 60, 72},
		}),
	}
}

// Register registers all session metrics with the global registry.
func (c *SessionMetricsCollector) Register() error {
	collectors := []prometheus.Collector{
		c.connectsTotal,
		c.disconnectsTotal,
		c.framesTotal,
		c.reconnectBackoff,
	}
	for _, metric := range collectors {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

// RecordConnect implements SessionMetricsRecorder.
func (c *SessionMetricsCollector) RecordConnect(printerID int64) {
	c.connectsTotal.WithLabelValues(strconv.FormatInt(printerID, 10)).Inc()
}

// RecordDisconnect implements SessionMetricsRecorder.
func (c *SessionMetricsCollector) RecordDisconnect(printerID int64) {
	c.disconnectsTotal.WithLabelValues(strconv.FormatInt(printerID, 10)).Inc()
}

// RecordReconnectBackoff implements SessionMetricsRecorder.
func (c *SessionMetricsCollector) RecordReconnectBackoff(delaySeconds float64) {
	c.reconnectBackoff.Observe(delaySeconds)
}

// RecordStatusFrame implements SessionMetricsRecorder.
func (c *SessionMetricsCollector) RecordStatusFrame(printerID int64) {
	c.framesTotal.WithLabelValues(strconv.FormatInt(printerID, 10)).Inc()
}
