package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulerMetricsCollector handles scheduler batch-run metrics.
type SchedulerMetricsCollector struct {
	runsTotal          prometheus.Counter
	jobsScheduledTotal prometheus.Counter
	jobsSkippedTotal   prometheus.Counter
	setupBlocksTotal   prometheus.Counter
	runDuration        prometheus.Histogram
}

// NewSchedulerMetricsCollector creates a new scheduler metrics collector.
func NewSchedulerMetricsCollector() *SchedulerMetricsCollector {
	return &SchedulerMetricsCollector{
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_runs_total",
			Help:      "Total number of completed scheduler batch passes",
		}),
		jobsScheduledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_jobs_scheduled_total",
			Help:      "Total number of jobs placed onto printer timelines",
		}),
		jobsSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_jobs_skipped_total",
			Help:      "Total number of candidate jobs left pending",
		}),
		setupBlocksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_setup_blocks_total",
			Help:      "Total number of filament-swap setup blocks consumed",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_run_duration_seconds",
			Help:      "Scheduler batch pass duration distribution",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
	}
}

// Register registers all scheduler metrics with the global registry.
func (c *SchedulerMetricsCollector) Register() error {
	collectors := []prometheus.Collector{
		c.runsTotal,
		c.jobsScheduledTotal,
		c.jobsSkippedTotal,
		c.setupBlocksTotal,
		c.runDuration,
	}
	for _, metric := range collectors {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

// RecordSchedulerRun implements SchedulerMetricsRecorder.
func (c *SchedulerMetricsCollector) RecordSchedulerRun(scheduled, skipped, setupBlocks int, durationSeconds float64) {
	c.runsTotal.Inc()
	c.jobsScheduledTotal.Add(float64(scheduled))
	c.jobsSkippedTotal.Add(float64(skipped))
	c.setupBlocksTotal.Add(float64(setupBlocks))
	c.runDuration.Observe(durationSeconds)
}
