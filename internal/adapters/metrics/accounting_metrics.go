package metrics

import "github.com/prometheus/client_golang/prometheus"

// AccountingMetricsCollector handles filament accounting metrics.
type AccountingMetricsCollector struct {
	deductionsTotal      prometheus.Counter
	gramsDeductedTotal   prometheus.Counter
	spoolLowTotal        prometheus.Counter
	spoolEmptyTotal      prometheus.Counter
	reconciliationsTotal *prometheus.CounterVec
}

// NewAccountingMetricsCollector creates a new accounting metrics collector.
func NewAccountingMetricsCollector() *AccountingMetricsCollector {
	return &AccountingMetricsCollector{
		deductionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "accounting_deductions_total",
			Help:      "Total number of spool consumption deductions applied",
		}),
		gramsDeductedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "accounting_grams_deducted_total",
			Help:      "Total filament grams deducted across all spools",
		}),
		spoolLowTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "accounting_spool_low_total",
			Help:      "Total number of low-stock threshold crossings",
		}),
		spoolEmptyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "accounting_spool_empty_total",
			Help:      "Total number of spools run to empty",
		}),
		// AMS reconciliation outcomes by resolution tier
		reconciliationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "accounting_reconciliations_total",
				Help:      "Total number of AMS slot reconciliations by resolution tier",
			},
			[]string{"tier"},
		),
	}
}

// Register registers all accounting metrics with the global registry.
func (c *AccountingMetricsCollector) Register() error {
	collectors := []prometheus.Collector{
		c.deductionsTotal,
		c.gramsDeductedTotal,
		c.spoolLowTotal,
		c.spoolEmptyTotal,
		c.reconciliationsTotal,
	}
	for _, metric := range collectors {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

// RecordDeduction implements AccountingMetricsRecorder.
func (c *AccountingMetricsCollector) RecordDeduction(grams float64) {
	c.deductionsTotal.Inc()
	c.gramsDeductedTotal.Add(grams)
}

// RecordSpoolLow implements AccountingMetricsRecorder.
func (c *AccountingMetricsCollector) RecordSpoolLow() {
	c.spoolLowTotal.Inc()
}

// RecordSpoolEmpty implements AccountingMetricsRecorder.
func (c *AccountingMetricsCollector) RecordSpoolEmpty() {
	c.spoolEmptyTotal.Inc()
}

// RecordReconciliation implements AccountingMetricsRecorder.
func (c *AccountingMetricsCollector) RecordReconciliation(tier string) {
	c.reconciliationsTotal.WithLabelValues(tier).Inc()
}
