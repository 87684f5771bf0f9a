package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	billsIssued       prometheus.Counter
	billsVoided       prometheus.Counter
	billsRecalculated prometheus.Counter
	paymentsApplied   prometheus.Counter
	bulkItems         *prometheus.CounterVec
	bulkRunSeconds    prometheus.Histogram
	cashierDayClosed  prometheus.Counter
	schedulerRuns     *prometheus.CounterVec
	schedulerErrors   *prometheus.CounterVec
}

// New registers the instruments on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		billsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voltway_bills_issued_total",
			Help: "Bills issued.",
		}),
		billsVoided: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voltway_bills_voided_total",
			Help: "Bills voided.",
		}),
		billsRecalculated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voltway_bills_recalculated_total",
			Help: "Bills recalculated.",
		}),
		paymentsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voltway_payments_applied_total",
			Help: "Payments applied to bills.",
		}),
		bulkItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voltway_bulk_items_total",
			Help: "Bulk generation items by outcome.",
		}, []string{"result"}),
		bulkRunSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voltway_bulk_run_duration_seconds",
			Help:    "Wall time of bulk generation runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		cashierDayClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voltway_cashier_days_closed_total",
			Help: "Cashier business days closed.",
		}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voltway_scheduler_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		schedulerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voltway_scheduler_job_errors_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
	}

	reg.MustRegister(
		m.billsIssued,
		m.billsVoided,
		m.billsRecalculated,
		m.paymentsApplied,
		m.bulkItems,
		m.bulkRunSeconds,
		m.cashierDayClosed,
		m.schedulerRuns,
		m.schedulerErrors,
	)
	return m
}

func (m *Metrics) IncBillIssued() {
	if m == nil {
		return
	}
	m.billsIssued.Inc()
}

func (m *Metrics) IncBillVoided() {
	if m == nil {
		return
	}
	m.billsVoided.Inc()
}

func (m *Metrics) IncBillRecalculated() {
	if m == nil {
		return
	}
	m.billsRecalculated.Inc()
}

func (m *Metrics) IncPaymentApplied() {
	if m == nil {
		return
	}
	m.paymentsApplied.Inc()
}

// IncBulkItem counts a single processed meter. result is one of
// "generated", "skipped", or "failed".
func (m *Metrics) IncBulkItem(result string) {
	if m == nil {
		return
	}
	m.bulkItems.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveBulkRun(seconds float64) {
	if m == nil {
		return
	}
	m.bulkRunSeconds.Observe(seconds)
}

func (m *Metrics) IncCashierDayClosed() {
	if m == nil {
		return
	}
	m.cashierDayClosed.Inc()
}

func (m *Metrics) IncSchedulerRun(job string) {
	if m == nil {
		return
	}
	m.schedulerRuns.WithLabelValues(job).Inc()
}

func (m *Metrics) IncSchedulerError(job string) {
	if m == nil {
		return
	}
	m.schedulerErrors.WithLabelValues(job).Inc()
}

func newRegistry() (*prometheus.Registry, prometheus.Registerer, prometheus.Gatherer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	return reg, reg, reg
}

var Module = fx.Module("observability",
	fx.Provide(newRegistry, New),
)
