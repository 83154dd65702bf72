package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics: коллекторы Prometheus для фоновых задач и операций с деньгами.
type Metrics struct {
	jobRuns        *prometheus.CounterVec
	jobFailures    *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	interestTotal  *prometheus.CounterVec
	accountsPaid   *prometheus.CounterVec
	transfers      *prometheus.CounterVec
	creditPayments *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// New регистрирует коллекторы. При nil используется регистратор по умолчанию.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = build(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return build(registerer)
}

type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End записывает длительность и исход, возвращая err без изменений.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.jobFailures.WithLabelValues(t.job).Inc()
	}
	t.metrics.jobRuns.WithLabelValues(t.job, status).Inc()
	t.metrics.jobDuration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

func (m *Metrics) ObserveInterest(kind string, accounts int, total decimal.Decimal) {
	if m == nil {
		return
	}
	m.accountsPaid.WithLabelValues(kind).Add(float64(accounts))
	m.interestTotal.WithLabelValues(kind).Add(total.InexactFloat64())
}

func (m *Metrics) ObserveTransfer(err error) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ObserveCreditPayment(err error) {
	if m == nil {
		return
	}
	m.creditPayments.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func build(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_jobs_total",
			Help: "Total job executions partitioned by job name and status.",
		}, []string{"job", "status"}),
		jobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_jobs_failures_total",
			Help: "Total failures observed for background jobs.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bank_job_duration_seconds",
			Help:    "Duration in seconds of background job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		interestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_interest_accrued_total",
			Help: "Total interest credited to savings accounts, by pass kind.",
		}, []string{"kind"}),
		accountsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_interest_accounts_total",
			Help: "Savings accounts credited with interest, by pass kind.",
		}, []string{"kind"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_transfers_total",
			Help: "Transfers attempted, by outcome.",
		}, []string{"status"}),
		creditPayments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_credit_payments_total",
			Help: "Monthly credit payments recorded, by outcome.",
		}, []string{"status"}),
	}
	registerer.MustRegister(
		m.jobRuns,
		m.jobFailures,
		m.jobDuration,
		m.interestTotal,
		m.accountsPaid,
		m.transfers,
		m.creditPayments,
	)
	return m
}
