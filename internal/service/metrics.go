package service

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pair outcomes used as metric labels.
const (
	OutcomeInserted = "inserted"
	OutcomeUpdated  = "updated"
	OutcomeSkipped  = "skipped"
	OutcomeNoData   = "no_data"
	OutcomeErrored  = "errored"
)

// Metrics exposes engine counters to Prometheus. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	apiRequests    *prometheus.CounterVec
	apiDuration    *prometheus.HistogramVec
	pairs          *prometheus.CounterVec
	rowsWritten    *prometheus.CounterVec
	parents        prometheus.Counter
	batches        prometheus.Counter
	runs           *prometheus.CounterVec
	runInProgress  prometheus.Gauge
	lastRunSeconds prometheus.Gauge
}

// NewMetrics registers the engine metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchsync_api_requests_total",
			Help: "Remote API requests by endpoint and HTTP status (0 = transport error)",
		}, []string{"endpoint", "code"}),
		apiDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matchsync_api_request_duration_seconds",
			Help:    "Remote API request latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"endpoint"}),
		pairs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchsync_pairs_total",
			Help: "Parent/entity pairs handled, by outcome",
		}, []string{"entity", "outcome"}),
		rowsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchsync_rows_written_total",
			Help: "Rows upserted into target tables",
		}, []string{"entity"}),
		parents: f.NewCounter(prometheus.CounterOpts{
			Name: "matchsync_parents_processed_total",
			Help: "Parent records processed",
		}),
		batches: f.NewCounter(prometheus.CounterOpts{
			Name: "matchsync_batches_total",
			Help: "Batches completed",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchsync_runs_total",
			Help: "Finished runs by kind and status",
		}, []string{"kind", "status"}),
		runInProgress: f.NewGauge(prometheus.GaugeOpts{
			Name: "matchsync_run_in_progress",
			Help: "1 while a run is active",
		}),
		lastRunSeconds: f.NewGauge(prometheus.GaugeOpts{
			Name: "matchsync_last_run_duration_seconds",
			Help: "Wall time of the most recent run",
		}),
	}
}

// ObserveRequest records one remote API round trip.
func (m *Metrics) ObserveRequest(endpoint string, statusCode int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	m.apiDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) pair(entity, outcome string) {
	if m == nil {
		return
	}
	m.pairs.WithLabelValues(entity, outcome).Inc()
}

func (m *Metrics) rows(entity string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsWritten.WithLabelValues(entity).Add(float64(n))
}

func (m *Metrics) parent() {
	if m == nil {
		return
	}
	m.parents.Inc()
}

func (m *Metrics) batch() {
	if m == nil {
		return
	}
	m.batches.Inc()
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.runInProgress.Set(1)
}

func (m *Metrics) runFinished(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runInProgress.Set(0)
	m.runs.WithLabelValues(kind, status).Inc()
	m.lastRunSeconds.Set(elapsed.Seconds())
}
