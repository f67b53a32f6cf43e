// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/validation"
)

const namespace = "stockledger"

// Metrics holds every collector registered by the service.
type Metrics struct {
	validations        *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
	ledgerEntries      *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	outboxBacklog   prometheus.Gauge
	outboxPublished prometheus.Counter
	outboxMovedDLQ  prometheus.Counter
	discrepancies   prometheus.Gauge

	registry *prometheus.Registry
}

var _ validation.Metrics = (*Metrics)(nil)

// New registers the collectors on reg. A nil reg uses a fresh registry
// including the Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	f := promauto.With(reg)

	return &Metrics{
		validations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Document validations by document type and outcome",
		}, []string{"type", "outcome"}),
		validationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Document validation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		ledgerEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_entries_total",
			Help:      "Ledger entries appended by document type",
		}, []string{"type"}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served",
		}),

		outboxBacklog: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_backlog",
			Help:      "Pending outbox messages",
		}),
		outboxPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox messages published",
		}),
		outboxMovedDLQ: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dead_lettered_total",
			Help:      "Outbox messages moved to the dead letter queue",
		}),
		discrepancies: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stock_discrepancies",
			Help:      "Products whose stock differs from the ledger sum at the last reconciliation",
		}),

		registry: reg,
	}
}

// ObserveValidation implements validation.Metrics.
func (m *Metrics) ObserveValidation(docType documents.Type, outcome string, elapsed time.Duration) {
	t := string(docType)
	if t == "" {
		t = "unknown"
	}
	m.validations.WithLabelValues(t, outcome).Inc()
	m.validationDuration.WithLabelValues(t).Observe(elapsed.Seconds())
}

// AddLedgerEntries implements validation.Metrics.
func (m *Metrics) AddLedgerEntries(docType documents.Type, n int) {
	m.ledgerEntries.WithLabelValues(string(docType)).Add(float64(n))
}

// RequestStarted increments the in-flight gauge.
func (m *Metrics) RequestStarted() {
	m.httpInFlight.Inc()
}

// RequestFinished records a served request. path is the route template.
func (m *Metrics) RequestFinished(method, path string, status int, elapsed time.Duration) {
	m.httpInFlight.Dec()
	if path == "" {
		path = "unknown"
	}
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, path, code).Inc()
	m.httpDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}

// SetOutboxBacklog records the pending outbox size.
func (m *Metrics) SetOutboxBacklog(n int64) {
	m.outboxBacklog.Set(float64(n))
}

// AddOutboxPublished counts relayed messages.
func (m *Metrics) AddOutboxPublished(n int) {
	m.outboxPublished.Add(float64(n))
}

// AddOutboxDeadLettered counts messages moved to the DLQ.
func (m *Metrics) AddOutboxDeadLettered(n int64) {
	m.outboxMovedDLQ.Add(float64(n))
}

// SetDiscrepancies records the reconciliation result.
func (m *Metrics) SetDiscrepancies(n int) {
	m.discrepancies.Set(float64(n))
}

// Register adds extra collectors, e.g. the pool collector.
func (m *Metrics) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
