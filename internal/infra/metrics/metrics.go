// Package metrics exposes Prometheus collectors for the money paths and the
// HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sprynt"

// Metrics owns its registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	ledgerOps       *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	rateLimitDenied *prometheus.CounterVec
	generationCalls *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"method", "route"},
		),
		ledgerOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "credits",
				Name:      "ledger_operations_total",
				Help:      "Credit ledger mutations by operation and result.",
			},
			[]string{"op", "result"},
		),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "webhook_events_total",
				Help:      "Payment webhook deliveries by event kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		rateLimitDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "rejections_total",
				Help:      "Requests rejected by the rate limiter.",
			},
			[]string{"route"},
		),
		generationCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ai",
				Name:      "generation_calls_total",
				Help:      "Calls to the generation provider by feature and result.",
			},
			[]string{"feature", "result"},
		),
	}

	m.Registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.ledgerOps,
		m.webhookEvents,
		m.rateLimitDenied,
		m.generationCalls,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) LedgerOp(op, result string) {
	m.ledgerOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) WebhookEvent(kind, outcome string) {
	m.webhookEvents.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RateLimited(route string) {
	m.rateLimitDenied.WithLabelValues(route).Inc()
}

func (m *Metrics) GenerationCall(feature, result string) {
	m.generationCalls.WithLabelValues(feature, result).Inc()
}
