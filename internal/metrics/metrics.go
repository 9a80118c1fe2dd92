// Package metrics exposes Signalbox's Prometheus collectors. A nil *Metrics
// is valid and records nothing, so components can take it as an optional
// dependency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signalbox"

// Metrics holds every collector registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	stageLatency    *prometheus.HistogramVec
	degradations    *prometheus.CounterVec
	providerHealth  *prometheus.GaugeVec
	providerFailure *prometheus.CounterVec
	failovers       prometheus.Counter
	enrichDropped   prometheus.Counter
	enrichQueued    prometheus.Counter
	substitutions   prometheus.Counter
}

// New builds a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Handled requests by route and outcome.",
		}, []string{"route", "outcome"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of each orchestration stage.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"stage"}),
		degradations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degradations_total",
			Help:      "Degradation flags raised while handling requests.",
		}, []string{"flag"}),
		providerHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_provider_state",
			Help:      "Storage provider health: 0 healthy, 1 recovering, 2 unhealthy.",
		}, []string{"provider"}),
		providerFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_provider_failures_total",
			Help:      "Operation or probe failures per storage provider.",
		}, []string{"provider"}),
		failovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_failovers_total",
			Help:      "Operations retried on a lower-priority provider.",
		}),
		enrichDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_dropped_total",
			Help:      "Enrichment requests dropped because the queue was full.",
		}),
		enrichQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_queued_total",
			Help:      "Enrichment requests accepted onto the queue.",
		}),
		substitutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uncited_claims_replaced_total",
			Help:      "Factual claims replaced because they lacked a valid citation.",
		}),
	}
	reg.MustRegister(
		m.requests, m.stageLatency, m.degradations,
		m.providerHealth, m.providerFailure, m.failovers,
		m.enrichDropped, m.enrichQueued, m.substitutions,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(route, outcome string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "none"
	}
	m.requests.WithLabelValues(route, outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) Degraded(flag string) {
	if m == nil {
		return
	}
	m.degradations.WithLabelValues(flag).Inc()
}

func (m *Metrics) ProviderState(provider string, state int) {
	if m == nil {
		return
	}
	m.providerHealth.WithLabelValues(provider).Set(float64(state))
}

func (m *Metrics) ProviderFailure(provider string) {
	if m == nil {
		return
	}
	m.providerFailure.WithLabelValues(provider).Inc()
}

func (m *Metrics) Failover() {
	if m == nil {
		return
	}
	m.failovers.Inc()
}

func (m *Metrics) EnrichmentQueued() {
	if m == nil {
		return
	}
	m.enrichQueued.Inc()
}

func (m *Metrics) EnrichmentDropped() {
	if m == nil {
		return
	}
	m.enrichDropped.Inc()
}

func (m *Metrics) ClaimsReplaced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.substitutions.Add(float64(n))
}
