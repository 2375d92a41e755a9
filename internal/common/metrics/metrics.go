// Package metrics holds the Prometheus collectors of the XS2A service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	scaTransitions *prometheus.CounterVec
	spiCalls       *prometheus.CounterVec
	spiDuration    *prometheus.HistogramVec
	events         *prometheus.CounterVec
}

// New registers the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		scaTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xs2a",
			Name:      "sca_transitions_total",
			Help:      "SCA status transitions by source and target status.",
		}, []string{"from", "to"}),
		spiCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xs2a",
			Name:      "spi_calls_total",
			Help:      "Calls to the ASPSP backend by operation and outcome.",
		}, []string{"operation", "outcome"}),
		spiDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xs2a",
			Name:      "spi_call_duration_seconds",
			Help:      "Duration of calls to the ASPSP backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xs2a",
			Name:      "events_published_total",
			Help:      "Domain events handed to the broker by type and outcome.",
		}, []string{"type", "outcome"}),
	}
}

// ScaTransition counts one status change.
func (m *Metrics) ScaTransition(from, to string) {
	if m == nil {
		return
	}
	m.scaTransitions.WithLabelValues(from, to).Inc()
}

// SpiCall records a backend round trip.
func (m *Metrics) SpiCall(operation string, failed bool, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "error"
	}
	m.spiCalls.WithLabelValues(operation, outcome).Inc()
	m.spiDuration.WithLabelValues(operation).Observe(took.Seconds())
}

// EventPublished counts a publish attempt.
func (m *Metrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
