// Package monitoring exposes Prometheus metrics and a health endpoint for
// the dev server.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modserve"

// Transform request outcomes.
const (
	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds the server's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transformRequests *prometheus.CounterVec
	transformDuration *prometheus.HistogramVec
	staleDiscards     prometheus.Counter
	hmrUpdates        prometheus.Counter
	invalidations     prometheus.Counter
	hmrClients        prometheus.Gauge
	prebundleDuration prometheus.Histogram
}

// NewMetrics creates the collectors on a fresh registry that also carries
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		transformRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_requests_total",
			Help:      "Module transform requests by outcome.",
		}, []string{"result"}),

		transformDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      "Time spent resolving, loading and transforming a module.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"kind"}),

		staleDiscards: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_stale_discards_total",
			Help:      "Transform results not cached because the module was invalidated meanwhile.",
		}),

		hmrUpdates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hmr",
			Name:      "updates_total",
			Help:      "Update messages broadcast to browsers.",
		}),

		invalidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hmr",
			Name:      "invalidated_modules_total",
			Help:      "Modules whose cached transform was cleared by a file change.",
		}),

		hmrClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hmr",
			Name:      "connected_clients",
			Help:      "Browsers connected to the HMR transport.",
		}),

		prebundleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prebundle_duration_seconds",
			Help:      "Time spent scanning and pre-bundling dependencies.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
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

// ObserveTransform records one transform request. kind is js, css or asset.
func (m *Metrics) ObserveTransform(result, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.transformRequests.WithLabelValues(result).Inc()
	if result == ResultMiss {
		m.transformDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// StaleDiscard records a transform result that was not cached.
func (m *Metrics) StaleDiscard() {
	if m == nil {
		return
	}
	m.staleDiscards.Inc()
}

// HMRUpdate records one broadcast that invalidated touched modules.
func (m *Metrics) HMRUpdate(touched int) {
	if m == nil {
		return
	}
	m.hmrUpdates.Inc()
	m.invalidations.Add(float64(touched))
}

// ClientsChanged implements websocket.ClientObserver.
func (m *Metrics) ClientsChanged(count int) {
	if m == nil {
		return
	}
	m.hmrClients.Set(float64(count))
}

// ObservePrebundle records one dependency pre-bundling run.
func (m *Metrics) ObservePrebundle(d time.Duration) {
	if m == nil {
		return
	}
	m.prebundleDuration.Observe(d.Seconds())
}
