// Package metrics exposes Prometheus collectors for service calls and
// media resolution. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aitask"

// Metrics holds the collectors and the registry they are registered with.
type Metrics struct {
	registry         *prometheus.Registry
	serviceCalls     *prometheus.CounterVec
	serviceDuration  *prometheus.HistogramVec
	mediaResolutions *prometheus.CounterVec
	entityTasks      *prometheus.CounterVec
}

// New creates collectors on a fresh registry, including Go runtime metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		serviceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_calls_total",
			Help:      "Service calls handled, by domain, service and outcome.",
		}, []string{"domain", "service", "outcome"}),
		serviceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "service_call_duration_seconds",
			Help:      "Time spent handling a service call.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"domain", "service"}),
		mediaResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_resolutions_total",
			Help:      "Media source resolutions, by source domain and outcome.",
		}, []string{"source", "outcome"}),
		entityTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_tasks_total",
			Help:      "Generation tasks dispatched to handling entities.",
		}, []string{"entity_id", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.serviceCalls,
		m.serviceDuration,
		m.mediaResolutions,
		m.entityTasks,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveServiceCall records one finished service call
func (m *Metrics) ObserveServiceCall(domain, service string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.serviceCalls.WithLabelValues(domain, service, outcome(err)).Inc()
	m.serviceDuration.WithLabelValues(domain, service).Observe(elapsed.Seconds())
}

// ObserveResolution records one media resolution
func (m *Metrics) ObserveResolution(source string, err error) {
	if m == nil {
		return
	}
	m.mediaResolutions.WithLabelValues(source, outcome(err)).Inc()
}

// ObserveEntityTask records one task handed to an entity
func (m *Metrics) ObserveEntityTask(entityID string, err error) {
	if m == nil {
		return
	}
	m.entityTasks.WithLabelValues(entityID, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
