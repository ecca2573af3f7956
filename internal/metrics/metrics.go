// Package metrics exposes Prometheus collectors for the ingestion pipeline.
//
// Collectors live on a private registry so tests and multiple pipelines in one
// process do not collide. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation outcomes.
const (
	OutcomeCompleted  = "completed"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
	OutcomeAborted    = "aborted"
)

// Metrics groups the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	Generations   *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	BytesFetched  prometheus.Counter
	Omissions     *prometheus.CounterVec
	Messages      *prometheus.CounterVec
}

// New registers fresh collectors, including Go runtime and process
// collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moonrider_generations_total",
			Help: "Ingestion generations by final outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moonrider_stage_duration_seconds",
			Help:    "Time spent per pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"stage"}),
		BytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moonrider_fetched_bytes_total",
			Help: "Archive bytes downloaded for current generations.",
		}),
		Omissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moonrider_difficulty_omissions_total",
			Help: "Declared difficulties left out of results.",
		}, []string{"reason"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moonrider_messages_total",
			Help: "Outbound pipeline messages by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.Generations,
		m.StageDuration,
		m.BytesFetched,
		m.Omissions,
		m.Messages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOutcome counts one finished generation.
func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long stage took.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// AddBytes counts downloaded archive bytes.
func (m *Metrics) AddBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesFetched.Add(float64(n))
}

// ObserveOmission counts one omitted difficulty.
func (m *Metrics) ObserveOmission(reason string) {
	if m == nil {
		return
	}
	m.Omissions.WithLabelValues(reason).Inc()
}

// ObserveMessage counts one delivered outbound message.
func (m *Metrics) ObserveMessage(kind string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(kind).Inc()
}
