package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the tutoring runtime.
type Metrics struct {
	registry *prometheus.Registry

	turnsTotal      *prometheus.CounterVec
	turnDuration    *prometheus.HistogramVec
	generationCalls *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	slidesBuilt     prometheus.Counter
	suspensions     *prometheus.CounterVec
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meemo_turns_total",
			Help: "Completed learning turns by final stage and status.",
		}, []string{"stage", "status"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meemo_turn_duration_seconds",
			Help:    "Duration of one learning turn.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		generationCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meemo_generation_calls_total",
			Help: "Generation port calls by kind and status.",
		}, []string{"kind", "status"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meemo_tokens_total",
			Help: "Tokens consumed by the generation port.",
		}, []string{"type"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meemo_sessions_active",
			Help: "Number of live learning sessions.",
		}),
		slidesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meemo_slides_built_total",
			Help: "Slides built across all sessions.",
		}),
		suspensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meemo_suspensions_total",
			Help: "Turns suspended awaiting user input, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.turnsTotal, m.turnDuration, m.generationCalls,
		m.tokensTotal, m.sessionsActive, m.slidesBuilt, m.suspensions)
	return m
}

// RecordTurn records a completed turn.
func (m *Metrics) RecordTurn(stage, status string, duration time.Duration) {
	m.turnsTotal.WithLabelValues(stage, status).Inc()
	m.turnDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordGeneration records a generation port call.
func (m *Metrics) RecordGeneration(kind, status string, inputTokens, outputTokens int) {
	m.generationCalls.WithLabelValues(kind, status).Inc()
	m.tokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	m.tokensTotal.WithLabelValues("output").Add(float64(outputTokens))
}

// RecordSuspension records a turn that paused awaiting user input.
func (m *Metrics) RecordSuspension(kind string) {
	m.suspensions.WithLabelValues(kind).Inc()
}

// RecordSlide records a built slide.
func (m *Metrics) RecordSlide() { m.slidesBuilt.Inc() }

// SetActiveSessions sets the live session gauge.
func (m *Metrics) SetActiveSessions(n int) { m.sessionsActive.Set(float64(n)) }

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
