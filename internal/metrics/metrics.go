// Package metrics exposes Prometheus collectors for conversation turns,
// agent nodes, model calls and progress ingestion.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "goal_architect"

// Metrics holds the application's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	turns        *prometheus.CounterVec
	nodeRuns     *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	modelLatency *prometheus.HistogramVec
	trackerLogs  *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"outcome"}),
		nodeRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_runs_total",
			Help:      "Agent node executions by stage and outcome.",
		}, []string{"stage", "outcome"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "Stage changes by source and destination.",
		}, []string{"from", "to"}),
		modelLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Latency of model invocations by stage.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"stage"}),
		trackerLogs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracker_logs_total",
			Help:      "Ingested tracker logs by strategy and whether the aggregate was written.",
		}, []string{"strategy", "applied"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Turn counts a finished turn.
func (m *Metrics) Turn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

// NodeRun counts one node execution.
func (m *Metrics) NodeRun(stage, outcome string) {
	if m == nil {
		return
	}
	m.nodeRuns.WithLabelValues(stage, outcome).Inc()
}

// Transition counts a stage change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ModelCall records the latency of a model invocation.
func (m *Metrics) ModelCall(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.modelLatency.WithLabelValues(stage).Observe(d.Seconds())
}

// TrackerLog counts an ingested log entry.
func (m *Metrics) TrackerLog(strategy string, applied bool) {
	if m == nil {
		return
	}
	label := "false"
	if applied {
		label = "true"
	}
	m.trackerLogs.WithLabelValues(strategy, label).Inc()
}
