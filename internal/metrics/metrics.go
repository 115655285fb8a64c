// Package metrics provides Prometheus metrics for agentforge pipeline runs.
// Exports generation, build, probe, agent lifecycle and pipeline metrics.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds all Prometheus metric collectors for agentforge
type Metrics struct {
	// Generation Metrics
	GenerationRequestsTotal *prometheus.CounterVec
	GenerationDuration      *prometheus.HistogramVec
	GenerationTokensUsed    *prometheus.CounterVec

	// Build Metrics
	BuildsTotal   *prometheus.CounterVec
	BuildDuration prometheus.Histogram

	// Probe Metrics
	ProbesTotal   *prometheus.CounterVec
	ProbeDuration *prometheus.HistogramVec

	// Agent Metrics
	AgentTransitionsTotal *prometheus.CounterVec
	BackendServersRunning prometheus.Gauge

	// Pipeline Metrics
	PipelineRunsTotal   *prometheus.CounterVec
	PipelineRunDuration prometheus.Histogram
}

// Get returns the singleton Metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

// newMetrics creates and registers all Prometheus metrics
func newMetrics() *Metrics {
	m := &Metrics{}

	m.GenerationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentforge",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Total number of generation calls by model and status",
		},
		[]string{"model", "status"},
	)

	m.GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentforge",
			Subsystem: "generation",
			Name:      "request_duration_seconds",
			Help:      "Generation call duration in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"model"},
	)

	m.GenerationTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentforge",
			Subsystem: "generation",
			Name:      "tokens_total",
			Help:      "Tokens consumed by generation calls",
		},
		[]string{"model", "type"},
	)

	m.BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentforge",
			Subsystem: "build",
			Name:      "runs_total",
			Help:      "Build command runs by result",
		},
		[]string{"result"},
	)

	m.BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "agentforge",
			Subsystem: "build",
			Name:      "duration_seconds",
			Help:      "Build command duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	m.ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentforge",
			Subsystem: "probe",
			Name:      "requests_total",
			Help:      "HTTP probes by target kind and result",
		},
		[]string{"target", "result"},
	)

	m.ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentforge",
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "HTTP probe duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"target"},
	)

	m.AgentTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentforge",
			Subsystem: "agent",
			Name:      "transitions_total",
			Help:      "Agent lifecycle transitions by position and states",
		},
		[]string{"position", "from", "to"},
	)

	m.BackendServersRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agentforge",
			Subsystem: "agent",
			Name:      "backend_servers_running",
			Help:      "Generated backend subprocesses currently running",
		},
	)

	m.PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentforge",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by final status",
		},
		[]string{"status"},
	)

	m.PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "agentforge",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 8),
		},
	)

	return m
}

// Helper methods for recording metrics

// RecordGeneration records one generation call
func (m *Metrics) RecordGeneration(model string, success bool, duration time.Duration, promptTokens, completionTokens int) {
	m.GenerationRequestsTotal.WithLabelValues(model, resultLabel(success)).Inc()
	m.GenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	m.GenerationTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	m.GenerationTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordBuild records one build command run
func (m *Metrics) RecordBuild(success bool, duration time.Duration) {
	m.BuildsTotal.WithLabelValues(resultLabel(success)).Inc()
	m.BuildDuration.Observe(duration.Seconds())
}

// RecordProbe records one HTTP probe. A zero status means a transport error.
func (m *Metrics) RecordProbe(target string, status int, duration time.Duration) {
	result := "error"
	if status > 0 {
		result = strconv.Itoa(status)
	}
	m.ProbesTotal.WithLabelValues(target, result).Inc()
	m.ProbeDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// RecordTransition records one agent state change
func (m *Metrics) RecordTransition(position, from, to string) {
	m.AgentTransitionsTotal.WithLabelValues(position, from, to).Inc()
}

// RecordPipelineRun records a finished pipeline run
func (m *Metrics) RecordPipelineRun(status string, duration time.Duration) {
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	m.PipelineRunDuration.Observe(duration.Seconds())
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
