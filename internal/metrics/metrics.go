// Package metrics provides Prometheus metrics for sandboxd: connection
// throughput, compile/execution outcomes, and heuristic behavior.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds all Prometheus collectors registered by the sandbox.
type Metrics struct {
	// Connection-level metrics
	SessionsTotal        prometheus.Counter
	SessionsInFlight     prometheus.Gauge
	SessionDuration       prometheus.Histogram

	// Screening
	SecurityBlocksTotal prometheus.Counter

	// Compilation
	CompilationsTotal *prometheus.CounterVec

	// Execution verdicts, one counter per status tag
	ExecutionResultsTotal *prometheus.CounterVec

	// Heuristic behavior
	InputPromptsTotal prometheus.Counter

	// System
	BuildInfo *prometheus.GaugeVec
}

// Get returns the singleton Metrics instance, registering collectors with
// the default Prometheus registry on first call.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sandboxd",
		Subsystem: "session",
		Name:      "total",
		Help:      "Total number of accepted connections.",
	})

	m.SessionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sandboxd",
		Subsystem: "session",
		Name:      "in_flight",
		Help:      "Number of sessions currently being handled.",
	})

	m.SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sandboxd",
		Subsystem: "session",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of a session from accept to terminal message.",
		Buckets:   []float64{.1, .5, 1, 2, 5, 10, 20, 30},
	})

	m.SecurityBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sandboxd",
		Subsystem: "screener",
		Name:      "blocks_total",
		Help:      "Total number of submissions rejected by the deny-list screener.",
	})

	m.CompilationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sandboxd",
		Subsystem: "compiler",
		Name:      "total",
		Help:      "Total compile attempts, labeled by outcome.",
	}, []string{"outcome"})

	m.ExecutionResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sandboxd",
		Subsystem: "execution",
		Name:      "results_total",
		Help:      "Total EXECUTION_RESULT messages emitted, labeled by status.",
	}, []string{"status"})

	m.InputPromptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sandboxd",
		Subsystem: "heuristic",
		Name:      "input_prompts_total",
		Help:      "Total INPUT_REQUIRED messages emitted by the input-request heuristic.",
	})

	m.BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sandboxd",
		Subsystem: "build",
		Name:      "info",
		Help:      "Build metadata, value is always 1.",
	}, []string{"version"})

	return m
}
