package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the veridag engine.
type Metrics struct {
	config MetricsConfig

	// Compilation metrics
	compilesTotal *prometheus.CounterVec
	graphNodes    *prometheus.GaugeVec
	graphEdges    prometheus.Gauge

	// Run metrics
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge

	// Node metrics
	nodesExecuted *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec
	handlerErrors *prometheus.CounterVec

	// Verification metrics
	anomaliesDetected *prometheus.CounterVec
	decisionsTotal    *prometheus.CounterVec
	lastRiskScore     prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		compilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compiles_total",
				Help:      "Total number of graph compilations",
			},
			[]string{"status"},
		),
		graphNodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_nodes",
				Help:      "Node count of the most recently compiled graph",
			},
			[]string{"type"},
		),
		graphEdges: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_edges",
				Help:      "Edge count of the most recently compiled graph",
			},
		),

		runsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of runs started",
			},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of run execution in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active runs",
			},
		),

		nodesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_executed_total",
				Help:      "Total number of nodes executed",
			},
			[]string{"type", "status"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Duration of node handler execution in seconds",
				Buckets:   buckets,
			},
			[]string{"type"},
		),
		handlerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_errors_total",
				Help:      "Total number of handler errors",
			},
			[]string{"type"},
		),

		anomaliesDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "anomalies_detected_total",
				Help:      "Total number of anomalies detected during verification",
			},
			[]string{"severity"},
		),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of verification decisions by action",
			},
			[]string{"action"},
		),
		lastRiskScore: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_risk_score",
				Help:      "Risk score of the most recent verification",
			},
		),
	}

	registry.MustRegister(
		m.compilesTotal,
		m.graphNodes,
		m.graphEdges,
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.activeRuns,
		m.nodesExecuted,
		m.nodeDuration,
		m.handlerErrors,
		m.anomaliesDetected,
		m.decisionsTotal,
		m.lastRiskScore,
	)

	return m, nil
}

// Compilation Metrics

// RecordCompile records a compilation attempt with its outcome.
func (m *Metrics) RecordCompile(status string) {
	if m.compilesTotal == nil {
		return
	}
	m.compilesTotal.WithLabelValues(status).Inc()
}

// SetGraphSize records the node and edge counts of a compiled graph.
func (m *Metrics) SetGraphSize(nodesByType map[string]int, edges int) {
	if m.graphNodes == nil {
		return
	}
	m.graphNodes.Reset()
	for t, n := range nodesByType {
		m.graphNodes.WithLabelValues(t).Set(float64(n))
	}
	m.graphEdges.Set(float64(edges))
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted() {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// Node Metrics

// RecordNodeExecution records the execution of one node.
func (m *Metrics) RecordNodeExecution(nodeType, status string, duration time.Duration) {
	if m.nodesExecuted == nil {
		return
	}
	m.nodesExecuted.WithLabelValues(nodeType, status).Inc()
	m.nodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// RecordHandlerError records a handler failure.
func (m *Metrics) RecordHandlerError(nodeType string) {
	if m.handlerErrors == nil {
		return
	}
	m.handlerErrors.WithLabelValues(nodeType).Inc()
}

// Verification Metrics

// RecordAnomaly records a detected anomaly by severity.
func (m *Metrics) RecordAnomaly(severity string) {
	if m.anomaliesDetected == nil {
		return
	}
	m.anomaliesDetected.WithLabelValues(severity).Inc()
}

// RecordDecision records a verification decision and its risk score.
func (m *Metrics) RecordDecision(action string, riskScore float64) {
	if m.decisionsTotal == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(action).Inc()
	m.lastRiskScore.Set(riskScore)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
