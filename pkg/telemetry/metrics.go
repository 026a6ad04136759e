package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for envforge.
type Metrics struct {
	config MetricsConfig

	// Lifecycle metrics
	transitionsTotal *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec

	// Persistence metrics
	stateSaves      *prometheus.CounterVec
	stateLoads      *prometheus.CounterVec
	lockWaitSeconds prometheus.Histogram
	lockTimeouts    prometheus.Counter

	// Failure metrics
	failuresByKind    *prometheus.CounterVec
	traceFilesWritten prometheus.Counter

	// System metrics
	environmentsByPhase *prometheus.GaugeVec

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

		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of lifecycle phase transitions",
			},
			[]string{"from_phase", "to_phase"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Duration of lifecycle command execution in seconds",
				Buckets:   buckets,
			},
			[]string{"command", "status"},
		),

		stateSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_saves_total",
				Help:      "Total number of environment state saves",
			},
			[]string{"status"},
		),
		stateLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_loads_total",
				Help:      "Total number of environment state loads",
			},
			[]string{"status"},
		),
		lockWaitSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lock_wait_seconds",
				Help:      "Time spent waiting for the state file lock in seconds",
				Buckets:   buckets,
			},
		),
		lockTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lock_timeouts_total",
				Help:      "Total number of state file lock acquisition timeouts",
			},
		),

		failuresByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_by_kind_total",
				Help:      "Total number of command failures by error kind",
			},
			[]string{"kind"},
		),
		traceFilesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trace_files_written_total",
				Help:      "Total number of failure trace files written",
			},
		),

		environmentsByPhase: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "environments",
				Help:      "Current number of environments by phase",
			},
			[]string{"phase"},
		),
	}

	registry.MustRegister(
		m.transitionsTotal,
		m.commandDuration,
		m.stateSaves,
		m.stateLoads,
		m.lockWaitSeconds,
		m.lockTimeouts,
		m.failuresByKind,
		m.traceFilesWritten,
		m.environmentsByPhase,
	)

	return m, nil
}

// RecordTransition increments the counter for a phase transition.
func (m *Metrics) RecordTransition(fromPhase, toPhase string) {
	if m.transitionsTotal == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(fromPhase, toPhase).Inc()
}

// RecordCommand records a completed lifecycle command with its status and duration.
func (m *Metrics) RecordCommand(command, status string, duration time.Duration) {
	if m.commandDuration == nil {
		return
	}
	m.commandDuration.WithLabelValues(command, status).Observe(duration.Seconds())
}

// RecordStateSave records an environment state save.
func (m *Metrics) RecordStateSave(status string) {
	if m.stateSaves == nil {
		return
	}
	m.stateSaves.WithLabelValues(status).Inc()
}

// RecordStateLoad records an environment state load.
func (m *Metrics) RecordStateLoad(status string) {
	if m.stateLoads == nil {
		return
	}
	m.stateLoads.WithLabelValues(status).Inc()
}

// RecordLockWait records time spent waiting for the state file lock.
func (m *Metrics) RecordLockWait(duration time.Duration) {
	if m.lockWaitSeconds == nil {
		return
	}
	m.lockWaitSeconds.Observe(duration.Seconds())
}

// RecordLockTimeout records a lock acquisition timeout.
func (m *Metrics) RecordLockTimeout() {
	if m.lockTimeouts == nil {
		return
	}
	m.lockTimeouts.Inc()
}

// RecordFailure records a command failure by error kind.
func (m *Metrics) RecordFailure(kind string) {
	if m.failuresByKind == nil {
		return
	}
	m.failuresByKind.WithLabelValues(kind).Inc()
}

// RecordTraceWritten records a written failure trace file.
func (m *Metrics) RecordTraceWritten() {
	if m.traceFilesWritten == nil {
		return
	}
	m.traceFilesWritten.Inc()
}

// SetEnvironmentCount sets the current count of environments in a phase.
func (m *Metrics) SetEnvironmentCount(phase string, count float64) {
	if m.environmentsByPhase == nil {
		return
	}
	m.environmentsByPhase.WithLabelValues(phase).Set(count)
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

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
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
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
