package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for envswitch operations.
type Metrics struct {
	config MetricsConfig

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	configurations    prometheus.Gauge
	importOutcomes    *prometheus.CounterVec
	backups           *prometheus.CounterVec

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

		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of store operations by outcome",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of store operations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		configurations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "configurations",
				Help:      "Number of stored configurations after the last operation",
			},
		),
		importOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_outcomes_total",
				Help:      "Per-alias import outcomes (imported, conflict, error)",
			},
			[]string{"outcome"},
		),
		backups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backups_total",
				Help:      "Backup files created and removed",
			},
			[]string{"action"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.operations,
		m.operationDuration,
		m.configurations,
		m.importOutcomes,
		m.backups,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// RecordOperation records one completed operation.
func (m *Metrics) RecordOperation(operation string, duration time.Duration, err error) {
	if m == nil || m.operations == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetConfigurations records the current number of stored configurations.
func (m *Metrics) SetConfigurations(n int) {
	if m == nil || m.configurations == nil {
		return
	}
	m.configurations.Set(float64(n))
}

// RecordImportOutcomes adds per-alias import results.
func (m *Metrics) RecordImportOutcomes(imported, conflicts, errors int) {
	if m == nil || m.importOutcomes == nil {
		return
	}
	m.importOutcomes.WithLabelValues("imported").Add(float64(imported))
	m.importOutcomes.WithLabelValues("conflict").Add(float64(conflicts))
	m.importOutcomes.WithLabelValues("error").Add(float64(errors))
}

// RecordBackup counts created or removed backup files.
func (m *Metrics) RecordBackup(action string, n int) {
	if m == nil || m.backups == nil || n <= 0 {
		return
	}
	m.backups.WithLabelValues(action).Add(float64(n))
}

// WriteFile writes the registry in Prometheus text format to path
// atomically. It is a no-op when metrics are disabled.
func (m *Metrics) WriteFile(path string) error {
	if m == nil || m.registry == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
