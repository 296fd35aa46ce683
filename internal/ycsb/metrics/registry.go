package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cbycsb/internal/ycsb"
)

// Registry encapsulates all metrics and provides a clean interface
// for recording metrics without global state
type Registry struct {
	registry *prometheus.Registry

	// DB operation metrics
	operationTotal    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	updateConflicts   prometheus.Counter

	// Workload metrics
	phaseOperations *prometheus.GaugeVec
	phaseDuration   *prometheus.GaugeVec
	phaseThroughput *prometheus.GaugeVec

	// System health metrics
	systemInfo      *prometheus.GaugeVec
	startTime       prometheus.Gauge
	connectionsOpen prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		operationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ycsb_db_operation_total",
				Help: "Total number of DB operations",
			},
			[]string{"operation", "status"}, // status: ok, error, not_found, cas_mismatch
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ycsb_db_operation_duration_seconds",
				Help:    "Time spent on DB operations",
				Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"operation"},
		),

		updateConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ycsb_db_update_cas_conflicts_total",
				Help: "Total number of updates rejected because of a CAS mismatch",
			},
		),

		phaseOperations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ycsb_workload_phase_operations",
				Help: "Operations performed by the last completed workload phase",
			},
			[]string{"phase"}, // phase: load, run
		),

		phaseDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ycsb_workload_phase_duration_seconds",
				Help: "Wall clock duration of the last completed workload phase",
			},
			[]string{"phase"},
		),

		phaseThroughput: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ycsb_workload_phase_throughput_ops",
				Help: "Operations per second of the last completed workload phase",
			},
			[]string{"phase"},
		),

		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ycsb_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"version", "build_time"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ycsb_start_time_seconds",
				Help: "Unix timestamp when the application started",
			},
		),

		connectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ycsb_connections_open",
				Help: "Number of open DB connections",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.operationTotal,
		r.operationDuration,
		r.updateConflicts,
		r.phaseOperations,
		r.phaseDuration,
		r.phaseThroughput,
		r.systemInfo,
		r.startTime,
		r.connectionsOpen,
	)

	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Gatherer exposes the underlying registry for scraping in-process.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordOperation records a DB operation and its outcome
func (r *Registry) RecordOperation(operation string, duration time.Duration, status ycsb.Status, err error) {
	label := statusLabel(status, err)

	r.operationTotal.WithLabelValues(operation, label).Inc()
	r.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if label == "cas_mismatch" {
		r.updateConflicts.Inc()
	}
}

// RecordPhase records the outcome of a workload phase
func (r *Registry) RecordPhase(phase string, operations int64, duration time.Duration) {
	r.phaseOperations.WithLabelValues(phase).Set(float64(operations))
	r.phaseDuration.WithLabelValues(phase).Set(duration.Seconds())
	if duration > 0 {
		r.phaseThroughput.WithLabelValues(phase).Set(float64(operations) / duration.Seconds())
	}
}

// ConnectionOpened increments the open connections gauge
func (r *Registry) ConnectionOpened() {
	r.connectionsOpen.Inc()
}

// ConnectionClosed decrements the open connections gauge
func (r *Registry) ConnectionClosed() {
	r.connectionsOpen.Dec()
}

// SetSystemInfo sets system information metrics
func (r *Registry) SetSystemInfo(version, buildTime string) {
	r.systemInfo.WithLabelValues(version, buildTime).Set(1)
}

func statusLabel(status ycsb.Status, err error) string {
	switch {
	case errors.Is(err, ycsb.ErrCasMismatch):
		return "cas_mismatch"
	case errors.Is(err, ycsb.ErrNotFound):
		return "not_found"
	case err != nil:
		return "error"
	default:
		return status.String()
	}
}
