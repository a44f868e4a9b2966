// Package benchmetrics exposes Prometheus metrics for cmd/dynseqbench:
// per-operation latency, build duration, and the façades' own
// GetMemoryUsageInfo readings, so a benchmark run can be scraped instead
// of only printed.
package benchmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds every Prometheus collector the harness records into.
type Metrics struct {
	opsTotal        *prometheus.CounterVec
	opDuration      *prometheus.HistogramVec
	buildDuration   *prometheus.HistogramVec
	structureBytes  *prometheus.GaugeVec
	structureSize   *prometheus.GaugeVec
	rebuildsTotal   *prometheus.CounterVec
}

// New creates and registers the harness's metrics.
func New() *Metrics {
	return &Metrics{
		opsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dynseq_operations_total",
				Help: "Total number of façade operations issued by the harness",
			},
			[]string{"facade", "operation", "status"},
		),
		opDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dynseq_operation_duration_seconds",
				Help:    "Façade operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"facade", "operation"},
		),
		buildDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dynseq_build_duration_seconds",
				Help:    "Bulk-build duration in seconds, by façade",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"facade"},
		),
		structureBytes: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dynseq_structure_size_bytes",
				Help: "SizeInBytes() of the façade under benchmark",
			},
			[]string{"facade"},
		),
		structureSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dynseq_structure_size_elements",
				Help: "Size() of the façade under benchmark",
			},
			[]string{"facade"},
		),
		rebuildsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dynseq_rebuilds_total",
				Help: "Total number of whole-structure rebuilds triggered by rebalancing",
			},
			[]string{"facade"},
		),
	}
}

// RecordOp records a single façade operation's outcome and duration.
func (m *Metrics) RecordOp(facade, operation string, success bool, duration time.Duration) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.opsTotal.WithLabelValues(facade, operation, status).Inc()
	m.opDuration.WithLabelValues(facade, operation).Observe(duration.Seconds())
}

// RecordBuild records a bulk-build's duration.
func (m *Metrics) RecordBuild(facade string, duration time.Duration) {
	m.buildDuration.WithLabelValues(facade).Observe(duration.Seconds())
}

// UpdateStructureStats mirrors the façade's own Size/SizeInBytes into
// gauges so a running benchmark's memory footprint can be scraped.
func (m *Metrics) UpdateStructureStats(facade string, size int, sizeBytes uint64) {
	m.structureSize.WithLabelValues(facade).Set(float64(size))
	m.structureBytes.WithLabelValues(facade).Set(float64(sizeBytes))
}

// RecordRebuild records a whole-structure rebuild (e.g. pkg/rangetree's
// capacity-triggered rebuild).
func (m *Metrics) RecordRebuild(facade string) {
	m.rebuildsTotal.WithLabelValues(facade).Inc()
}

// Timer returns a stop function that records elapsed time into RecordOp
// when called, for defer-friendly instrumentation.
func (m *Metrics) Timer(facade, operation string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		m.RecordOp(facade, operation, success, time.Since(start))
	}
}
