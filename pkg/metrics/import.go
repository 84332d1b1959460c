package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ImportMetrics records catalog import runs per shop.
type ImportMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	rows     *prometheus.CounterVec
}

// NewImportMetrics registers the import metrics on the provided registerer.
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	if reg == nil {
		return &ImportMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_import_duration_seconds",
		Help:    "Duration of catalog imports in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"shop"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_import_success",
		Help: "Catalog imports that finished without row errors.",
	}, []string{"shop"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_import_failure",
		Help: "Catalog imports that failed or had row errors.",
	}, []string{"shop"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_import_rows",
		Help: "Catalog rows processed by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, success, failure, rows)
	return &ImportMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		rows:     rows,
	}
}

// ObserveDuration records the duration of an import for the shop.
func (m *ImportMetrics) ObserveDuration(shop string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(shop)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the shop.
func (m *ImportMetrics) IncSuccess(shop string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(shop)).Inc()
}

// IncFailure increments the failure counter for the shop.
func (m *ImportMetrics) IncFailure(shop string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(shop)).Inc()
}

// AddRows counts processed rows by outcome (created, updated, failed, stale).
func (m *ImportMetrics) AddRows(outcome string, n int) {
	if m == nil || m.rows == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
