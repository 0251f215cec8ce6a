package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "raingauge"

// Metrics HTTP 与异常数据相关的 Prometheus 指标
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec   // labels: method, path, status
	HTTPRequestDuration *prometheus.HistogramVec // labels: method, path

	StorageRetries  *prometheus.CounterVec // labels: op
	StorageFailures *prometheus.CounterVec // labels: op

	ExceptionsResolved prometheus.Counter
	ResolveConflicts   prometheus.Counter
	ExportedRows       prometheus.Histogram
	StatisticsDegraded *prometheus.CounterVec // labels: field
}

// NewMetrics 创建指标并注册到默认 Registry
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting 创建注册到独立 Registry 的指标，避免重复注册
func NewMetricsForTesting() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
		StorageRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_retries_total",
			Help:      "Storage operations retried after a failed attempt.",
		}, []string{"op"}),
		StorageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_failures_total",
			Help:      "Storage operations that failed after exhausting retries.",
		}, []string{"op"}),
		ExceptionsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exceptions_resolved_total",
			Help:      "Pending exceptions transitioned to resolved.",
		}),
		ResolveConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_conflicts_total",
			Help:      "Resolutions rejected because the record was resolved concurrently.",
		}),
		ExportedRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_rows",
			Help:      "Rows written per spreadsheet export.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		StatisticsDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statistics_degraded_total",
			Help:      "Statistics fields replaced by defaults after a failed aggregate query.",
		}, []string{"field"}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.StorageRetries,
		m.StorageFailures,
		m.ExceptionsResolved,
		m.ResolveConflicts,
		m.ExportedRows,
		m.StatisticsDegraded,
	)

	return m
}
