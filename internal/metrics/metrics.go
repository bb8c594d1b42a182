// Package metrics provides Prometheus metrics for the BOM service
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bom_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bom_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Tree metrics
	TreeMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bom_tree_mutations_total",
			Help: "Total number of tree mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	TreeNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bom_tree_nodes",
			Help:    "Number of nodes in trees after a mutation or import",
			Buckets: []float64{10, 25, 50, 100, 200, 500, 1000},
		},
	)

	ImportedRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bom_imported_rows_total",
			Help: "Total number of rows read from imported files",
		},
		[]string{"format"},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bom_exports_total",
			Help: "Total number of exports by format and archive result",
		},
		[]string{"format", "archived"},
	)

	SummaryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bom_summary_cache_total",
			Help: "Summary cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)
)

// Mutation 结果标签
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// RecordMutation records one tree mutation
func RecordMutation(op, result string) {
	TreeMutationsTotal.WithLabelValues(op, result).Inc()
}

// RecordCache records a summary cache hit or miss
func RecordCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	SummaryCacheTotal.WithLabelValues(kind, result).Inc()
}
