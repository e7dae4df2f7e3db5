package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drive_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drive_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	DeletedNodes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drive_tree_deleted_nodes_total",
			Help: "Number of tree nodes removed by delete operations",
		},
	)

	BlobCleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drive_blob_cleanup_failures_total",
			Help: "Blob removals that failed while their metadata was deleted",
		},
	)

	OrphanSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drive_orphan_sweeps_total",
			Help: "Orphaned blob removal attempts made by the sweeper, by result",
		},
		[]string{"result"},
	)
)
