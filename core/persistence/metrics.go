package persistence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts Adapter operations by outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "n1ql_adapter_operations_total",
			Help: "Total number of adapter operations",
		},
		[]string{"connection", "collection", "operation", "status"},
	)

	// OperationDuration tracks how long Adapter operations take.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "n1ql_adapter_operation_duration_seconds",
			Help:    "Duration of adapter operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"connection", "collection", "operation"},
	)

	// UpdateRetriesTotal counts optimistic update attempts that met a version
	// conflict.
	UpdateRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "n1ql_adapter_update_retries_total",
			Help: "Total number of optimistic update retries",
		},
		[]string{"connection", "collection"},
	)

	// KeyCollisionsTotal counts generated keys that were already taken.
	KeyCollisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "n1ql_adapter_key_collisions_total",
			Help: "Total number of generated key collisions",
		},
		[]string{"connection", "collection"},
	)
)
