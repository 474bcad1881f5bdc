// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package metrics provides Prometheus instrumentation for the locale
// preference subsystem: storage adapter latency and errors, cache
// efficiency, sync repairs, and maintenance runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Storage adapter metrics
	StorageOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localekit_storage_op_duration_seconds",
			Help:    "Duration of storage adapter operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	StorageOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localekit_storage_op_errors_total",
			Help: "Total number of failed storage adapter operations",
		},
		[]string{"backend", "operation"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "localekit_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "localekit_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "localekit_cache_invalidations_total",
			Help: "Total number of whole-cache invalidations",
		},
	)

	// Consistency metrics
	SyncChecks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "localekit_sync_checks_total",
			Help: "Total number of cross-backend consistency checks",
		},
	)

	SyncRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localekit_sync_repairs_total",
			Help: "Total number of cross-backend repairs, by direction",
		},
		[]string{"direction"}, // "durable_to_transport", "transport_to_durable"
	)

	// Maintenance metrics
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localekit_maintenance_runs_total",
			Help: "Total number of maintenance runs, by outcome",
		},
		[]string{"outcome"}, // "success", "partial", "failure"
	)

	HistoryRecordsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localekit_history_records_removed_total",
			Help: "Total detection records removed, by reason",
		},
		[]string{"reason"}, // "expired", "duplicate", "capacity"
	)

	// Event bus metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localekit_events_published_total",
			Help: "Total number of events published on the bus",
		},
		[]string{"type"},
	)

	ListenerFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "localekit_event_listener_failures_total",
			Help: "Total number of listener delivery failures (caught, not propagated)",
		},
	)
)

// ObserveStorageOp records duration and, when failed, the error counter
// for one adapter operation. Misses are not failures; callers pass
// failed=false for them so the error rate reflects backend health only.
func ObserveStorageOp(backend, operation string, started time.Time, failed bool) {
	StorageOpDuration.WithLabelValues(backend, operation).Observe(time.Since(started).Seconds())
	if failed {
		StorageOpErrors.WithLabelValues(backend, operation).Inc()
	}
}
