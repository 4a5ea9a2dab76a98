// Package metrics registers the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitesync_store_mutations_total",
			Help: "Entity store mutations by store and operation",
		},
		[]string{"store", "op"},
	)

	StorePersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitesync_store_persist_failures_total",
			Help: "Failed snapshot writes to durable local storage",
		},
		[]string{"store"},
	)

	RecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitesync_recompute_duration_seconds",
			Help:    "Duration of a full reconcile and recompute pass",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
		},
	)

	FeedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitesync_feed_events_total",
			Help: "Change-feed events dispatched by table and kind",
		},
		[]string{"table", "kind"},
	)

	FeedReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitesync_feed_reconnects_total",
			Help: "Transport reconnects observed by the change-feed multiplexer",
		},
	)

	HydrationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitesync_hydration_duration_seconds",
			Help:    "Bulk hydration duration by path and outcome",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"path", "outcome"},
	)

	SyncFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitesync_failures_total",
			Help: "Recoverable sync failures by kind",
		},
		[]string{"kind"},
	)

	UseCaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitesync_use_case_duration_seconds",
			Help:    "Service use case duration by name and outcome",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"use_case", "outcome"},
	)
)

// ObserveRecompute records a recompute pass.
func ObserveRecompute(d time.Duration) {
	RecomputeDuration.Observe(d.Seconds())
}

// ObserveHydration records a bulk hydration run.
func ObserveHydration(path, outcome string, d time.Duration) {
	HydrationDuration.WithLabelValues(path, outcome).Observe(d.Seconds())
}

// ObserveUseCase records a service use case.
func ObserveUseCase(name string, success bool, d time.Duration) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	UseCaseDuration.WithLabelValues(name, outcome).Observe(d.Seconds())
}
