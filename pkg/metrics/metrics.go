// Package metrics exposes Prometheus instrumentation for the temp-storage
// engine: RAM pool occupancy, migration activity, cleaner runs, and
// persistent-temp commit/dispose counts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RAMInUse is the current number of bytes accounted for by the RAM tracker.
	RAMInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_ram_in_use_bytes",
			Help: "Bytes currently tracked as RAM-backed by the temp-storage pool.",
		},
	)

	RAMPoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_ram_pool_size_bytes",
			Help: "Configured soft cap on RAM-backed temp storage.",
		},
	)

	TrackedEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_ram_tracked_entries",
			Help: "Number of migratable entries currently enqueued in the RAM tracker.",
		},
	)

	// MigrationsTotal counts RAM-to-disk migrations by outcome and trigger.
	MigrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_migrations_total",
			Help: "Total number of RAM-to-disk migrations by trigger and outcome.",
		},
		[]string{"trigger", "outcome"},
	)

	MigrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "support_migration_duration_seconds",
			Help:    "Time taken to migrate a temp container from RAM to disk.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CleanerRunsTotal counts cleaner sweep invocations.
	CleanerRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_cleaner_runs_total",
			Help: "Total number of migration-cleaner sweeps started.",
		},
	)

	// PersistCommitsTotal counts checkpoint-boundary commits in the persistent-temp manager.
	PersistCommitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_persist_commits_total",
			Help: "Total number of commit-id advances in the persistent temp manager.",
		},
	)

	PersistDisposalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_persist_disposals_total",
			Help: "Total number of persistent temp files actually unlinked, by outcome.",
		},
		[]string{"outcome"},
	)

	PersistPendingDisposals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_persist_pending_disposals",
			Help: "Number of disposables awaiting the next checkpoint drain.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RAMInUse,
		RAMPoolSize,
		TrackedEntries,
		MigrationsTotal,
		MigrationDuration,
		CleanerRunsTotal,
		PersistCommitsTotal,
		PersistDisposalsTotal,
		PersistPendingDisposals,
	)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
