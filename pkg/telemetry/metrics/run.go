package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics tracks cleanup runs.
//
// Metrics:
//   - cleanup_runs_total: Completed runs by mode, trigger and outcome
//   - cleanup_messages_deleted_total: Deleted messages by category
//   - cleanup_messages_archived_total: Archived messages
//   - cleanup_bytes_freed_total: Bytes freed by deletions
//   - cleanup_errors_total: Per-message and per-category errors by kind
//   - cleanup_run_duration_seconds: Run duration histogram
//   - cleanup_runs_dropped_total: Triggers dropped while a run was active
type RunMetrics struct {
	runsTotal     *prometheus.CounterVec
	deletedTotal  *prometheus.CounterVec
	archivedTotal prometheus.Counter
	freedBytes    prometheus.Counter
	errorsTotal   *prometheus.CounterVec
	duration      prometheus.Histogram
	droppedTotal  *prometheus.CounterVec
}

// NewRunMetrics creates and registers run metrics.
func NewRunMetrics(namespace string, registry prometheus.Registerer) *RunMetrics {
	rm := &RunMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_runs_total",
				Help:      "Total number of cleanup runs",
			},
			[]string{"mode", "trigger", "outcome"},
		),

		deletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_messages_deleted_total",
				Help:      "Total number of messages deleted by cleanup",
			},
			[]string{"category"},
		),

		archivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_messages_archived_total",
				Help:      "Total number of messages archived before deletion",
			},
		),

		freedBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_bytes_freed_total",
				Help:      "Total bytes freed by cleanup",
			},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_errors_total",
				Help:      "Total number of cleanup errors",
			},
			[]string{"kind"},
		),

		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cleanup_run_duration_seconds",
				Help:      "Duration of cleanup runs in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
			},
		),

		droppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_runs_dropped_total",
				Help:      "Total number of cleanup triggers dropped because a run was active",
			},
			[]string{"trigger"},
		),
	}

	registry.MustRegister(
		rm.runsTotal,
		rm.deletedTotal,
		rm.archivedTotal,
		rm.freedBytes,
		rm.errorsTotal,
		rm.duration,
		rm.droppedTotal,
	)

	return rm
}
