// Package metrics exposes cleanup and mailbox metrics to Prometheus.
//
// The Collector implements retention.Recorder, so wiring it into the
// scheduler is enough to populate every metric:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	sched, err := retention.NewScheduler(retention.SchedulerDeps{
//		...
//		Recorder: collector,
//	}, schedCfg)
//	mux.Handle("/metrics", collector.Handler())
//
// # Metrics
//
// All names carry the configured namespace prefix (default "mailsweep").
//
//   - cleanup_runs_total{mode,trigger,outcome}
//   - cleanup_messages_deleted_total{category}
//   - cleanup_messages_archived_total
//   - cleanup_bytes_freed_total
//   - cleanup_errors_total{kind}
//   - cleanup_run_duration_seconds
//   - cleanup_runs_dropped_total{trigger}
//   - mailbox_utilization_percent, mailbox_messages, mailbox_used_bytes,
//     mailbox_quota_bytes
//   - escalation_mode
//
// The category label is capped at 100 distinct values; further categories
// are counted under "_other".
package metrics
