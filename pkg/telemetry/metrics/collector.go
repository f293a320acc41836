package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/mailsweep/pkg/config"
	"mercator-hq/mailsweep/pkg/mailbox"
)

// Run outcomes used as the outcome label of cleanup_runs_total.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeAborted = "aborted"
	OutcomeSkipped = "skipped"
)

// overflowCategory replaces category labels past the cardinality limit.
const overflowCategory = "_other"

// Collector records cleanup and storage metrics into a Prometheus registry.
// It implements retention.Recorder and is safe for concurrent use.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	runs    *RunMetrics
	storage *StorageMetrics

	categories *CardinalityLimiter
}

// NewCollector creates a collector. A nil registry gets a fresh one with
// the Go runtime and process collectors registered.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:     cfg,
		registry:   registry,
		runs:       NewRunMetrics(cfg.Namespace, registry),
		storage:    NewStorageMetrics(cfg.Namespace, registry),
		categories: NewCardinalityLimiter(100),
	}
}

// Registry returns the registry metrics are recorded into.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordStats records the latest storage statistics and mode.
func (c *Collector) RecordStats(stats mailbox.StorageStats, mode mailbox.Mode) {
	c.storage.utilization.Set(stats.UtilizationPercent)
	c.storage.messages.Set(float64(stats.TotalMessages))
	c.storage.usedBytes.Set(float64(stats.EstimatedUsedBytes))
	c.storage.quotaBytes.Set(float64(stats.QuotaBytes))
	c.storage.mode.Set(float64(mode))
}

// RecordRun records the outcome of a cleanup run.
func (c *Collector) RecordRun(result mailbox.CleanupResult) {
	c.runs.runsTotal.WithLabelValues(result.Mode.String(), string(result.Trigger), Outcome(result)).Inc()
	if result.Skipped {
		return
	}

	for category, n := range result.PerCategory {
		if n == 0 {
			continue
		}
		label := category
		if !c.categories.Allow(category) {
			label = overflowCategory
		}
		c.runs.deletedTotal.WithLabelValues(label).Add(float64(n))
	}
	c.runs.archivedTotal.Add(float64(result.ArchivedCount))
	c.runs.freedBytes.Add(float64(result.StorageFreedBytes))

	for _, msg := range result.Errors {
		c.runs.errorsTotal.WithLabelValues(mailbox.ErrorKind(msg)).Inc()
	}
	if d := result.Duration(); d > 0 {
		c.runs.duration.Observe(d.Seconds())
	}
}

// RecordDropped records a trigger dropped because a run was in progress.
func (c *Collector) RecordDropped(trigger mailbox.Trigger) {
	c.runs.droppedTotal.WithLabelValues(string(trigger)).Inc()
}

// Outcome classifies a run result.
func Outcome(result mailbox.CleanupResult) string {
	switch {
	case result.Skipped:
		return OutcomeSkipped
	case result.Aborted:
		return OutcomeAborted
	case len(result.Errors) > 0:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}

// CardinalityLimiter caps the number of distinct values of a label.
type CardinalityLimiter struct {
	max     int
	current map[string]struct{}
	mu      sync.Mutex
}

// NewCardinalityLimiter creates a limiter allowing up to max values.
func NewCardinalityLimiter(max int) *CardinalityLimiter {
	return &CardinalityLimiter{
		max:     max,
		current: make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or fits under the limit.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.current[value]; ok {
		return true
	}
	if len(cl.current) >= cl.max {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of tracked values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.current)
}
