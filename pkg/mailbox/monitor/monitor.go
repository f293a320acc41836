// Package monitor computes mailbox storage statistics from a MailStore.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/mailsweep/pkg/mailbox"
)

const (
	// DefaultQuotaBytes is the mailbox quota (1 GiB).
	DefaultQuotaBytes int64 = 1024 * 1024 * 1024

	// DefaultAverageMessageSize is the per-message estimate used when the
	// store cannot report exact usage (0.025 MB).
	DefaultAverageMessageSize int64 = 25 * 1024

	// DefaultWarningThreshold is the utilization fraction at which cleanup
	// is recommended.
	DefaultWarningThreshold = 0.85
)

// Config contains configuration for the storage monitor.
type Config struct {
	// QuotaBytes is the hard mailbox quota.
	QuotaBytes int64

	// AverageMessageSize is used to estimate usage as count × average.
	AverageMessageSize int64

	// WarningThreshold is the utilization fraction (0-1) at or above which
	// RecommendedCleanup is set.
	WarningThreshold float64

	// PreferExact uses the store's exact usage when it implements
	// mailbox.SizeReporter.
	PreferExact bool
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		QuotaBytes:         DefaultQuotaBytes,
		AverageMessageSize: DefaultAverageMessageSize,
		WarningThreshold:   DefaultWarningThreshold,
		PreferExact:        true,
	}
}

// Monitor reports storage utilization. Reads are side-effect free.
type Monitor struct {
	store  mailbox.MailStore
	config Config
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Monitor. Zero config fields take their defaults.
func New(store mailbox.MailStore, config Config) *Monitor {
	def := DefaultConfig()
	if config.QuotaBytes <= 0 {
		config.QuotaBytes = def.QuotaBytes
	}
	if config.AverageMessageSize <= 0 {
		config.AverageMessageSize = def.AverageMessageSize
	}
	if config.WarningThreshold <= 0 {
		config.WarningThreshold = def.WarningThreshold
	}

	return &Monitor{
		store:  store,
		config: config,
		now:    time.Now,
		logger: slog.Default().With("component", "mailbox.monitor"),
	}
}

// Config returns the monitor configuration.
func (m *Monitor) Config() Config {
	return m.config
}

// GetStats returns a fresh storage snapshot. It fails with
// mailbox.ErrStoreUnavailable when the message count cannot be read.
func (m *Monitor) GetStats(ctx context.Context) (mailbox.StorageStats, error) {
	count, err := m.store.Count(ctx)
	if err != nil {
		return mailbox.StorageStats{}, storeUnavailable("count", err)
	}

	stats := mailbox.StorageStats{
		TotalMessages:      count,
		QuotaBytes:         m.config.QuotaBytes,
		EstimatedUsedBytes: count * m.config.AverageMessageSize,
		CollectedAt:        m.now().UTC(),
	}

	if sr, ok := m.store.(mailbox.SizeReporter); ok && m.config.PreferExact {
		used, err := sr.TotalSize(ctx)
		if err != nil {
			m.logger.Warn("exact size unavailable, using estimate", "error", err)
		} else {
			stats.EstimatedUsedBytes = used
			stats.Exact = true
		}
	}

	if count > 0 {
		oldest, err := m.store.OldestTimestamp(ctx)
		if err != nil {
			m.logger.Warn("oldest message lookup failed", "error", err)
		} else {
			stats.OldestMessage = oldest.UTC()
		}
	}

	stats.UtilizationPercent = Utilization(stats.EstimatedUsedBytes, stats.QuotaBytes)
	stats.RecommendedCleanup = stats.UtilizationPercent >= m.config.WarningThreshold*100

	return stats, nil
}

// Utilization returns used/quota as a percentage clamped to [0, 100].
func Utilization(used, quota int64) float64 {
	if quota <= 0 {
		return 100
	}
	pct := float64(used) / float64(quota) * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

func storeUnavailable(op string, err error) error {
	if errors.Is(err, mailbox.ErrStoreUnavailable) {
		return fmt.Errorf("storage stats: %w", err)
	}
	return fmt.Errorf("storage stats: %w", mailbox.NewStoreError("unknown", op, err))
}
