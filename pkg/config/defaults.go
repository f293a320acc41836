package config

import "time"

// Default values for configuration fields.
const (
	// Mailbox defaults
	DefaultQuotaBytes         int64 = 1 << 30
	DefaultAverageMessageSize int64 = 25 * 1024
	DefaultWarningThreshold         = 0.85
	DefaultCriticalThreshold        = 0.95

	// Cleanup defaults
	DefaultSchedule         = "@every 6h"
	DefaultRunTimeout       = 30 * time.Minute
	DefaultBatchSize        = 100
	DefaultEmergencyFactor  = 0.5
	DefaultAggressiveFactor = 0.7
	DefaultParallelism      = 1
	DefaultFetchRetries     = 3
	DefaultFetchBackoff     = 200 * time.Millisecond
	DefaultPacingStrategy   = "fixed"
	DefaultPacingInterval   = 100 * time.Millisecond

	// Policy defaults
	DefaultWatchDebounce = 250 * time.Millisecond

	// Categorizer defaults
	DefaultCategory = "player_notifications"

	// Store defaults
	DefaultStoreBackend      = "sqlite"
	DefaultStoreSQLitePath   = "data/mail.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultIMAPMailbox       = "INBOX"
	DefaultIMAPTimeout       = 30 * time.Second

	// Archive defaults
	DefaultArchiveBackend   = "file"
	DefaultArchiveDirectory = "data/archive"
	DefaultS3Prefix         = "mail-archive"

	// Audit defaults
	DefaultAuditBackend      = "sqlite"
	DefaultAuditSQLitePath   = "data/audit.db"
	DefaultAuditMaxOpenConns = 4

	// Notify defaults
	DefaultWebhookTimeout    = 10 * time.Second
	DefaultWebhookMaxRetries = 2

	// Admin defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 10 * time.Minute
	DefaultShutdownTimeout = 30 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "mailsweep"
	DefaultTracingRatio     = 1.0
	DefaultServiceName      = "mailsweep"
)

// ApplyDefaults sets defaults for any fields that have zero values.
// It is idempotent.
func ApplyDefaults(cfg *Config) {
	// Mailbox
	if cfg.Mailbox.QuotaBytes == 0 {
		cfg.Mailbox.QuotaBytes = DefaultQuotaBytes
	}
	if cfg.Mailbox.AverageMessageSize == 0 {
		cfg.Mailbox.AverageMessageSize = DefaultAverageMessageSize
	}
	if cfg.Mailbox.WarningThreshold == 0 {
		cfg.Mailbox.WarningThreshold = DefaultWarningThreshold
	}
	if cfg.Mailbox.CriticalThreshold == 0 {
		cfg.Mailbox.CriticalThreshold = DefaultCriticalThreshold
	}

	// Cleanup
	if cfg.Cleanup.Schedule == "" {
		cfg.Cleanup.Schedule = DefaultSchedule
	}
	if cfg.Cleanup.RunTimeout == 0 {
		cfg.Cleanup.RunTimeout = DefaultRunTimeout
	}
	if cfg.Cleanup.BatchSize == 0 {
		cfg.Cleanup.BatchSize = DefaultBatchSize
	}
	if cfg.Cleanup.EmergencyFactor == 0 {
		cfg.Cleanup.EmergencyFactor = DefaultEmergencyFactor
	}
	if cfg.Cleanup.AggressiveFactor == 0 {
		cfg.Cleanup.AggressiveFactor = DefaultAggressiveFactor
	}
	if cfg.Cleanup.Parallelism == 0 {
		cfg.Cleanup.Parallelism = DefaultParallelism
	}
	if cfg.Cleanup.FetchRetries == 0 {
		cfg.Cleanup.FetchRetries = DefaultFetchRetries
	}
	if cfg.Cleanup.FetchBackoff == 0 {
		cfg.Cleanup.FetchBackoff = DefaultFetchBackoff
	}
	if cfg.Cleanup.Pacing.Strategy == "" {
		cfg.Cleanup.Pacing.Strategy = DefaultPacingStrategy
	}
	if cfg.Cleanup.Pacing.Interval == 0 {
		cfg.Cleanup.Pacing.Interval = DefaultPacingInterval
	}

	// Policies
	if cfg.Policies.WatchDebounce == 0 {
		cfg.Policies.WatchDebounce = DefaultWatchDebounce
	}

	// Categorizer
	if cfg.Categorizer.DefaultCategory == "" {
		cfg.Categorizer.DefaultCategory = DefaultCategory
	}

	// Store
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = DefaultStoreSQLitePath
	}
	if cfg.Store.SQLite.BusyTimeout == 0 {
		cfg.Store.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Store.IMAP.Mailbox == "" {
		cfg.Store.IMAP.Mailbox = DefaultIMAPMailbox
	}
	if cfg.Store.IMAP.Timeout == 0 {
		cfg.Store.IMAP.Timeout = DefaultIMAPTimeout
	}

	// Archive
	if cfg.Archive.Backend == "" {
		cfg.Archive.Backend = DefaultArchiveBackend
	}
	if cfg.Archive.File.Directory == "" {
		cfg.Archive.File.Directory = DefaultArchiveDirectory
	}
	if cfg.Archive.S3.Prefix == "" {
		cfg.Archive.S3.Prefix = DefaultS3Prefix
	}

	// Audit
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.MaxOpenConns == 0 {
		cfg.Audit.SQLite.MaxOpenConns = DefaultAuditMaxOpenConns
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Notify
	if cfg.Notify.Webhook.Timeout == 0 {
		cfg.Notify.Webhook.Timeout = DefaultWebhookTimeout
	}
	if cfg.Notify.Webhook.MaxRetries == 0 {
		cfg.Notify.Webhook.MaxRetries = DefaultWebhookMaxRetries
	}

	// Admin
	if cfg.Admin.ListenAddress == "" {
		cfg.Admin.ListenAddress = DefaultListenAddress
	}
	if cfg.Admin.ReadTimeout == 0 {
		cfg.Admin.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Admin.WriteTimeout == 0 {
		cfg.Admin.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Admin.ShutdownTimeout == 0 {
		cfg.Admin.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultServiceName
	}
}

// Default returns a configuration with every default applied. It is used
// when no configuration file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
