package config

import "time"

// Config is the root configuration structure for mailsweep.
type Config struct {
	// Mailbox contains quota and escalation threshold settings.
	Mailbox MailboxConfig `yaml:"mailbox"`

	// Cleanup contains scheduling and cleanup engine settings.
	Cleanup CleanupConfig `yaml:"cleanup"`

	// Policies contains the retention policy source.
	Policies PoliciesConfig `yaml:"policies"`

	// Categorizer contains the message categorization rules.
	Categorizer CategorizerConfig `yaml:"categorizer"`

	// Store selects and configures the mail store backend.
	Store StoreConfig `yaml:"store"`

	// Archive selects and configures where messages are archived before
	// deletion.
	Archive ArchiveConfig `yaml:"archive"`

	// Audit selects and configures the cleanup audit log.
	Audit AuditConfig `yaml:"audit"`

	// Notify configures storage alerts.
	Notify NotifyConfig `yaml:"notify"`

	// Admin configures the admin HTTP server.
	Admin AdminConfig `yaml:"admin"`

	// Telemetry contains configuration for logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// MailboxConfig describes the mailbox being kept under quota.
type MailboxConfig struct {
	// QuotaBytes is the hard mailbox quota in bytes.
	// Default: 1073741824 (1 GiB)
	QuotaBytes int64 `yaml:"quota_bytes"`

	// AverageMessageSize is the size used to estimate usage when the store
	// cannot report exact usage.
	// Default: 25600 (25 KiB)
	AverageMessageSize int64 `yaml:"average_message_size"`

	// WarningThreshold is the utilization fraction that starts Warning mode.
	// Default: 0.85
	WarningThreshold float64 `yaml:"warning_threshold"`

	// CriticalThreshold is the utilization fraction that starts Critical mode.
	// Default: 0.95
	CriticalThreshold float64 `yaml:"critical_threshold"`

	// EstimateOnly ignores the store's exact usage and always estimates
	// from the message count.
	// Default: false
	EstimateOnly bool `yaml:"estimate_only"`
}

// CleanupConfig contains scheduler and engine settings.
type CleanupConfig struct {
	// Schedule is the cron expression or descriptor for periodic checks.
	// Default: "@every 6h"
	Schedule string `yaml:"schedule"`

	// RunOnStart performs a storage check right after the daemon starts.
	// Default: false
	RunOnStart bool `yaml:"run_on_start"`

	// RunTimeout bounds a single cleanup run. Zero means no limit.
	// Default: 30m
	RunTimeout time.Duration `yaml:"run_timeout"`

	// BatchSize is the page size used when listing candidates.
	// Default: 100
	BatchSize int `yaml:"batch_size"`

	// EmergencyFactor scales retention in emergency (critical) runs.
	// Default: 0.5
	EmergencyFactor float64 `yaml:"emergency_factor"`

	// AggressiveFactor scales retention in aggressive critical runs.
	// Default: 0.7
	AggressiveFactor float64 `yaml:"aggressive_factor"`

	// Parallelism is the number of categories processed concurrently.
	// Default: 1
	Parallelism int `yaml:"parallelism"`

	// FetchRetries is the number of retries for a failed page fetch.
	// Default: 3
	FetchRetries int `yaml:"fetch_retries"`

	// FetchBackoff is the initial delay between fetch retries.
	// Default: 200ms
	FetchBackoff time.Duration `yaml:"fetch_backoff"`

	// Pacing spaces out batches within a category.
	Pacing PacingConfig `yaml:"pacing"`
}

// PacingConfig controls the delay between batches.
type PacingConfig struct {
	// Strategy is "fixed" or "exponential".
	// Default: "fixed"
	Strategy string `yaml:"strategy"`

	// Interval is the fixed delay, or the initial exponential delay.
	// Default: 100ms
	Interval time.Duration `yaml:"interval"`

	// MaxInterval caps exponential pacing. Zero means 10 × Interval.
	MaxInterval time.Duration `yaml:"max_interval"`
}

// PoliciesConfig configures where retention policies come from.
type PoliciesConfig struct {
	// File is an optional policy file (.yaml, .yml, .json or .toml).
	// When empty, the built-in policies plus Entries are used.
	File string `yaml:"file"`

	// Watch reloads File when it changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce collapses bursts of file events.
	// Default: 250ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// Entries are added to (or replace) the built-in policies.
	Entries []PolicyEntry `yaml:"entries"`
}

// PolicyEntry is one inline retention policy.
type PolicyEntry struct {
	Category            string `yaml:"category"`
	RetentionDays       int    `yaml:"retention_days"`
	Priority            string `yaml:"priority"`
	ArchiveBeforeDelete bool   `yaml:"archive_before_delete"`
	Description         string `yaml:"description"`
}

// CategorizerConfig configures message categorization.
type CategorizerConfig struct {
	// DefaultCategory is assigned when no rule matches.
	// Default: "player_notifications"
	DefaultCategory string `yaml:"default_category"`

	// Rules are evaluated in order before the built-in rules.
	Rules []RuleEntry `yaml:"rules"`

	// DisableBuiltinRules drops the built-in rules.
	// Default: false
	DisableBuiltinRules bool `yaml:"disable_builtin_rules"`
}

// RuleEntry is one categorization rule.
type RuleEntry struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Field    string   `yaml:"field"`
	All      []string `yaml:"all"`
	Any      []string `yaml:"any"`
	Pattern  string   `yaml:"pattern"`
}

// StoreConfig selects the mail store backend.
type StoreConfig struct {
	// Backend is the store implementation.
	// Options: "memory", "sqlite", "imap"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite backend.
	SQLite StoreSQLiteConfig `yaml:"sqlite"`

	// IMAP configures the IMAP backend.
	IMAP IMAPConfig `yaml:"imap"`
}

// StoreSQLiteConfig configures the SQLite mail store.
type StoreSQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/mail.db"
	Path string `yaml:"path"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// IMAPConfig configures the IMAP mail store.
type IMAPConfig struct {
	// Address is the server "host:port".
	Address string `yaml:"address"`

	// Username and Password are the login credentials. Prefer setting the
	// password through MAILSWEEP_STORE_IMAP_PASSWORD.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Mailbox is the folder to manage.
	// Default: "INBOX"
	Mailbox string `yaml:"mailbox"`

	// TLS connects with implicit TLS.
	// Default: false
	TLS bool `yaml:"tls"`

	// InsecureSkipVerify disables certificate verification.
	// Default: false
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// Timeout bounds dialing, the server greeting and each command.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// ArchiveConfig selects where messages are archived.
type ArchiveConfig struct {
	// Backend is the archive sink.
	// Options: "none", "file", "s3"
	// Default: "file"
	Backend string `yaml:"backend"`

	// File configures the local directory sink.
	File FileArchiveConfig `yaml:"file"`

	// S3 configures the S3 sink.
	S3 S3ArchiveConfig `yaml:"s3"`
}

// FileArchiveConfig configures the directory archive.
type FileArchiveConfig struct {
	// Directory is the archive root.
	// Default: "data/archive"
	Directory string `yaml:"directory"`

	// Pretty indents archived JSON.
	// Default: false
	Pretty bool `yaml:"pretty"`
}

// S3ArchiveConfig configures the S3 archive.
type S3ArchiveConfig struct {
	// Bucket is the destination bucket. Required for the s3 backend.
	Bucket string `yaml:"bucket"`

	// Prefix is prepended to every object key.
	// Default: "mail-archive"
	Prefix string `yaml:"prefix"`

	// Region overrides the region from the AWS environment.
	Region string `yaml:"region"`

	// Endpoint points the client at an S3-compatible service.
	Endpoint string `yaml:"endpoint"`

	// UsePathStyle enables path-style addressing for S3-compatible services.
	// Default: false
	UsePathStyle bool `yaml:"use_path_style"`
}

// AuditConfig selects the audit log backend.
type AuditConfig struct {
	// Backend is the audit log implementation.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite audit log.
	SQLite AuditSQLiteConfig `yaml:"sqlite"`
}

// AuditSQLiteConfig configures the SQLite audit log.
type AuditSQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// NotifyConfig configures where storage alerts are sent. Alerts are always
// logged; webhook and telegram are added when configured.
type NotifyConfig struct {
	Webhook  WebhookConfig  `yaml:"webhook"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	// URL enables the webhook notifier when set.
	URL string `yaml:"url"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds a single request.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries after a failed delivery.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`
}

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	// Token enables the Telegram notifier when set. Prefer
	// MAILSWEEP_NOTIFY_TELEGRAM_TOKEN.
	Token string `yaml:"token"`

	// ChatIDs are the chats that receive alerts.
	ChatIDs []int64 `yaml:"chat_ids"`
}

// AdminConfig configures the admin HTTP server.
type AdminConfig struct {
	// Enabled starts the admin server with the daemon.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response. Manual
	// cleanups are synchronous, so this should exceed typical run times.
	// Default: 10m
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// IsEnabled reports whether the admin server should run.
func (c AdminConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII redacts email addresses and tokens in log attributes.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`

	// RedactPatterns contains additional redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// ShouldRedact reports whether PII redaction is on.
func (c LoggingConfig) ShouldRedact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint on the admin server.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "mailsweep"
	Namespace string `yaml:"namespace"`
}

// IsEnabled reports whether metrics are on.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the OTLP connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// SampleRatio is the fraction of runs to trace (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service name in traces.
	// Default: "mailsweep"
	ServiceName string `yaml:"service_name"`
}
