package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "store.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Has reports whether field failed validation.
func (e ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration. All errors are collected and
// returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateMailbox(&cfg.Mailbox)...)
	errs = append(errs, validateCleanup(&cfg.Cleanup)...)
	errs = append(errs, validatePolicies(&cfg.Policies)...)
	errs = append(errs, validateCategorizer(&cfg.Categorizer)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateArchive(&cfg.Archive)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateNotify(&cfg.Notify)...)
	errs = append(errs, validateAdmin(&cfg.Admin)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateMailbox(cfg *MailboxConfig) []FieldError {
	var errs []FieldError

	if cfg.QuotaBytes <= 0 {
		errs = append(errs, FieldError{"mailbox.quota_bytes", "quota must be positive"})
	}
	if cfg.AverageMessageSize <= 0 {
		errs = append(errs, FieldError{"mailbox.average_message_size", "average message size must be positive"})
	}
	if cfg.WarningThreshold <= 0 || cfg.WarningThreshold >= 1 {
		errs = append(errs, FieldError{"mailbox.warning_threshold", "must be between 0 and 1 (exclusive)"})
	}
	if cfg.CriticalThreshold <= 0 || cfg.CriticalThreshold > 1 {
		errs = append(errs, FieldError{"mailbox.critical_threshold", "must be between 0 (exclusive) and 1"})
	}
	if cfg.WarningThreshold >= cfg.CriticalThreshold {
		errs = append(errs, FieldError{"mailbox.warning_threshold", "must be below critical_threshold"})
	}

	return errs
}

func validateCleanup(cfg *CleanupConfig) []FieldError {
	var errs []FieldError

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{"cleanup.schedule", fmt.Sprintf("invalid cron schedule: %v", err)})
	}
	if cfg.RunTimeout < 0 {
		errs = append(errs, FieldError{"cleanup.run_timeout", "run timeout must not be negative"})
	}
	if cfg.BatchSize <= 0 {
		errs = append(errs, FieldError{"cleanup.batch_size", "batch size must be positive"})
	}
	if cfg.EmergencyFactor <= 0 || cfg.EmergencyFactor >= 1 {
		errs = append(errs, FieldError{"cleanup.emergency_factor", "must be between 0 and 1 (exclusive)"})
	}
	if cfg.AggressiveFactor <= 0 || cfg.AggressiveFactor >= 1 {
		errs = append(errs, FieldError{"cleanup.aggressive_factor", "must be between 0 and 1 (exclusive)"})
	}
	if cfg.Parallelism <= 0 {
		errs = append(errs, FieldError{"cleanup.parallelism", "parallelism must be positive"})
	}
	if cfg.FetchRetries < 0 {
		errs = append(errs, FieldError{"cleanup.fetch_retries", "fetch retries must not be negative"})
	}
	switch cfg.Pacing.Strategy {
	case "fixed", "exponential":
	default:
		errs = append(errs, FieldError{"cleanup.pacing.strategy", fmt.Sprintf("unknown strategy %q (valid: fixed, exponential)", cfg.Pacing.Strategy)})
	}
	if cfg.Pacing.Interval < 0 || cfg.Pacing.MaxInterval < 0 {
		errs = append(errs, FieldError{"cleanup.pacing", "intervals must not be negative"})
	}

	return errs
}

var validPriorities = map[string]bool{"high": true, "medium": true, "low": true}

func validatePolicies(cfg *PoliciesConfig) []FieldError {
	var errs []FieldError

	if cfg.Watch && cfg.File == "" {
		errs = append(errs, FieldError{"policies.watch", "watch requires policies.file"})
	}

	seen := make(map[string]bool)
	for i, p := range cfg.Entries {
		field := fmt.Sprintf("policies.entries[%d]", i)
		if strings.TrimSpace(p.Category) == "" {
			errs = append(errs, FieldError{field + ".category", "category is required"})
		} else if seen[p.Category] {
			errs = append(errs, FieldError{field + ".category", fmt.Sprintf("duplicate category %q", p.Category)})
		}
		seen[p.Category] = true
		if p.RetentionDays <= 0 {
			errs = append(errs, FieldError{field + ".retention_days", "retention days must be positive"})
		}
		if !validPriorities[p.Priority] {
			errs = append(errs, FieldError{field + ".priority", fmt.Sprintf("unknown priority %q (valid: high, medium, low)", p.Priority)})
		}
	}

	return errs
}

var validFields = map[string]bool{"subject": true, "sender": true, "body": true, "any": true}

func validateCategorizer(cfg *CategorizerConfig) []FieldError {
	var errs []FieldError

	if cfg.DisableBuiltinRules && len(cfg.Rules) == 0 {
		errs = append(errs, FieldError{"categorizer.rules", "at least one rule is required when built-in rules are disabled"})
	}
	for i, r := range cfg.Rules {
		field := fmt.Sprintf("categorizer.rules[%d]", i)
		if r.Category == "" {
			errs = append(errs, FieldError{field + ".category", "category is required"})
		}
		if !validFields[r.Field] {
			errs = append(errs, FieldError{field + ".field", fmt.Sprintf("unknown field %q (valid: subject, sender, body, any)", r.Field)})
		}
		if len(r.All) == 0 && len(r.Any) == 0 && r.Pattern == "" {
			errs = append(errs, FieldError{field, "rule needs keywords or a pattern"})
		}
	}

	return errs
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{"store.sqlite.path", "path is required for the sqlite backend"})
		}
	case "imap":
		if _, _, err := net.SplitHostPort(cfg.IMAP.Address); err != nil {
			errs = append(errs, FieldError{"store.imap.address", "address must be host:port"})
		}
		if cfg.IMAP.Timeout < 0 {
			errs = append(errs, FieldError{"store.imap.timeout", "timeout cannot be negative"})
		}
		if cfg.IMAP.Username == "" {
			errs = append(errs, FieldError{"store.imap.username", "username is required for the imap backend"})
		}
	default:
		errs = append(errs, FieldError{"store.backend", fmt.Sprintf("unknown backend %q (valid: memory, sqlite, imap)", cfg.Backend)})
	}

	return errs
}

func validateArchive(cfg *ArchiveConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "none":
	case "file":
		if cfg.File.Directory == "" {
			errs = append(errs, FieldError{"archive.file.directory", "directory is required for the file backend"})
		}
	case "s3":
		if cfg.S3.Bucket == "" {
			errs = append(errs, FieldError{"archive.s3.bucket", "bucket is required for the s3 backend"})
		}
		if cfg.S3.Endpoint != "" {
			if u, err := url.Parse(cfg.S3.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, FieldError{"archive.s3.endpoint", "endpoint must be an absolute URL"})
			}
		}
	default:
		errs = append(errs, FieldError{"archive.backend", fmt.Sprintf("unknown backend %q (valid: none, file, s3)", cfg.Backend)})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{"audit.sqlite.path", "path is required for the sqlite backend"})
		}
		if cfg.SQLite.MaxOpenConns < 0 {
			errs = append(errs, FieldError{"audit.sqlite.max_open_conns", "must not be negative"})
		}
	default:
		errs = append(errs, FieldError{"audit.backend", fmt.Sprintf("unknown backend %q (valid: memory, sqlite)", cfg.Backend)})
	}

	return errs
}

func validateNotify(cfg *NotifyConfig) []FieldError {
	var errs []FieldError

	if cfg.Webhook.URL != "" {
		u, err := url.Parse(cfg.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{"notify.webhook.url", "url must be an absolute http(s) URL"})
		}
	}
	if cfg.Webhook.MaxRetries < 0 {
		errs = append(errs, FieldError{"notify.webhook.max_retries", "must not be negative"})
	}
	if cfg.Telegram.Token != "" && len(cfg.Telegram.ChatIDs) == 0 {
		errs = append(errs, FieldError{"notify.telegram.chat_ids", "at least one chat id is required with a token"})
	}

	return errs
}

func validateAdmin(cfg *AdminConfig) []FieldError {
	var errs []FieldError

	if !cfg.IsEnabled() {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{"admin.listen_address", "listen address must be host:port"})
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{"admin", "timeouts must not be negative"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("unknown level %q (valid: debug, info, warn, error)", cfg.Logging.Level)})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("unknown format %q (valid: json, text)", cfg.Logging.Format)})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		if p.Pattern == "" {
			errs = append(errs, FieldError{fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i), "pattern is required"})
		}
	}

	if cfg.Metrics.IsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{"telemetry.metrics.path", "path must start with /"})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{"telemetry.tracing.endpoint", "endpoint is required when tracing is enabled"})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{"telemetry.tracing.sample_ratio", "sample ratio must be between 0 and 1"})
	}

	return errs
}
