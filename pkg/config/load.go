package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "MAILSWEEP_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values and validates the result. Environment variables
// are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. Unknown keys are
// rejected so that typos do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides named MAILSWEEP_SECTION_FIELD (e.g.
// MAILSWEEP_STORE_IMAP_PASSWORD). Environment variables take precedence over
// the file. An empty path loads the defaults.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

// envOverrides collects parse failures so that a malformed variable is
// reported instead of ignored.
type envOverrides struct {
	lookup lookupFunc
	errs   []FieldError
}

func (e *envOverrides) str(name string, dst *string) {
	if v, ok := e.lookup(EnvPrefix + name); ok && v != "" {
		*dst = v
	}
}

func (e *envOverrides) boolean(name string, dst *bool) bool {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, "must be a boolean")
		return false
	}
	*dst = b
	return true
}

func (e *envOverrides) boolPtr(name string, dst **bool) {
	var b bool
	if e.boolean(name, &b) {
		*dst = &b
	}
}

func (e *envOverrides) integer(name string, dst *int) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, "must be an integer")
		return
	}
	*dst = i
}

func (e *envOverrides) int64(name string, dst *int64) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(name, "must be an integer")
		return
	}
	*dst = i
}

func (e *envOverrides) float(name string, dst *float64) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(name, "must be a number")
		return
	}
	*dst = f
}

func (e *envOverrides) duration(name string, dst *time.Duration) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, "must be a duration such as 30s or 5m")
		return
	}
	*dst = d
}

func (e *envOverrides) int64List(name string, dst *[]int64) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	var out []int64
	for _, part := range strings.Split(v, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			e.fail(name, "must be a comma separated list of integers")
			return
		}
		out = append(out, id)
	}
	*dst = out
}

func (e *envOverrides) fail(name, msg string) {
	e.errs = append(e.errs, FieldError{Field: EnvPrefix + name, Message: msg})
}

// applyEnvOverrides applies MAILSWEEP_* variables to cfg.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	e := &envOverrides{lookup: lookup}

	// Mailbox
	e.int64("MAILBOX_QUOTA_BYTES", &cfg.Mailbox.QuotaBytes)
	e.int64("MAILBOX_AVERAGE_MESSAGE_SIZE", &cfg.Mailbox.AverageMessageSize)
	e.float("MAILBOX_WARNING_THRESHOLD", &cfg.Mailbox.WarningThreshold)
	e.float("MAILBOX_CRITICAL_THRESHOLD", &cfg.Mailbox.CriticalThreshold)
	e.boolean("MAILBOX_ESTIMATE_ONLY", &cfg.Mailbox.EstimateOnly)

	// Cleanup
	e.str("CLEANUP_SCHEDULE", &cfg.Cleanup.Schedule)
	e.boolean("CLEANUP_RUN_ON_START", &cfg.Cleanup.RunOnStart)
	e.duration("CLEANUP_RUN_TIMEOUT", &cfg.Cleanup.RunTimeout)
	e.integer("CLEANUP_BATCH_SIZE", &cfg.Cleanup.BatchSize)
	e.integer("CLEANUP_PARALLELISM", &cfg.Cleanup.Parallelism)
	e.str("CLEANUP_PACING_STRATEGY", &cfg.Cleanup.Pacing.Strategy)
	e.duration("CLEANUP_PACING_INTERVAL", &cfg.Cleanup.Pacing.Interval)

	// Policies
	e.str("POLICIES_FILE", &cfg.Policies.File)
	e.boolean("POLICIES_WATCH", &cfg.Policies.Watch)

	// Store
	e.str("STORE_BACKEND", &cfg.Store.Backend)
	e.str("STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)
	e.str("STORE_IMAP_ADDRESS", &cfg.Store.IMAP.Address)
	e.str("STORE_IMAP_USERNAME", &cfg.Store.IMAP.Username)
	e.str("STORE_IMAP_PASSWORD", &cfg.Store.IMAP.Password)
	e.str("STORE_IMAP_MAILBOX", &cfg.Store.IMAP.Mailbox)
	e.boolean("STORE_IMAP_TLS", &cfg.Store.IMAP.TLS)
	e.duration("STORE_IMAP_TIMEOUT", &cfg.Store.IMAP.Timeout)

	// Archive
	e.str("ARCHIVE_BACKEND", &cfg.Archive.Backend)
	e.str("ARCHIVE_FILE_DIRECTORY", &cfg.Archive.File.Directory)
	e.str("ARCHIVE_S3_BUCKET", &cfg.Archive.S3.Bucket)
	e.str("ARCHIVE_S3_PREFIX", &cfg.Archive.S3.Prefix)
	e.str("ARCHIVE_S3_REGION", &cfg.Archive.S3.Region)
	e.str("ARCHIVE_S3_ENDPOINT", &cfg.Archive.S3.Endpoint)

	// Audit
	e.str("AUDIT_BACKEND", &cfg.Audit.Backend)
	e.str("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)

	// Notify
	e.str("NOTIFY_WEBHOOK_URL", &cfg.Notify.Webhook.URL)
	e.str("NOTIFY_TELEGRAM_TOKEN", &cfg.Notify.Telegram.Token)
	e.int64List("NOTIFY_TELEGRAM_CHAT_IDS", &cfg.Notify.Telegram.ChatIDs)

	// Admin
	e.boolPtr("ADMIN_ENABLED", &cfg.Admin.Enabled)
	e.str("ADMIN_LISTEN_ADDRESS", &cfg.Admin.ListenAddress)

	// Telemetry
	e.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	e.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	e.boolPtr("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	e.boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	e.str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	e.float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	if len(e.errs) > 0 {
		return ValidationError{Errors: e.errs}
	}
	return nil
}
