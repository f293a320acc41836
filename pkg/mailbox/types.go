package mailbox

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Priority is the importance tier of a retention category.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities from high (0) to low (2). Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() < 3
}

// RetentionPolicy describes how long messages of one category are kept.
type RetentionPolicy struct {
	Category            string   `json:"category" yaml:"category" toml:"category"`
	RetentionDays       int      `json:"retention_days" yaml:"retention_days" toml:"retention_days"`
	Priority            Priority `json:"priority" yaml:"priority" toml:"priority"`
	ArchiveBeforeDelete bool     `json:"archive_before_delete" yaml:"archive_before_delete" toml:"archive_before_delete"`
	Description         string   `json:"description,omitempty" yaml:"description,omitempty" toml:"description"`
}

// Validate checks the policy fields.
func (p RetentionPolicy) Validate() error {
	if strings.TrimSpace(p.Category) == "" {
		return NewPolicyError(p.Category, fmt.Errorf("%w: category cannot be empty", ErrInvalidPolicy))
	}
	if p.RetentionDays <= 0 {
		return NewPolicyError(p.Category, fmt.Errorf("%w: retention_days must be positive, got %d", ErrInvalidPolicy, p.RetentionDays))
	}
	if !p.Priority.Valid() {
		return NewPolicyError(p.Category, fmt.Errorf("%w: unknown priority %q", ErrInvalidPolicy, p.Priority))
	}
	return nil
}

// Message is the metadata of one stored message. The store owns messages;
// the engine only reads them.
type Message struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`

	// Used by the categorizer. Adapters may leave Body empty.
	Subject string `json:"subject,omitempty"`
	Sender  string `json:"sender,omitempty"`
	Body    string `json:"body,omitempty"`
}

// StorageStats is a snapshot of mailbox usage.
type StorageStats struct {
	TotalMessages      int64     `json:"total_messages"`
	EstimatedUsedBytes int64     `json:"estimated_used_bytes"`
	QuotaBytes         int64     `json:"quota_bytes"`
	UtilizationPercent float64   `json:"utilization_percent"`
	OldestMessage      time.Time `json:"oldest_message,omitempty"`
	RecommendedCleanup bool      `json:"recommended_cleanup"`

	// Exact is true when EstimatedUsedBytes came from the store rather than
	// from count × average size.
	Exact       bool      `json:"exact"`
	CollectedAt time.Time `json:"collected_at"`
}

// Utilization returns utilization as a fraction in [0, 1].
func (s StorageStats) Utilization() float64 {
	return s.UtilizationPercent / 100
}

// Mode is the escalation state of the mailbox.
type Mode int

const (
	ModeNormal Mode = iota
	ModeWarning
	ModeCritical
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeWarning:
		return "warning"
	case ModeCritical:
		return "critical"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode parses "normal", "warning" or "critical" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "":
		return ModeNormal, nil
	case "warning":
		return ModeWarning, nil
	case "critical", "emergency":
		return ModeCritical, nil
	default:
		return ModeNormal, fmt.Errorf("unknown mode %q", s)
	}
}

// Severity is the urgency attached to a notification.
type Severity string

const (
	SeverityNotice   Severity = "notice"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Trigger records what started a cleanup run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerCategory  Trigger = "category"
)

// CleanupResult is the outcome of one cleanup run. It is built by the engine
// during a run and is not modified after being returned.
type CleanupResult struct {
	ID                 string         `json:"id"`
	Trigger            Trigger        `json:"trigger"`
	Mode               Mode           `json:"mode"`
	Category           string         `json:"category,omitempty"`
	DeletedCount       int            `json:"deleted_count"`
	ArchivedCount      int            `json:"archived_count"`
	StorageFreedBytes  int64          `json:"storage_freed_bytes"`
	PerCategory        map[string]int `json:"per_category"`
	Errors             []string       `json:"errors"`
	Notes              []string       `json:"notes,omitempty"`
	ArchivalSuppressed bool           `json:"archival_suppressed"`
	Aborted            bool           `json:"aborted"`
	Skipped            bool           `json:"skipped"`
	StartTime          time.Time      `json:"start_time"`
	EndTime            time.Time      `json:"end_time"`
}

// Duration returns the wall-clock length of the run.
func (r CleanupResult) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Clone returns a deep copy of r.
func (r CleanupResult) Clone() CleanupResult {
	c := r
	if r.PerCategory != nil {
		c.PerCategory = make(map[string]int, len(r.PerCategory))
		for k, v := range r.PerCategory {
			c.PerCategory[k] = v
		}
	}
	if r.Errors != nil {
		c.Errors = append([]string(nil), r.Errors...)
	}
	if r.Notes != nil {
		c.Notes = append([]string(nil), r.Notes...)
	}
	return c
}

// MailStore is the mailbox the engine evicts from.
type MailStore interface {
	// Count returns the number of stored messages.
	Count(ctx context.Context) (int64, error)

	// OldestTimestamp returns the timestamp of the oldest message.
	OldestTimestamp(ctx context.Context) (time.Time, error)

	// ListByCategoryBefore returns up to pageSize messages of category older
	// than cutoff, oldest first. An empty next token marks the last page.
	// Tokens remain valid when previously returned messages are deleted.
	ListByCategoryBefore(ctx context.Context, category string, cutoff time.Time, pageSize int, pageToken string) ([]Message, string, error)

	// Size returns the size of one message in bytes.
	Size(ctx context.Context, id string) (int64, error)

	// Delete removes one message.
	Delete(ctx context.Context, id string) error
}

// SizeReporter is implemented by stores that know their exact usage.
type SizeReporter interface {
	TotalSize(ctx context.Context) (int64, error)
}

// CategoryLister is implemented by stores that can enumerate the categories
// of the messages they hold.
type CategoryLister interface {
	Categories(ctx context.Context) ([]string, error)
}

// Pinger is implemented by stores that support a cheap liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ArchiveSink receives a durable copy of a message before it is deleted.
type ArchiveSink interface {
	Archive(ctx context.Context, msg Message, category string) error
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, severity Severity, subject, body string) error
}
