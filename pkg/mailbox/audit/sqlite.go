package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// SQLiteConfig contains configuration for the SQLite audit log.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite audit configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteLog is a Log persisted in SQLite.
type SQLiteLog struct {
	db     *sql.DB
	config *SQLiteConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewSQLiteLog opens (creating if needed) the audit database.
func NewSQLiteLog(config *SQLiteConfig) (*SQLiteLog, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 4
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "mailbox.audit.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, mailbox.NewStoreError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	l := &SQLiteLog{
		db:     db,
		config: config,
		now:    time.Now,
		logger: logger,
	}

	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite audit log initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return l, nil
}

func (l *SQLiteLog) initialize() error {
	if l.config.WALMode {
		if _, err := l.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return mailbox.NewStoreError("sqlite", "enable_wal", err)
		}
	}

	if _, err := l.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", l.config.BusyTimeout.Milliseconds())); err != nil {
		return mailbox.NewStoreError("sqlite", "set_busy_timeout", err)
	}

	if _, err := l.db.Exec(Schema); err != nil {
		return mailbox.NewStoreError("sqlite", "create_schema", err)
	}

	if _, err := l.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return mailbox.NewStoreError("sqlite", "insert_schema_version", err)
	}

	var version sql.NullInt64
	if err := l.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return mailbox.NewStoreError("sqlite", "get_schema_version", err)
	}
	if version.Int64 != SchemaVersion {
		return mailbox.NewStoreError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}
	return nil
}

// Append implements Log.
func (l *SQLiteLog) Append(ctx context.Context, r mailbox.CleanupResult) error {
	perCategory, err := json.Marshal(r.PerCategory)
	if err != nil {
		return fmt.Errorf("encode per-category counts: %w", err)
	}
	errs, _ := json.Marshal(nonNil(r.Errors))
	notes, _ := json.Marshal(nonNil(r.Notes))

	var category any
	if r.Category != "" {
		category = r.Category
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO cleanup_runs (
			id, trigger_kind, mode, category,
			deleted_count, archived_count, storage_freed_bytes,
			per_category, errors, notes,
			archival_suppressed, aborted,
			start_time, end_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Trigger), r.Mode.String(), category,
		r.DeletedCount, r.ArchivedCount, r.StorageFreedBytes,
		string(perCategory), string(errs), string(notes),
		r.ArchivalSuppressed, r.Aborted,
		r.StartTime.UnixNano(), r.EndTime.UnixNano(),
	)
	if err != nil {
		return mailbox.NewStoreError("sqlite", "append", err)
	}
	return nil
}

const selectRuns = `
	SELECT id, trigger_kind, mode, category,
	       deleted_count, archived_count, storage_freed_bytes,
	       per_category, errors, notes,
	       archival_suppressed, aborted,
	       start_time, end_time
	FROM cleanup_runs`

// History implements Log.
func (l *SQLiteLog) History(ctx context.Context, since time.Duration) ([]mailbox.CleanupResult, error) {
	query := selectRuns
	var args []any
	if since > 0 {
		query += " WHERE start_time >= ?"
		args = append(args, l.now().Add(-since).UnixNano())
	}
	query += " ORDER BY seq ASC"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mailbox.NewStoreError("sqlite", "history", err)
	}
	defer rows.Close()

	results := []mailbox.CleanupResult{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, mailbox.NewStoreError("sqlite", "scan", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mailbox.NewStoreError("sqlite", "history", err)
	}
	return results, nil
}

// Last implements Log.
func (l *SQLiteLog) Last(ctx context.Context) (mailbox.CleanupResult, bool, error) {
	row := l.db.QueryRowContext(ctx, selectRuns+" ORDER BY seq DESC LIMIT 1")
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mailbox.CleanupResult{}, false, nil
	}
	if err != nil {
		return mailbox.CleanupResult{}, false, mailbox.NewStoreError("sqlite", "last", err)
	}
	return r, true, nil
}

// Ping checks the database connection.
func (l *SQLiteLog) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close implements Log.
func (l *SQLiteLog) Close() error {
	if err := l.db.Close(); err != nil {
		return mailbox.NewStoreError("sqlite", "close", err)
	}
	l.logger.Info("SQLite audit log closed")
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (mailbox.CleanupResult, error) {
	var (
		r                        mailbox.CleanupResult
		trigger, mode            string
		category                 sql.NullString
		perCategory, errs, notes string
		startNanos, endNanos     int64
	)

	err := s.Scan(
		&r.ID, &trigger, &mode, &category,
		&r.DeletedCount, &r.ArchivedCount, &r.StorageFreedBytes,
		&perCategory, &errs, &notes,
		&r.ArchivalSuppressed, &r.Aborted,
		&startNanos, &endNanos,
	)
	if err != nil {
		return r, err
	}

	r.Trigger = mailbox.Trigger(trigger)
	if r.Mode, err = mailbox.ParseMode(mode); err != nil {
		return r, err
	}
	r.Category = category.String
	r.StartTime = time.Unix(0, startNanos).UTC()
	r.EndTime = time.Unix(0, endNanos).UTC()

	if err := json.Unmarshal([]byte(perCategory), &r.PerCategory); err != nil {
		return r, fmt.Errorf("decode per_category: %w", err)
	}
	if err := json.Unmarshal([]byte(errs), &r.Errors); err != nil {
		return r, fmt.Errorf("decode errors: %w", err)
	}
	if err := json.Unmarshal([]byte(notes), &r.Notes); err != nil {
		return r, fmt.Errorf("decode notes: %w", err)
	}
	if len(r.Notes) == 0 {
		r.Notes = nil
	}
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
