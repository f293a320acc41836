package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/mailsweep/pkg/mailbox"
)

// Categorizer assigns a category to a message.
type Categorizer interface {
	Categorize(msg mailbox.Message) string
}

// SQLiteConfig configures the SQLite mailbox index.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore is a MailStore backed by a local SQLite mailbox index. It is
// used when the mail server itself cannot be queried by category, or as a
// durable stand-in during development.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	categorizer Categorizer
	logger      *slog.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	ts INTEGER NOT NULL,
	size_bytes INTEGER NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	sender TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_messages_category_ts ON messages(category, ts, id);
CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);
`

// NewSQLiteStore opens (creating if needed) the mailbox index. categorizer
// may be nil, in which case Insert requires every message to carry a
// category.
func NewSQLiteStore(cfg SQLiteConfig, categorizer Categorizer) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, mailbox.NewStoreError("sqlite", "open", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, mailbox.NewStoreError("sqlite", "create_schema", err)
	}

	return &SQLiteStore{
		db:          db,
		path:        cfg.Path,
		categorizer: categorizer,
		logger:      slog.Default().With("component", "mailbox.store.sqlite"),
	}, nil
}

// Insert adds or replaces messages. Messages without a category are
// categorized first.
func (s *SQLiteStore) Insert(ctx context.Context, msgs ...mailbox.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mailbox.NewStoreError("sqlite", "insert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, category, ts, size_bytes, subject, sender, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			category = excluded.category,
			ts = excluded.ts,
			size_bytes = excluded.size_bytes,
			subject = excluded.subject,
			sender = excluded.sender,
			body = excluded.body
	`)
	if err != nil {
		return mailbox.NewStoreError("sqlite", "insert", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		if m.ID == "" {
			return fmt.Errorf("message id cannot be empty")
		}
		if m.Category == "" {
			if s.categorizer == nil {
				return fmt.Errorf("message %q has no category and no categorizer is configured", m.ID)
			}
			m.Category = s.categorizer.Categorize(m)
		}
		if _, err := stmt.ExecContext(ctx,
			m.ID, m.Category, m.Timestamp.UnixNano(), m.SizeBytes,
			m.Subject, m.Sender, m.Body,
		); err != nil {
			return mailbox.NewStoreError("sqlite", "insert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mailbox.NewStoreError("sqlite", "insert", err)
	}
	return nil
}

// Count implements mailbox.MailStore.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, mailbox.NewStoreError("sqlite", "count", err)
	}
	return n, nil
}

// OldestTimestamp implements mailbox.MailStore.
func (s *SQLiteStore) OldestTimestamp(ctx context.Context) (time.Time, error) {
	var ts sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(ts) FROM messages`).Scan(&ts); err != nil {
		return time.Time{}, mailbox.NewStoreError("sqlite", "oldest", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(0, ts.Int64).UTC(), nil
}

// ListByCategoryBefore implements mailbox.MailStore.
func (s *SQLiteStore) ListByCategoryBefore(ctx context.Context, category string, cutoff time.Time, pageSize int, pageToken string) ([]mailbox.Message, string, error) {
	if pageSize <= 0 {
		return nil, "", fmt.Errorf("page size must be positive")
	}
	after, hasAfter, err := decodeCursor(pageToken)
	if err != nil {
		return nil, "", err
	}

	query := `
		SELECT id, category, ts, size_bytes, subject, sender, body
		FROM messages
		WHERE category = ? AND ts < ?`
	args := []any{category, cutoff.UnixNano()}
	if hasAfter {
		query += ` AND (ts > ? OR (ts = ? AND id > ?))`
		n := after.ts.UnixNano()
		args = append(args, n, n, after.id)
	}
	query += ` ORDER BY ts, id LIMIT ?`
	// One extra row tells us whether another page exists.
	args = append(args, pageSize+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", mailbox.NewStoreError("sqlite", "list", err)
	}
	defer rows.Close()

	var page []mailbox.Message
	for rows.Next() {
		var (
			m     mailbox.Message
			nanos int64
		)
		if err := rows.Scan(&m.ID, &m.Category, &nanos, &m.SizeBytes, &m.Subject, &m.Sender, &m.Body); err != nil {
			return nil, "", mailbox.NewStoreError("sqlite", "scan", err)
		}
		m.Timestamp = time.Unix(0, nanos).UTC()
		page = append(page, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", mailbox.NewStoreError("sqlite", "list", err)
	}

	if len(page) <= pageSize {
		return page, "", nil
	}
	page = page[:pageSize]
	last := page[pageSize-1]
	return page, cursor{ts: last.Timestamp, id: last.ID}.encode(), nil
}

// Size implements mailbox.MailStore.
func (s *SQLiteStore) Size(ctx context.Context, id string) (int64, error) {
	var size int64
	err := s.db.QueryRowContext(ctx, `SELECT size_bytes FROM messages WHERE id = ?`, id).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("message %q not found", id)
	}
	if err != nil {
		return 0, mailbox.NewStoreError("sqlite", "size", err)
	}
	return size, nil
}

// Delete implements mailbox.MailStore.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return mailbox.NewStoreError("sqlite", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mailbox.NewStoreError("sqlite", "delete", err)
	}
	if n == 0 {
		return fmt.Errorf("message %q not found", id)
	}
	return nil
}

// TotalSize implements mailbox.SizeReporter.
func (s *SQLiteStore) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size_bytes), 0) FROM messages`).Scan(&total); err != nil {
		return 0, mailbox.NewStoreError("sqlite", "total_size", err)
	}
	return total, nil
}

// Categories implements mailbox.CategoryLister.
func (s *SQLiteStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT category FROM messages ORDER BY category`)
	if err != nil {
		return nil, mailbox.NewStoreError("sqlite", "categories", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, mailbox.NewStoreError("sqlite", "categories", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Ping implements mailbox.Pinger.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return mailbox.NewStoreError("sqlite", "close", err)
	}
	s.logger.Info("SQLite mail store closed", "path", s.path)
	return nil
}
