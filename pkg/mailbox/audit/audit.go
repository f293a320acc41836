// Package audit keeps the append-only history of cleanup runs.
//
// Two backends are provided: MemoryLog for tests and single-shot CLI runs,
// and SQLiteLog for the daemon. Both return results ordered oldest first.
package audit

import (
	"context"
	"sync"
	"time"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// Log is an append-only record of cleanup results.
type Log interface {
	// Append records one completed run.
	Append(ctx context.Context, result mailbox.CleanupResult) error

	// History returns runs that started within the last since, oldest first.
	// A non-positive since returns the full history.
	History(ctx context.Context, since time.Duration) ([]mailbox.CleanupResult, error)

	// Last returns the most recent run, if any.
	Last(ctx context.Context) (mailbox.CleanupResult, bool, error)

	// Close releases resources held by the log.
	Close() error
}

// MemoryLog is an in-memory Log.
type MemoryLog struct {
	mu      sync.RWMutex
	results []mailbox.CleanupResult
	now     func() time.Time
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{now: time.Now}
}

// Append implements Log.
func (l *MemoryLog) Append(ctx context.Context, result mailbox.CleanupResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, result.Clone())
	return nil
}

// History implements Log.
func (l *MemoryLog) History(ctx context.Context, since time.Duration) ([]mailbox.CleanupResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var cutoff time.Time
	if since > 0 {
		cutoff = l.now().Add(-since)
	}

	out := make([]mailbox.CleanupResult, 0, len(l.results))
	for _, r := range l.results {
		if !cutoff.IsZero() && r.StartTime.Before(cutoff) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

// Last implements Log.
func (l *MemoryLog) Last(ctx context.Context) (mailbox.CleanupResult, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.results) == 0 {
		return mailbox.CleanupResult{}, false, nil
	}
	return l.results[len(l.results)-1].Clone(), true, nil
}

// Close implements Log.
func (l *MemoryLog) Close() error {
	return nil
}
