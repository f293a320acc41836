package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// CallCounts records how often each MailStore method was called.
type CallCounts struct {
	Count      int64
	Oldest     int64
	List       int64
	Size       int64
	Delete     int64
	TotalSize  int64
	Categories int64
}

// Eviction returns the number of list, size and delete calls.
func (c CallCounts) Eviction() int64 {
	return c.List + c.Size + c.Delete
}

type indexKey struct {
	ts time.Time
	id string
}

// MemoryStore is an in-memory MailStore. It is used by tests and for
// dry runs; it is not persistent.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[string]mailbox.Message
	index    map[string][]indexKey
	dirty    map[string]bool

	countErr   error
	listHook   func(category string) error
	deleteHook func(id string) error

	calls struct {
		count, oldest, list, size, delete, totalSize, categories atomic.Int64
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]mailbox.Message),
		index:    make(map[string][]indexKey),
		dirty:    make(map[string]bool),
	}
}

// Add stores messages, replacing any with the same id.
func (s *MemoryStore) Add(msgs ...mailbox.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range msgs {
		m.Timestamp = m.Timestamp.UTC()
		if old, exists := s.messages[m.ID]; exists {
			s.dirty[old.Category] = true
		}
		s.messages[m.ID] = m
		s.dirty[m.Category] = true
	}
}

// Get returns one message.
func (s *MemoryStore) Get(id string) (mailbox.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	return m, ok
}

// Len returns the number of stored messages without counting as a call.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Calls returns a snapshot of the call counters.
func (s *MemoryStore) Calls() CallCounts {
	return CallCounts{
		Count:      s.calls.count.Load(),
		Oldest:     s.calls.oldest.Load(),
		List:       s.calls.list.Load(),
		Size:       s.calls.size.Load(),
		Delete:     s.calls.delete.Load(),
		TotalSize:  s.calls.totalSize.Load(),
		Categories: s.calls.categories.Load(),
	}
}

// SetCountError makes Count fail with err (nil clears it).
func (s *MemoryStore) SetCountError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countErr = err
}

// SetListHook installs a hook run before every list call; a non-nil
// return fails the call.
func (s *MemoryStore) SetListHook(fn func(category string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listHook = fn
}

// SetDeleteHook installs a hook run before every delete; a non-nil return
// fails the delete and keeps the message.
func (s *MemoryStore) SetDeleteHook(fn func(id string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteHook = fn
}

// Count implements mailbox.MailStore.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.calls.count.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.countErr != nil {
		return 0, mailbox.NewStoreError("memory", "count", s.countErr)
	}
	return int64(len(s.messages)), nil
}

// OldestTimestamp implements mailbox.MailStore.
func (s *MemoryStore) OldestTimestamp(ctx context.Context) (time.Time, error) {
	s.calls.oldest.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest time.Time
	for _, m := range s.messages {
		if oldest.IsZero() || m.Timestamp.Before(oldest) {
			oldest = m.Timestamp
		}
	}
	return oldest, nil
}

// ListByCategoryBefore implements mailbox.MailStore.
func (s *MemoryStore) ListByCategoryBefore(ctx context.Context, category string, cutoff time.Time, pageSize int, pageToken string) ([]mailbox.Message, string, error) {
	s.calls.list.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if pageSize <= 0 {
		return nil, "", fmt.Errorf("page size must be positive")
	}
	after, hasAfter, err := decodeCursor(pageToken)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listHook != nil {
		if err := s.listHook(category); err != nil {
			return nil, "", mailbox.NewStoreError("memory", "list", err)
		}
	}

	keys := s.sortedIndex(category)
	start := 0
	if hasAfter {
		start = sort.Search(len(keys), func(i int) bool {
			return after.after(keys[i].ts, keys[i].id)
		})
	}

	var page []mailbox.Message
	for i := start; i < len(keys); i++ {
		k := keys[i]
		if !k.ts.Before(cutoff) {
			break
		}
		m, ok := s.messages[k.id]
		if !ok || m.Category != category {
			continue
		}
		if len(page) == pageSize {
			last := page[len(page)-1]
			return page, cursor{ts: last.Timestamp, id: last.ID}.encode(), nil
		}
		page = append(page, m)
	}
	return page, "", nil
}

// Size implements mailbox.MailStore.
func (s *MemoryStore) Size(ctx context.Context, id string) (int64, error) {
	s.calls.size.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return 0, fmt.Errorf("message %q not found", id)
	}
	return m.SizeBytes, nil
}

// Delete implements mailbox.MailStore.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.calls.delete.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleteHook != nil {
		if err := s.deleteHook(id); err != nil {
			return err
		}
	}
	if _, ok := s.messages[id]; !ok {
		return fmt.Errorf("message %q not found", id)
	}
	delete(s.messages, id)
	return nil
}

// TotalSize implements mailbox.SizeReporter.
func (s *MemoryStore) TotalSize(ctx context.Context) (int64, error) {
	s.calls.totalSize.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, m := range s.messages {
		total += m.SizeBytes
	}
	return total, nil
}

// Categories implements mailbox.CategoryLister.
func (s *MemoryStore) Categories(ctx context.Context) ([]string, error) {
	s.calls.categories.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]bool)
	for _, m := range s.messages {
		set[m.Category] = true
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// Ping implements mailbox.Pinger.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// sortedIndex returns the category index ordered by (timestamp, id). It is
// rebuilt after Add; deletes leave stale keys that readers skip. Callers
// hold s.mu.
func (s *MemoryStore) sortedIndex(category string) []indexKey {
	if !s.dirty[category] {
		return s.index[category]
	}

	keys := make([]indexKey, 0, len(s.index[category]))
	for id, m := range s.messages {
		if m.Category == category {
			keys = append(keys, indexKey{ts: m.Timestamp, id: id})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].ts.Equal(keys[j].ts) {
			return keys[i].ts.Before(keys[j].ts)
		}
		return keys[i].id < keys[j].id
	})
	s.index[category] = keys
	s.dirty[category] = false
	return keys
}
