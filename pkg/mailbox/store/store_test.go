package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/categorize"
	"mercator-hq/mailsweep/pkg/mailbox/policy"
)

var base = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

// pagingStore is the part of the store API exercised by the shared tests.
type pagingStore interface {
	mailbox.MailStore
	mailbox.SizeReporter
	mailbox.CategoryLister
}

func seedMessages() []mailbox.Message {
	var msgs []mailbox.Message
	for i := 0; i < 25; i++ {
		msgs = append(msgs, mailbox.Message{
			ID:        fmt.Sprintf("promo-%02d", i),
			Category:  policy.CategoryPromotional,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			SizeBytes: 100,
		})
	}
	// Two messages share a timestamp; the id breaks the tie.
	msgs = append(msgs,
		mailbox.Message{ID: "tie-b", Category: policy.CategorySystemAlerts, Timestamp: base, SizeBytes: 10},
		mailbox.Message{ID: "tie-a", Category: policy.CategorySystemAlerts, Timestamp: base, SizeBytes: 10},
	)
	return msgs
}

func stores(t *testing.T) map[string]pagingStore {
	t.Helper()

	mem := NewMemoryStore()
	mem.Add(seedMessages()...)

	lite, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "mail.db")}, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	t.Cleanup(func() { lite.Close() })
	if err := lite.Insert(context.Background(), seedMessages()...); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	return map[string]pagingStore{"memory": mem, "sqlite": lite}
}

func TestStore_PaginationSurvivesDeletes(t *testing.T) {
	ctx := context.Background()
	cutoff := base.Add(20 * time.Hour) // promo-00 .. promo-19

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var (
				seen  []string
				token string
				pages int
			)
			for {
				page, next, err := s.ListByCategoryBefore(ctx, policy.CategoryPromotional, cutoff, 7, token)
				if err != nil {
					t.Fatalf("ListByCategoryBefore() failed: %v", err)
				}
				pages++
				for _, m := range page {
					seen = append(seen, m.ID)
					// Deleting what was returned must not shift later pages.
					if err := s.Delete(ctx, m.ID); err != nil {
						t.Fatalf("Delete(%s) failed: %v", m.ID, err)
					}
				}
				if next == "" {
					break
				}
				token = next
			}

			if len(seen) != 20 {
				t.Fatalf("listed %d messages, want 20: %v", len(seen), seen)
			}
			for i, id := range seen {
				if want := fmt.Sprintf("promo-%02d", i); id != want {
					t.Errorf("seen[%d] = %s, want %s (oldest first)", i, id, want)
				}
			}
			if pages != 3 {
				t.Errorf("pages = %d, want 3", pages)
			}

			n, err := s.Count(ctx)
			if err != nil {
				t.Fatalf("Count() failed: %v", err)
			}
			if n != 7 {
				t.Errorf("Count() = %d, want 7", n)
			}
		})
	}
}

func TestStore_TieBreakAndAggregates(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			page, next, err := s.ListByCategoryBefore(ctx, policy.CategorySystemAlerts, base.Add(time.Hour), 1, "")
			if err != nil {
				t.Fatalf("ListByCategoryBefore() failed: %v", err)
			}
			if len(page) != 1 || page[0].ID != "tie-a" || next == "" {
				t.Fatalf("first page = %v, next = %q", page, next)
			}
			page, next, err = s.ListByCategoryBefore(ctx, policy.CategorySystemAlerts, base.Add(time.Hour), 1, next)
			if err != nil {
				t.Fatalf("ListByCategoryBefore() failed: %v", err)
			}
			if len(page) != 1 || page[0].ID != "tie-b" || next != "" {
				t.Fatalf("second page = %v, next = %q", page, next)
			}

			total, err := s.TotalSize(ctx)
			if err != nil || total != 25*100+2*10 {
				t.Errorf("TotalSize() = %d, %v", total, err)
			}

			oldest, err := s.OldestTimestamp(ctx)
			if err != nil || !oldest.Equal(base) {
				t.Errorf("OldestTimestamp() = %v, %v", oldest, err)
			}

			cats, err := s.Categories(ctx)
			if err != nil {
				t.Fatalf("Categories() failed: %v", err)
			}
			if len(cats) != 2 || cats[0] != policy.CategoryPromotional || cats[1] != policy.CategorySystemAlerts {
				t.Errorf("Categories() = %v", cats)
			}

			size, err := s.Size(ctx, "promo-03")
			if err != nil || size != 100 {
				t.Errorf("Size() = %d, %v", size, err)
			}
			if err := s.Delete(ctx, "missing"); err == nil {
				t.Error("Delete() of a missing message should fail")
			}
		})
	}
}

func TestStore_InvalidPageToken(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := s.ListByCategoryBefore(context.Background(), policy.CategoryPromotional, base, 10, "%%%")
			if err == nil {
				t.Error("ListByCategoryBefore() with a garbage token should fail")
			}
		})
	}
}

func TestMemoryStore_FaultInjection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Add(seedMessages()...)

	s.SetCountError(errors.New("down"))
	if _, err := s.Count(ctx); !errors.Is(err, mailbox.ErrStoreUnavailable) {
		t.Errorf("Count() error = %v, want ErrStoreUnavailable", err)
	}

	s.SetDeleteHook(func(id string) error { return errors.New("locked") })
	if err := s.Delete(ctx, "promo-00"); err == nil {
		t.Error("Delete() should fail with the hook installed")
	}
	if _, ok := s.Get("promo-00"); !ok {
		t.Error("failed delete must keep the message")
	}

	calls := s.Calls()
	if calls.Count != 1 || calls.Delete != 1 || calls.Eviction() != 1 {
		t.Errorf("Calls() = %+v", calls)
	}
}

func TestSQLiteStore_InsertCategorizes(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "mail.db")}, categorize.NewDefault())
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	defer s.Close()

	err = s.Insert(ctx,
		mailbox.Message{ID: "1", Subject: "Your transfer is confirmed", Timestamp: base, SizeBytes: 1},
		mailbox.Message{ID: "2", Subject: "Weekly promo", Timestamp: base, SizeBytes: 1},
		mailbox.Message{ID: "3", Subject: "hello", Category: policy.CategorySystemAlerts, Timestamp: base, SizeBytes: 1},
	)
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	tests := []struct {
		category string
		wantID   string
	}{
		{policy.CategoryTransferConfirmations, "1"},
		{policy.CategoryPromotional, "2"},
		{policy.CategorySystemAlerts, "3"},
	}
	for _, tt := range tests {
		page, _, err := s.ListByCategoryBefore(ctx, tt.category, base.Add(time.Second), 10, "")
		if err != nil {
			t.Fatalf("ListByCategoryBefore() failed: %v", err)
		}
		if len(page) != 1 || page[0].ID != tt.wantID {
			t.Errorf("%s: got %v, want id %s", tt.category, page, tt.wantID)
		}
	}

	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
}

func TestSQLiteStore_InsertWithoutCategorizer(t *testing.T) {
	s, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "mail.db")}, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	defer s.Close()

	if err := s.Insert(context.Background(), mailbox.Message{ID: "1", Timestamp: base}); err == nil {
		t.Error("Insert() of an uncategorized message without a categorizer should fail")
	}
}
