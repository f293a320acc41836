package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/store"
)

func seed(s *store.MemoryStore, n int, size int64, age time.Duration) {
	now := time.Now()
	for i := 0; i < n; i++ {
		s.Add(mailbox.Message{
			ID:        fmt.Sprintf("m-%05d", i),
			Category:  "promotional",
			Timestamp: now.Add(-age).Add(time.Duration(i) * time.Second),
			SizeBytes: size,
		})
	}
}

func TestMonitor_GetStatsEstimate(t *testing.T) {
	s := store.NewMemoryStore()
	seed(s, 100, 0, 48*time.Hour)

	m := New(s, Config{QuotaBytes: 10_000, AverageMessageSize: 85, PreferExact: false})

	stats, err := m.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}

	if stats.TotalMessages != 100 {
		t.Errorf("TotalMessages = %d, want 100", stats.TotalMessages)
	}
	if stats.EstimatedUsedBytes != 8500 {
		t.Errorf("EstimatedUsedBytes = %d, want 8500", stats.EstimatedUsedBytes)
	}
	if stats.UtilizationPercent != 85 {
		t.Errorf("UtilizationPercent = %v, want 85", stats.UtilizationPercent)
	}
	if !stats.RecommendedCleanup {
		t.Error("RecommendedCleanup should be true at the warning threshold")
	}
	if stats.Exact {
		t.Error("Exact should be false when PreferExact is off")
	}
	if stats.OldestMessage.IsZero() {
		t.Error("OldestMessage should be set")
	}
}

func TestMonitor_GetStatsExact(t *testing.T) {
	s := store.NewMemoryStore()
	seed(s, 10, 100, time.Hour)

	m := New(s, Config{QuotaBytes: 10_000, AverageMessageSize: 1, PreferExact: true})

	stats, err := m.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if !stats.Exact || stats.EstimatedUsedBytes != 1000 {
		t.Errorf("stats = %+v, want exact 1000 bytes", stats)
	}
	if stats.UtilizationPercent != 10 || stats.RecommendedCleanup {
		t.Errorf("UtilizationPercent = %v, RecommendedCleanup = %v", stats.UtilizationPercent, stats.RecommendedCleanup)
	}
}

func TestMonitor_EmptyStore(t *testing.T) {
	s := store.NewMemoryStore()
	m := New(s, DefaultConfig())

	stats, err := m.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if stats.TotalMessages != 0 || stats.UtilizationPercent != 0 || !stats.OldestMessage.IsZero() {
		t.Errorf("stats = %+v, want zero usage", stats)
	}
	if s.Calls().Oldest != 0 {
		t.Error("OldestTimestamp should not be queried for an empty store")
	}
}

func TestMonitor_StoreUnavailable(t *testing.T) {
	s := store.NewMemoryStore()
	s.SetCountError(errors.New("connection refused"))

	_, err := New(s, DefaultConfig()).GetStats(context.Background())
	if !errors.Is(err, mailbox.ErrStoreUnavailable) {
		t.Fatalf("GetStats() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestUtilization(t *testing.T) {
	tests := []struct {
		name  string
		used  int64
		quota int64
		want  float64
	}{
		{"empty", 0, 100, 0},
		{"half", 50, 100, 50},
		{"over quota clamps", 250, 100, 100},
		{"negative clamps", -5, 100, 0},
		{"no quota", 1, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Utilization(tt.used, tt.quota); got != tt.want {
				t.Errorf("Utilization(%d, %d) = %v, want %v", tt.used, tt.quota, got, tt.want)
			}
		})
	}
}
