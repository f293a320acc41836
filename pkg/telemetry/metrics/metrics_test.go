package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/mailsweep/pkg/config"
	"mercator-hq/mailsweep/pkg/mailbox"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector(config.MetricsConfig{Namespace: "test"}, prometheus.NewRegistry())
}

func TestCollector_RecordStats(t *testing.T) {
	c := newTestCollector(t)

	c.RecordStats(mailbox.StorageStats{
		TotalMessages:      1200,
		EstimatedUsedBytes: 900,
		QuotaBytes:         1000,
		UtilizationPercent: 90,
	}, mailbox.ModeWarning)

	tests := []struct {
		name  string
		gauge prometheus.Gauge
		want  float64
	}{
		{"utilization", c.storage.utilization, 90},
		{"messages", c.storage.messages, 1200},
		{"used bytes", c.storage.usedBytes, 900},
		{"quota bytes", c.storage.quotaBytes, 1000},
		{"mode", c.storage.mode, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.gauge); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollector_RecordRun(t *testing.T) {
	c := newTestCollector(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c.RecordRun(mailbox.CleanupResult{
		Trigger:           mailbox.TriggerScheduled,
		Mode:              mailbox.ModeCritical,
		DeletedCount:      5,
		ArchivedCount:     2,
		StorageFreedBytes: 4096,
		PerCategory:       map[string]int{"spam": 3, "tickets": 2, "empty": 0},
		Errors: []string{
			"delete message m1: boom",
			"archive message m2: boom",
			"archive message m3: boom",
		},
		StartTime: start,
		EndTime:   start.Add(2 * time.Second),
	})

	if got := testutil.ToFloat64(c.runs.runsTotal.WithLabelValues("critical", "scheduled", OutcomePartial)); got != 1 {
		t.Errorf("runs_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.runs.deletedTotal.WithLabelValues("spam")); got != 3 {
		t.Errorf("deleted{spam} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.runs.deletedTotal.WithLabelValues("tickets")); got != 2 {
		t.Errorf("deleted{tickets} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.runs.archivedTotal); got != 2 {
		t.Errorf("archived = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.runs.freedBytes); got != 4096 {
		t.Errorf("freed bytes = %v, want 4096", got)
	}
	if got := testutil.ToFloat64(c.runs.errorsTotal.WithLabelValues(mailbox.ErrorKindArchive)); got != 2 {
		t.Errorf("errors{archive} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.runs.errorsTotal.WithLabelValues(mailbox.ErrorKindDelete)); got != 1 {
		t.Errorf("errors{delete} = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.runs.deletedTotal); n != 2 {
		t.Errorf("deleted series = %d, want 2 (zero counts skipped)", n)
	}
	if n := testutil.CollectAndCount(c.runs.duration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestCollector_RecordRun_Skipped(t *testing.T) {
	c := newTestCollector(t)

	c.RecordRun(mailbox.CleanupResult{Trigger: mailbox.TriggerScheduled, Skipped: true})

	if got := testutil.ToFloat64(c.runs.runsTotal.WithLabelValues("normal", "scheduled", OutcomeSkipped)); got != 1 {
		t.Errorf("runs_total{skipped} = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.runs.deletedTotal); n != 0 {
		t.Errorf("deleted series = %d, want 0", n)
	}
}

func TestCollector_RecordDropped(t *testing.T) {
	c := newTestCollector(t)

	c.RecordDropped(mailbox.TriggerManual)
	c.RecordDropped(mailbox.TriggerManual)

	if got := testutil.ToFloat64(c.runs.droppedTotal.WithLabelValues("manual")); got != 2 {
		t.Errorf("dropped{manual} = %v, want 2", got)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name   string
		result mailbox.CleanupResult
		want   string
	}{
		{"success", mailbox.CleanupResult{}, OutcomeSuccess},
		{"partial", mailbox.CleanupResult{Errors: []string{"x"}}, OutcomePartial},
		{"aborted", mailbox.CleanupResult{Aborted: true, Errors: []string{"run aborted"}}, OutcomeAborted},
		{"skipped", mailbox.CleanupResult{Skipped: true}, OutcomeSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.result); got != tt.want {
				t.Errorf("Outcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("expected first two values to be allowed")
	}
	if cl.Allow("c") {
		t.Error("expected third value to be rejected")
	}
	if !cl.Allow("a") {
		t.Error("expected tracked value to stay allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}
}

func TestCollector_CategoryOverflow(t *testing.T) {
	c := newTestCollector(t)
	c.categories = NewCardinalityLimiter(1)

	c.RecordRun(mailbox.CleanupResult{PerCategory: map[string]int{"spam": 1}})
	c.RecordRun(mailbox.CleanupResult{PerCategory: map[string]int{"tickets": 4}})

	if got := testutil.ToFloat64(c.runs.deletedTotal.WithLabelValues(overflowCategory)); got != 4 {
		t.Errorf("deleted{%s} = %v, want 4", overflowCategory, got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := newTestCollector(t)
	c.RecordDropped(mailbox.TriggerScheduled)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if !strings.Contains(string(body), `test_cleanup_runs_dropped_total{trigger="scheduled"} 1`) {
		t.Errorf("exposition missing dropped counter:\n%s", body)
	}
}
