package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/lifecycle"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"json", FormatJSON, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("FormatJSON should give a JSONFormatter")
	}
	if _, ok := NewFormatter(FormatText).(*TextFormatter); !ok {
		t.Error("FormatText should give a TextFormatter")
	}
}

func TestTextFormatter_Plain(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextFormatter{}).FormatTo(&buf, "hello"); err != nil {
		t.Fatalf("FormatTo() failed: %v", err)
	}
	if buf.String() != "hello\n" {
		t.Errorf("got %q", buf.String())
	}
}

func render(t *testing.T, format OutputFormat, v any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := NewFormatter(format).FormatTo(&buf, v); err != nil {
		t.Fatalf("FormatTo() failed: %v", err)
	}
	return buf.String()
}

func TestStatsView(t *testing.T) {
	v := StatsView{
		Stats: mailbox.StorageStats{
			TotalMessages:      12345,
			EstimatedUsedBytes: 900 << 20,
			QuotaBytes:         1 << 30,
			UtilizationPercent: 87.89,
			RecommendedCleanup: true,
		},
		Mode: mailbox.ModeWarning,
	}

	text := render(t, FormatText, v)
	for _, want := range []string{"12,345", "900 MiB (estimated)", "1.0 GiB", "87.9%", "warning", "recommended"} {
		if !strings.Contains(text, want) {
			t.Errorf("text output missing %q:\n%s", want, text)
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(render(t, FormatJSON, v)), &decoded); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if decoded["mode"] != "warning" {
		t.Errorf("json mode = %v", decoded["mode"])
	}
}

func TestCleanupView(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	v := CleanupView{mailbox.CleanupResult{
		ID:                 "run-7",
		Trigger:            mailbox.TriggerScheduled,
		Mode:               mailbox.ModeCritical,
		DeletedCount:       1500,
		ArchivedCount:      0,
		StorageFreedBytes:  3 << 20,
		PerCategory:        map[string]int{"promotional": 1000, "tickets": 500},
		Errors:             []string{"delete message m1: timeout"},
		ArchivalSuppressed: true,
		StartTime:          start,
		EndTime:            start.Add(1500 * time.Millisecond),
	}}

	text := render(t, FormatText, v)
	for _, want := range []string{"run-7", "scheduled", "critical", "1,500 messages", "3.0 MiB", "suppressed", "1.5s", "promotional", "delete message m1"} {
		if !strings.Contains(text, want) {
			t.Errorf("text output missing %q:\n%s", want, text)
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(render(t, FormatJSON, v)), &decoded); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if decoded["id"] != "run-7" || decoded["deleted_count"] != float64(1500) {
		t.Errorf("json fields not flattened: %v", decoded)
	}
}

func TestCleanupView_Skipped(t *testing.T) {
	text := render(t, FormatText, CleanupView{mailbox.CleanupResult{ID: "run-1", Skipped: true}})
	if !strings.Contains(text, "skipped") || strings.Contains(text, "Deleted") {
		t.Errorf("unexpected skipped output:\n%s", text)
	}
}

func TestHistoryView(t *testing.T) {
	if got := render(t, FormatText, HistoryView(nil)); !strings.Contains(got, "No cleanup runs") {
		t.Errorf("empty history = %q", got)
	}

	runs := HistoryView{
		{Trigger: mailbox.TriggerManual, Mode: mailbox.ModeWarning, DeletedCount: 4, StartTime: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{Trigger: mailbox.TriggerCategory, Category: "spam", DeletedCount: 2},
	}
	text := render(t, FormatText, runs)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), text)
	}
	if !strings.Contains(lines[1], "2026-03-01T10:00:00Z") || !strings.Contains(lines[2], "spam") {
		t.Errorf("unexpected rows:\n%s", text)
	}

	var decoded []map[string]any
	if err := json.Unmarshal([]byte(render(t, FormatJSON, runs)), &decoded); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if len(decoded) != 2 {
		t.Errorf("json history has %d entries", len(decoded))
	}
}

func TestPoliciesView(t *testing.T) {
	text := render(t, FormatText, PoliciesView{
		{Category: "tickets", RetentionDays: 30, Priority: mailbox.PriorityHigh, ArchiveBeforeDelete: true},
	})
	for _, want := range []string{"CATEGORY", "tickets", "30d", "high", "yes"} {
		if !strings.Contains(text, want) {
			t.Errorf("text output missing %q:\n%s", want, text)
		}
	}
}

func TestReportView(t *testing.T) {
	v := ReportView{lifecycle.Report{
		Stats:             mailbox.StorageStats{TotalMessages: 10, QuotaBytes: 1 << 20, UtilizationPercent: 97},
		Mode:              mailbox.ModeCritical,
		Recommendations:   []string{"run an emergency cleanup"},
		WarningThreshold:  0.85,
		CriticalThreshold: 0.95,
		Unregistered:      []string{"newsletters"},
	}}

	text := render(t, FormatText, v)
	for _, want := range []string{"critical (warning at 85%, critical at 95%)", "never", "run an emergency cleanup", "newsletters"} {
		if !strings.Contains(text, want) {
			t.Errorf("text output missing %q:\n%s", want, text)
		}
	}
}

func TestCategorizeView(t *testing.T) {
	if got := render(t, FormatText, CategorizeView{Category: "newsletters"}); !strings.Contains(got, "no retention policy") {
		t.Errorf("got %q", got)
	}
	p := &mailbox.RetentionPolicy{Category: "promotional", RetentionDays: 14, Priority: mailbox.PriorityLow}
	if got := render(t, FormatText, CategorizeView{Category: "promotional", Policy: p}); !strings.Contains(got, "kept 14 days") {
		t.Errorf("got %q", got)
	}
}
