package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/audit"
	"mercator-hq/mailsweep/pkg/mailbox/categorize"
	"mercator-hq/mailsweep/pkg/mailbox/escalation"
	"mercator-hq/mailsweep/pkg/mailbox/monitor"
	"mercator-hq/mailsweep/pkg/mailbox/policy"
	"mercator-hq/mailsweep/pkg/mailbox/retention"
	"mercator-hq/mailsweep/pkg/mailbox/store"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const msgSize = 1000

type fixture struct {
	svc   *Service
	store *store.MemoryStore
	log   *audit.MemoryLog
}

// newFixture builds a service over a store with quota for 1000 messages.
func newFixture(t *testing.T, categorizer *categorize.Categorizer) *fixture {
	t.Helper()

	s := store.NewMemoryStore()
	table := policy.NewDefaultTable()
	ctrl := escalation.NewDefault()
	mon := monitor.New(s, monitor.Config{QuotaBytes: 1000 * msgSize, AverageMessageSize: msgSize})

	eng, err := retention.NewEngine(retention.Deps{
		Store:      s,
		Policies:   table,
		Monitor:    mon,
		Controller: ctrl,
	}, &retention.Config{
		NewPacer: func() retention.Pacer { return retention.NewFixedPacer(0) },
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}

	log := audit.NewMemoryLog()
	sched, err := retention.NewScheduler(retention.SchedulerDeps{
		Engine:     eng,
		Monitor:    mon,
		Controller: ctrl,
		Audit:      log,
	}, retention.SchedulerConfig{})
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}

	svc, err := New(Deps{
		Monitor:     mon,
		Controller:  ctrl,
		Scheduler:   sched,
		Policies:    table,
		Audit:       log,
		Categorizer: categorizer,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return &fixture{svc: svc, store: s, log: log}
}

func (f *fixture) add(category string, n, ageDays int) {
	for i := 0; i < n; i++ {
		f.store.Add(mailbox.Message{
			ID:        fmt.Sprintf("%s-%d-%d", category, ageDays, i),
			Category:  category,
			Timestamp: now.AddDate(0, 0, -ageDays),
			SizeBytes: msgSize,
		})
	}
}

func TestService_Stats(t *testing.T) {
	f := newFixture(t, nil)
	f.add(policy.CategoryPromotional, 900, 1)

	stats, mode, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if stats.TotalMessages != 900 || math.Abs(stats.UtilizationPercent-90) > 1e-9 {
		t.Errorf("stats = %+v", stats)
	}
	if mode != mailbox.ModeWarning {
		t.Errorf("mode = %v, want warning", mode)
	}
}

func TestService_CategoryCleanupWithOverride(t *testing.T) {
	f := newFixture(t, nil)
	f.add(policy.CategoryPromotional, 10, 5) // inside the 14-day policy
	f.add(policy.CategoryPromotional, 5, 1)

	result, err := f.svc.Cleanup(context.Background(), CleanupRequest{
		Category:      policy.CategoryPromotional,
		RetentionDays: 3,
	})
	if err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if result.DeletedCount != 10 || result.Trigger != mailbox.TriggerCategory {
		t.Errorf("result deleted %d, trigger %s", result.DeletedCount, result.Trigger)
	}

	p, _ := f.svc.deps.Policies.Get(policy.CategoryPromotional)
	if p.RetentionDays != 14 {
		t.Errorf("override leaked into policy table: %d days", p.RetentionDays)
	}

	history, err := f.svc.History(context.Background(), 0)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 1 || history[0].ID != result.ID {
		t.Errorf("History() = %d runs", len(history))
	}
}

func TestService_CleanupValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     CleanupRequest
		wantErr error
	}{
		{"unknown category", CleanupRequest{Category: "newsletters"}, mailbox.ErrPolicyNotFound},
		{"override without category", CleanupRequest{RetentionDays: 3}, ErrInvalidRequest},
		{"negative override", CleanupRequest{Category: policy.CategoryPromotional, RetentionDays: -1}, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			_, err := f.svc.Cleanup(context.Background(), tt.req)
			if err == nil {
				t.Fatal("Cleanup() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Cleanup() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_ManualCleanup(t *testing.T) {
	tests := []struct {
		name        string
		messages    int
		force       bool
		wantSkipped bool
		wantMode    mailbox.Mode
		wantAudit   int
	}{
		{"below warning is skipped", 500, false, true, mailbox.ModeNormal, 0},
		{"below warning forced", 500, true, false, mailbox.ModeNormal, 1},
		{"warning runs", 900, false, false, mailbox.ModeWarning, 1},
		{"critical runs as emergency", 960, false, false, mailbox.ModeCritical, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.add(policy.CategoryPromotional, tt.messages, 30)

			result, err := f.svc.Cleanup(context.Background(), CleanupRequest{Force: tt.force})
			if err != nil {
				t.Fatalf("Cleanup() failed: %v", err)
			}
			if result.Skipped != tt.wantSkipped || result.Mode != tt.wantMode {
				t.Errorf("Skipped = %v, Mode = %v", result.Skipped, result.Mode)
			}
			if !tt.wantSkipped && result.DeletedCount != tt.messages {
				t.Errorf("DeletedCount = %d, want %d", result.DeletedCount, tt.messages)
			}
			history, _ := f.log.History(context.Background(), 0)
			if len(history) != tt.wantAudit {
				t.Errorf("audit holds %d runs, want %d", len(history), tt.wantAudit)
			}
		})
	}
}

func TestService_Report(t *testing.T) {
	rules := append(categorize.DefaultRules(), categorize.Rule{
		Name:     "newsletter",
		Category: "newsletters",
		Field:    categorize.FieldSubject,
		Any:      []string{"newsletter"},
	})
	c, err := categorize.New(rules, "")
	if err != nil {
		t.Fatalf("categorize.New() failed: %v", err)
	}

	f := newFixture(t, c)
	f.add(policy.CategoryPromotional, 970, 30)

	ctx := context.Background()
	report, err := f.svc.Report(ctx)
	if err != nil {
		t.Fatalf("Report() failed: %v", err)
	}
	if report.Mode != mailbox.ModeCritical {
		t.Errorf("Mode = %v, want critical", report.Mode)
	}
	if len(report.Recommendations) != 4 {
		t.Errorf("Recommendations = %v", report.Recommendations)
	}
	if report.LastCleanup != nil {
		t.Errorf("LastCleanup = %v before any cleanup", report.LastCleanup)
	}
	if len(report.Policies) != 10 {
		t.Errorf("Policies = %d, want 10", len(report.Policies))
	}
	if len(report.Unregistered) != 1 || report.Unregistered[0] != "newsletters" {
		t.Errorf("Unregistered = %v", report.Unregistered)
	}
	if report.WarningThreshold != escalation.DefaultWarningThreshold {
		t.Errorf("WarningThreshold = %v", report.WarningThreshold)
	}

	if _, err := f.svc.Cleanup(ctx, CleanupRequest{}); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	report, err = f.svc.Report(ctx)
	if err != nil {
		t.Fatalf("Report() failed: %v", err)
	}
	if report.LastCleanup == nil || !report.LastCleanup.Equal(now) {
		t.Errorf("LastCleanup = %v, want %v", report.LastCleanup, now)
	}
	if report.Mode != mailbox.ModeNormal || len(report.Recommendations) != 0 {
		t.Errorf("after cleanup Mode = %v, Recommendations = %v", report.Mode, report.Recommendations)
	}
}

func TestService_UpsertPolicy(t *testing.T) {
	f := newFixture(t, nil)

	err := f.svc.UpsertPolicy(mailbox.RetentionPolicy{
		Category:      "newsletters",
		RetentionDays: 10,
		Priority:      mailbox.PriorityLow,
	})
	if err != nil {
		t.Fatalf("UpsertPolicy() failed: %v", err)
	}
	if len(f.svc.Policies()) != 11 {
		t.Errorf("Policies() = %d, want 11", len(f.svc.Policies()))
	}

	if err := f.svc.UpsertPolicy(mailbox.RetentionPolicy{Category: "bad", RetentionDays: 0}); err == nil {
		t.Error("UpsertPolicy() with zero retention should fail")
	}
}
