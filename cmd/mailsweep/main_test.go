package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/mailsweep/pkg/cli"
	"mercator-hq/mailsweep/pkg/config"
	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/categorize"
	"mercator-hq/mailsweep/pkg/mailbox/lifecycle"
	"mercator-hq/mailsweep/pkg/mailbox/notify"
	"mercator-hq/mailsweep/pkg/mailbox/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Store.SQLite.Path = filepath.Join(dir, "mail.db")
	cfg.Audit.SQLite.Path = filepath.Join(dir, "audit.db")
	cfg.Archive.File.Directory = filepath.Join(dir, "archive")
	cfg.Cleanup.Pacing.Interval = time.Millisecond
	cfg.Telemetry.Logging.Level = "error"
	return cfg
}

func seed(t *testing.T, cfg *config.Config, msgs ...mailbox.Message) {
	t.Helper()
	s, err := store.NewSQLiteStore(store.SQLiteConfig{Path: cfg.Store.SQLite.Path}, categorize.NewDefault())
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	defer s.Close()
	if err := s.Insert(context.Background(), msgs...); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
}

func resetFlags() {
	cfgFile = ""
	verbose = false
	outputFormat = "text"
	cleanupFlags.category = ""
	cleanupFlags.retentionDays = 0
	cleanupFlags.aggressive = false
	cleanupFlags.force = false
	auditFlags.since = ""
	categorizeFlags.subject = ""
	categorizeFlags.sender = ""
	categorizeFlags.body = ""
	runFlags.listenAddress = ""
	runFlags.dryRun = false
}

// execute runs the root command with cfg installed as the process
// configuration and returns what it wrote to stdout.
func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	config.SetConfig(cfg)
	t.Cleanup(func() { config.SetConfig(nil) })
	resetFlags()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func decode(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("Unmarshal() failed: %v\noutput: %s", err, out)
	}
}

func TestCleanupAuditStats(t *testing.T) {
	cfg := testConfig(t)
	old := time.Now().Add(-30 * 24 * time.Hour)
	seed(t, cfg,
		mailbox.Message{ID: "p1", Subject: "spring promo", Timestamp: old, SizeBytes: 1000},
		mailbox.Message{ID: "p2", Subject: "summer promo", Timestamp: old, SizeBytes: 2000},
		mailbox.Message{ID: "p3", Subject: "fresh promo", Timestamp: time.Now(), SizeBytes: 500},
	)

	out, err := execute(t, cfg, "cleanup", "--category", "promotional", "-o", "json")
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	var result mailbox.CleanupResult
	decode(t, out, &result)
	if result.DeletedCount != 2 {
		t.Errorf("DeletedCount = %d, want 2", result.DeletedCount)
	}
	if result.Trigger != mailbox.TriggerCategory {
		t.Errorf("Trigger = %q, want %q", result.Trigger, mailbox.TriggerCategory)
	}
	if result.StorageFreedBytes != 3000 {
		t.Errorf("StorageFreedBytes = %d, want 3000", result.StorageFreedBytes)
	}

	out, err = execute(t, cfg, "audit", "--since", "1d", "-o", "json")
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}
	var history []mailbox.CleanupResult
	decode(t, out, &history)
	if len(history) != 1 || history[0].ID != result.ID {
		t.Errorf("audit history = %+v, want the cleanup run", history)
	}

	out, err = execute(t, cfg, "stats", "-o", "json")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	var stats struct {
		Stats mailbox.StorageStats `json:"stats"`
		Mode  string               `json:"mode"`
	}
	decode(t, out, &stats)
	if stats.Stats.TotalMessages != 1 {
		t.Errorf("TotalMessages = %d, want 1", stats.Stats.TotalMessages)
	}
	if stats.Mode != "normal" {
		t.Errorf("Mode = %q, want normal", stats.Mode)
	}
}

func TestCleanupBelowThresholdSkips(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg, mailbox.Message{ID: "p1", Subject: "promo", Timestamp: time.Now().Add(-30 * 24 * time.Hour)})

	out, err := execute(t, cfg, "cleanup")
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if !strings.Contains(out, "skipped") {
		t.Errorf("expected skipped run, got:\n%s", out)
	}

	out, err = execute(t, cfg, "audit")
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}
	if !strings.Contains(out, "No cleanup runs") {
		t.Errorf("skipped run should not be audited, got:\n%s", out)
	}
}

func TestCleanupErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  error
		wantCode int
	}{
		{
			name:     "override without category",
			args:     []string{"cleanup", "--retention-days", "3"},
			wantErr:  lifecycle.ErrInvalidRequest,
			wantCode: cli.ExitFailure,
		},
		{
			name:     "unknown category",
			args:     []string{"cleanup", "--category", "newsletters"},
			wantErr:  mailbox.ErrPolicyNotFound,
			wantCode: cli.ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, testConfig(t), tt.args...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if code := cli.ExitCode(err); code != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d", code, tt.wantCode)
			}
		})
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := execute(t, testConfig(t), "stats", "-o", "csv")
	if err == nil {
		t.Fatal("expected error for unknown output format")
	}
	if code := cli.ExitCode(err); code != cli.ExitConfig {
		t.Errorf("ExitCode() = %d, want %d", code, cli.ExitConfig)
	}
}

func TestAuditInvalidSince(t *testing.T) {
	_, err := execute(t, testConfig(t), "audit", "--since", "yesterday")
	if code := cli.ExitCode(err); code != cli.ExitConfig {
		t.Errorf("ExitCode() = %d, want %d (err %v)", code, cli.ExitConfig, err)
	}
}

func TestReport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Categorizer.Rules = []config.RuleEntry{
		{Name: "newsletter", Category: "newsletters", Field: "subject", Any: []string{"newsletter"}},
	}

	out, err := execute(t, cfg, "report")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	for _, want := range []string{"Last cleanup:", "never", "newsletters", "promotional"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestPoliciesList(t *testing.T) {
	cfg := testConfig(t)
	cfg.Policies.Entries = []config.PolicyEntry{
		{Category: "promotional", RetentionDays: 3, Priority: "low"},
	}

	out, err := execute(t, cfg, "policies", "list", "-o", "json")
	if err != nil {
		t.Fatalf("policies list failed: %v", err)
	}
	var policies []mailbox.RetentionPolicy
	decode(t, out, &policies)

	found := false
	for _, p := range policies {
		if p.Category == "promotional" {
			found = true
			if p.RetentionDays != 3 {
				t.Errorf("promotional RetentionDays = %d, want 3", p.RetentionDays)
			}
		}
	}
	if !found {
		t.Error("promotional policy missing")
	}
}

func TestPoliciesValidate(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "policies.yaml")
	if err := os.WriteFile(valid, []byte(`policies:
  - category: newsletters
    retention_days: 14
    priority: low
  - category: invoices
    retention_days: 365
    priority: high
    archive_before_delete: true
`), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	invalid := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(invalid, []byte("policies:\n  - category: x\n    retention_days: 0\n    priority: low\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	out, err := execute(t, testConfig(t), "policies", "validate", valid)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "2 policies valid") || !strings.Contains(out, "invoices") {
		t.Errorf("unexpected output:\n%s", out)
	}

	_, err = execute(t, testConfig(t), "policies", "validate", invalid)
	if !errors.Is(err, mailbox.ErrInvalidPolicy) {
		t.Errorf("error = %v, want ErrInvalidPolicy", err)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		want       string
		wantPolicy bool
	}{
		{"promotional subject", []string{"--subject", "weekly promo"}, "promotional", true},
		{"system sender", []string{"--sender", "admin@league.example"}, "system_alerts", true},
		{"fallback", []string{"--subject", "hello"}, config.DefaultCategory, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"categorize", "-o", "json"}, tt.args...)
			out, err := execute(t, testConfig(t), args...)
			if err != nil {
				t.Fatalf("categorize failed: %v", err)
			}
			var view cli.CategorizeView
			decode(t, out, &view)
			if view.Category != tt.want {
				t.Errorf("Category = %q, want %q", view.Category, tt.want)
			}
			if (view.Policy != nil) != tt.wantPolicy {
				t.Errorf("Policy = %+v, wantPolicy %v", view.Policy, tt.wantPolicy)
			}
		})
	}
}

func TestRunDryRun(t *testing.T) {
	out, err := execute(t, testConfig(t), "run", "--dry-run")
	if err != nil {
		t.Fatalf("run --dry-run failed: %v", err)
	}
	for _, want := range []string{"Configuration loaded", "Store ready (sqlite)", "Configuration valid"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, nil, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "Mailsweep "+Version) {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestBuildNotifier(t *testing.T) {
	n, err := buildNotifier(config.NotifyConfig{})
	if err != nil {
		t.Fatalf("buildNotifier() failed: %v", err)
	}
	if got := len(n.(notify.Multi)); got != 1 {
		t.Errorf("got %d notifiers, want 1", got)
	}

	n, err = buildNotifier(config.NotifyConfig{Webhook: config.WebhookConfig{URL: "http://127.0.0.1:1/hook"}})
	if err != nil {
		t.Fatalf("buildNotifier() failed: %v", err)
	}
	if got := len(n.(notify.Multi)); got != 2 {
		t.Errorf("got %d notifiers, want 2", got)
	}
}

func TestBuildBackends_Unsupported(t *testing.T) {
	if _, err := buildStore(config.StoreConfig{Backend: "pop3"}, nil); err == nil {
		t.Error("buildStore() should reject unknown backend")
	}
	if _, err := buildArchive(context.Background(), config.ArchiveConfig{Backend: "tape"}); err == nil {
		t.Error("buildArchive() should reject unknown backend")
	}
	if _, err := buildAudit(config.AuditConfig{Backend: "csv"}); err == nil {
		t.Error("buildAudit() should reject unknown backend")
	}
}

func TestBuildPolicies_Layering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.json")
	if err := os.WriteFile(path, []byte(`{"policies":[{"category":"promotional","retention_days":10,"priority":"low"}]}`), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	table, err := buildPolicies(config.PoliciesConfig{
		File:    path,
		Entries: []config.PolicyEntry{{Category: "newsletters", RetentionDays: 5, Priority: "low"}},
	})
	if err != nil {
		t.Fatalf("buildPolicies() failed: %v", err)
	}

	p, err := table.Get("promotional")
	if err != nil || p.RetentionDays != 10 {
		t.Errorf("promotional = %+v, %v; want file override of 10 days", p, err)
	}
	if !table.Has("newsletters") {
		t.Error("inline entry missing")
	}
	if !table.Has("transfer_confirmations") {
		t.Error("built-in policy missing")
	}
}
