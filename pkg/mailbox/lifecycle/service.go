// Package lifecycle is the operator-facing facade over the retention engine.
// The CLI and the admin API call it for storage stats, manual cleanups,
// audit history, usage reports and policy edits.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/audit"
	"mercator-hq/mailsweep/pkg/mailbox/categorize"
	"mercator-hq/mailsweep/pkg/mailbox/escalation"
	"mercator-hq/mailsweep/pkg/mailbox/monitor"
	"mercator-hq/mailsweep/pkg/mailbox/policy"
	"mercator-hq/mailsweep/pkg/mailbox/retention"
)

// Deps are the collaborators of the service. Categorizer is optional.
type Deps struct {
	Monitor     *monitor.Monitor
	Controller  *escalation.Controller
	Scheduler   *retention.Scheduler
	Policies    *policy.Table
	Audit       audit.Log
	Categorizer *categorize.Categorizer
}

// CleanupRequest describes a manual cleanup.
type CleanupRequest struct {
	// Category limits the cleanup to one category.
	Category string `json:"category,omitempty"`

	// RetentionDays overrides the category's retention for this run.
	// Requires Category.
	RetentionDays int `json:"retention_days,omitempty"`

	// Aggressive keeps archival in critical mode and shrinks retention
	// less than an emergency run would.
	Aggressive bool `json:"aggressive,omitempty"`

	// Force runs even when utilization is below the warning threshold.
	Force bool `json:"force,omitempty"`
}

// Report summarizes mailbox health for operators.
type Report struct {
	Stats           mailbox.StorageStats      `json:"stats"`
	Mode            mailbox.Mode              `json:"mode"`
	Recommendations []string                  `json:"recommendations"`
	Policies        []mailbox.RetentionPolicy `json:"policies"`
	LastCleanup     *time.Time                `json:"last_cleanup,omitempty"`
	NextRun         *time.Time                `json:"next_run,omitempty"`

	WarningThreshold  float64 `json:"warning_threshold"`
	CriticalThreshold float64 `json:"critical_threshold"`

	// Unregistered lists categories the categorizer can assign that have
	// no retention policy.
	Unregistered []string  `json:"unregistered,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// ErrInvalidRequest is returned for malformed cleanup requests.
var ErrInvalidRequest = errors.New("invalid cleanup request")

// Service implements the operator operations.
type Service struct {
	deps   Deps
	logger *slog.Logger
}

// New creates a service.
func New(deps Deps) (*Service, error) {
	if deps.Monitor == nil || deps.Controller == nil || deps.Scheduler == nil || deps.Policies == nil || deps.Audit == nil {
		return nil, errors.New("lifecycle service requires monitor, controller, scheduler, policies and audit log")
	}
	return &Service{
		deps:   deps,
		logger: slog.Default().With("component", "mailbox.lifecycle"),
	}, nil
}

// Stats returns current storage statistics and the mode they map to.
func (s *Service) Stats(ctx context.Context) (mailbox.StorageStats, mailbox.Mode, error) {
	stats, err := s.deps.Monitor.GetStats(ctx)
	if err != nil {
		return mailbox.StorageStats{}, mailbox.ModeNormal, err
	}
	return stats, s.deps.Controller.DecideMode(stats), nil
}

// Cleanup runs a manual cleanup under the scheduler's run lock. It returns
// mailbox.ErrRunInProgress when another run is active and
// mailbox.ErrPolicyNotFound for an unknown category.
func (s *Service) Cleanup(ctx context.Context, req CleanupRequest) (mailbox.CleanupResult, error) {
	if req.RetentionDays < 0 {
		return mailbox.CleanupResult{}, fmt.Errorf("%w: retention days must be positive, got %d", ErrInvalidRequest, req.RetentionDays)
	}
	if req.RetentionDays > 0 && req.Category == "" {
		return mailbox.CleanupResult{}, fmt.Errorf("%w: retention days override requires a category", ErrInvalidRequest)
	}

	if req.Category != "" {
		if _, err := s.deps.Policies.Get(req.Category); err != nil {
			return mailbox.CleanupResult{}, err
		}
		s.logger.Info("manual category cleanup requested",
			"category", req.Category,
			"retention_days", req.RetentionDays,
		)
		return s.deps.Scheduler.Trigger(ctx, retention.RunOptions{
			Mode:                  mailbox.ModeNormal,
			Force:                 true,
			Trigger:               mailbox.TriggerCategory,
			Category:              req.Category,
			RetentionDaysOverride: req.RetentionDays,
		})
	}

	_, mode, err := s.Stats(ctx)
	if err != nil {
		return mailbox.CleanupResult{}, err
	}
	s.logger.Info("manual cleanup requested",
		"mode", mode.String(),
		"aggressive", req.Aggressive,
		"force", req.Force,
	)
	return s.deps.Scheduler.Trigger(ctx, retention.RunOptions{
		Mode:       mode,
		Force:      req.Force,
		Trigger:    mailbox.TriggerManual,
		Aggressive: req.Aggressive,
	})
}

// History returns cleanup runs from the last since (all runs when since is
// not positive), oldest first.
func (s *Service) History(ctx context.Context, since time.Duration) ([]mailbox.CleanupResult, error) {
	return s.deps.Audit.History(ctx, since)
}

// Report builds a usage report.
func (s *Service) Report(ctx context.Context) (Report, error) {
	stats, mode, err := s.Stats(ctx)
	if err != nil {
		return Report{}, err
	}

	r := Report{
		Stats:             stats,
		Mode:              mode,
		Recommendations:   escalation.Recommendations(stats.UtilizationPercent),
		Policies:          s.deps.Policies.List(),
		NextRun:           s.deps.Scheduler.NextRun(),
		WarningThreshold:  s.deps.Controller.Warning(),
		CriticalThreshold: s.deps.Controller.Critical(),
		GeneratedAt:       time.Now().UTC(),
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}

	last, ok, err := s.deps.Audit.Last(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read audit log: %w", err)
	}
	if ok {
		end := last.EndTime
		r.LastCleanup = &end
	}

	if s.deps.Categorizer != nil {
		r.Unregistered = s.deps.Categorizer.Unregistered(s.deps.Policies)
	}
	return r, nil
}

// Policies returns the retention policies ordered by priority.
func (s *Service) Policies() []mailbox.RetentionPolicy {
	return s.deps.Policies.List()
}

// UpsertPolicy adds or replaces a retention policy. It takes effect from
// the next run.
func (s *Service) UpsertPolicy(p mailbox.RetentionPolicy) error {
	return s.deps.Policies.Upsert(p)
}
