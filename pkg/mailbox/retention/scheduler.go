package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/escalation"
	"mercator-hq/mailsweep/pkg/mailbox/monitor"
)

// DefaultSchedule runs a check every six hours.
const DefaultSchedule = "@every 6h"

// AuditAppender receives every completed cleanup run.
type AuditAppender interface {
	Append(ctx context.Context, result mailbox.CleanupResult) error
}

// Recorder receives run outcomes for metrics. Implementations must be safe
// for concurrent use.
type Recorder interface {
	RecordStats(stats mailbox.StorageStats, mode mailbox.Mode)
	RecordRun(result mailbox.CleanupResult)
	RecordDropped(trigger mailbox.Trigger)
}

// SchedulerConfig contains configuration for the scheduler.
type SchedulerConfig struct {
	// Schedule is a cron expression or descriptor.
	// Default: "@every 6h"
	Schedule string

	// RunTimeout bounds a single run. 0 means no limit.
	RunTimeout time.Duration

	// RunOnStart performs one check immediately after Start.
	RunOnStart bool
}

// SchedulerDeps are the collaborators of the scheduler. Audit, Notifier and
// Recorder are optional.
type SchedulerDeps struct {
	Engine     *Engine
	Monitor    *monitor.Monitor
	Controller *escalation.Controller
	Audit      AuditAppender
	Notifier   mailbox.Notifier
	Recorder   Recorder
}

// Scheduler runs periodic storage checks and owns the run lock. At most one
// cleanup runs at a time; a trigger that finds the lock held is dropped
// with mailbox.ErrRunInProgress.
type Scheduler struct {
	deps   SchedulerDeps
	config SchedulerConfig
	cron   *cron.Cron
	runMu  sync.Mutex
	mu     sync.Mutex
	wg     sync.WaitGroup
	logger *slog.Logger

	running bool
}

// NewScheduler creates a scheduler. It does not start until Start is called.
func NewScheduler(deps SchedulerDeps, config SchedulerConfig) (*Scheduler, error) {
	if deps.Engine == nil || deps.Monitor == nil || deps.Controller == nil {
		return nil, errors.New("scheduler requires engine, monitor and controller")
	}
	if config.Schedule == "" {
		config.Schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", config.Schedule, err)
	}

	return &Scheduler{
		deps:   deps,
		config: config,
		cron:   cron.New(),
		logger: slog.Default().With("component", "mailbox.scheduler"),
	}, nil
}

// Start schedules periodic checks. The scheduler stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runScheduled(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("cleanup scheduler started",
		"schedule", s.config.Schedule,
		"run_timeout", s.config.RunTimeout,
	)

	if s.config.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runScheduled(ctx)
		}()
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for in-flight work to finish: the
// scheduled and start-up checks, and any run holding the run lock. When Stop
// returns, the last run has been appended to the audit log.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.wg.Wait()

	// Manual triggers are not tracked by the wait group.
	s.runMu.Lock()
	s.runMu.Unlock()

	s.running = false
	s.logger.Info("cleanup scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled check, or nil when not scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	result, err := s.Tick(ctx)
	switch {
	case errors.Is(err, mailbox.ErrRunInProgress):
		// Logged by Trigger.
	case err != nil:
		s.logger.Error("scheduled cleanup failed", "error", err)
	case result.Skipped:
		s.logger.Debug("scheduled check completed, no cleanup needed")
	default:
		s.logger.Info("scheduled cleanup completed",
			"run_id", result.ID,
			"mode", result.Mode.String(),
			"deleted_count", result.DeletedCount,
			"errors", len(result.Errors),
		)
	}
}

// Tick performs one check: it reads storage stats, decides the mode and,
// when the mode is Warning or Critical, runs a cleanup. The operator is
// notified only once the run lock is held; a dropped tick sends nothing.
func (s *Scheduler) Tick(ctx context.Context) (mailbox.CleanupResult, error) {
	stats, err := s.deps.Monitor.GetStats(ctx)
	if err != nil {
		return mailbox.CleanupResult{}, err
	}

	mode := s.deps.Controller.DecideMode(stats)
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordStats(stats, mode)
	}

	if mode == mailbox.ModeNormal {
		return mailbox.CleanupResult{Trigger: mailbox.TriggerScheduled, Mode: mode, Skipped: true}, nil
	}

	s.logger.Warn("storage threshold exceeded",
		"mode", mode.String(),
		"utilization_percent", stats.UtilizationPercent,
		"total_messages", stats.TotalMessages,
	)

	return s.trigger(ctx, RunOptions{
		Mode:    mode,
		Force:   true,
		Trigger: mailbox.TriggerScheduled,
	}, func() {
		s.notify(ctx, stats, mode)
	})
}

// Trigger runs a cleanup under the run lock. It returns
// mailbox.ErrRunInProgress immediately when another run holds the lock;
// the request is not queued. Completed runs are appended to the audit log.
func (s *Scheduler) Trigger(ctx context.Context, opts RunOptions) (mailbox.CleanupResult, error) {
	return s.trigger(ctx, opts, nil)
}

// trigger calls locked, when set, after the run lock is acquired.
func (s *Scheduler) trigger(ctx context.Context, opts RunOptions, locked func()) (mailbox.CleanupResult, error) {
	if !s.runMu.TryLock() {
		s.logger.Warn("cleanup request dropped, another run is in progress",
			"trigger", string(opts.Trigger),
			"mode", opts.Mode.String(),
		)
		if s.deps.Recorder != nil {
			s.deps.Recorder.RecordDropped(opts.Trigger)
		}
		return mailbox.CleanupResult{}, mailbox.ErrRunInProgress
	}
	defer s.runMu.Unlock()

	if locked != nil {
		locked()
	}

	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	result, err := s.deps.Engine.RunWithOptions(ctx, opts)
	if err != nil {
		return result, err
	}
	if result.Skipped {
		return result, nil
	}

	if s.deps.Audit != nil {
		if err := s.deps.Audit.Append(context.WithoutCancel(ctx), result); err != nil {
			s.logger.Error("failed to append cleanup result to audit log",
				"run_id", result.ID,
				"error", err,
			)
		}
	}
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordRun(result)
	}

	return result, nil
}

func (s *Scheduler) notify(ctx context.Context, stats mailbox.StorageStats, mode mailbox.Mode) {
	if s.deps.Notifier == nil {
		return
	}
	subject, body := escalation.Alert(stats, mode)
	if err := s.deps.Notifier.Notify(ctx, escalation.Severity(mode), subject, body); err != nil {
		s.logger.Error("storage notification failed", "mode", mode.String(), "error", err)
	}
}
