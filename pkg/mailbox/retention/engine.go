package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/escalation"
	"mercator-hq/mailsweep/pkg/mailbox/monitor"
	"mercator-hq/mailsweep/pkg/mailbox/policy"
)

// EmergencyNote is attached to results of emergency runs.
const EmergencyNote = "EMERGENCY CLEANUP PERFORMED - reduced retention periods, archival skipped"

// Config contains configuration for the cleanup engine.
type Config struct {
	// BatchSize is the page size used when listing candidates.
	// Default: 100
	BatchSize int

	// EmergencyFactor scales retention in emergency (critical) runs.
	// Archival is skipped in emergency runs. Default: 0.5
	EmergencyFactor float64

	// AggressiveFactor scales retention in critical runs that keep
	// archival. Default: 0.7
	AggressiveFactor float64

	// Parallelism is the number of categories processed concurrently.
	// Default: 1
	Parallelism int

	// FetchRetries is the number of retries for a failed page fetch.
	// Default: 3
	FetchRetries uint64

	// FetchBackoff is the initial delay between fetch retries.
	// Default: 200ms
	FetchBackoff time.Duration

	// Pacing spaces out batches within a category.
	Pacing PacingConfig

	// NewPacer overrides Pacing when set.
	NewPacer func() Pacer

	// Now overrides the clock. Default: time.Now
	Now func() time.Time
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:        100,
		EmergencyFactor:  0.5,
		AggressiveFactor: 0.7,
		Parallelism:      1,
		FetchRetries:     3,
		FetchBackoff:     200 * time.Millisecond,
		Pacing:           PacingConfig{Strategy: "fixed", Interval: 100 * time.Millisecond},
	}
}

// Deps are the collaborators of the engine. Archive and Tracer are optional.
type Deps struct {
	Store      mailbox.MailStore
	Policies   *policy.Table
	Monitor    *monitor.Monitor
	Controller *escalation.Controller
	Archive    mailbox.ArchiveSink
	Tracer     trace.Tracer
}

// RunOptions selects what a cleanup run does.
type RunOptions struct {
	Mode    mailbox.Mode
	Force   bool
	Trigger mailbox.Trigger

	// Category limits the run to one category.
	Category string

	// RetentionDaysOverride replaces the category's retention for this run
	// only. Requires Category.
	RetentionDaysOverride int

	// Aggressive makes a critical run shrink retention by AggressiveFactor
	// while still archiving, instead of running as an emergency.
	Aggressive bool
}

// Engine evicts messages older than their category's retention.
type Engine struct {
	deps     Deps
	config   *Config
	newPacer func() Pacer
	now      func() time.Time
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewEngine creates a cleanup engine.
func NewEngine(deps Deps, config *Config) (*Engine, error) {
	if deps.Store == nil || deps.Policies == nil || deps.Monitor == nil || deps.Controller == nil {
		return nil, errors.New("engine requires store, policies, monitor and controller")
	}
	if config == nil {
		config = DefaultConfig()
	}

	def := DefaultConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.EmergencyFactor <= 0 || config.EmergencyFactor >= 1 {
		config.EmergencyFactor = def.EmergencyFactor
	}
	if config.AggressiveFactor <= 0 || config.AggressiveFactor >= 1 {
		config.AggressiveFactor = def.AggressiveFactor
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}

	newPacer := config.NewPacer
	if newPacer == nil {
		f, err := NewPacerFactory(config.Pacing)
		if err != nil {
			return nil, err
		}
		newPacer = f
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("mercator-hq/mailsweep/retention")
	}

	return &Engine{
		deps:     deps,
		config:   config,
		newPacer: newPacer,
		now:      now,
		tracer:   tracer,
		logger:   slog.Default().With("component", "mailbox.retention"),
	}, nil
}

// EffectiveRetentionDays shrinks days by factor for critical runs. The
// result is at least 1 and, for days >= 2, strictly less than days.
// Factors outside (0, 1) leave days unchanged.
func EffectiveRetentionDays(days int, factor float64) int {
	if factor <= 0 || factor >= 1 {
		return days
	}
	eff := int(math.Floor(float64(days) * factor))
	if eff < 1 {
		eff = 1
	}
	return eff
}

// Run executes a cleanup in mode. With force unset the run is skipped,
// without touching any message, while utilization is below the warning
// threshold.
func (e *Engine) Run(ctx context.Context, mode mailbox.Mode, force bool) (mailbox.CleanupResult, error) {
	return e.RunWithOptions(ctx, RunOptions{Mode: mode, Force: force, Trigger: mailbox.TriggerManual})
}

// RunCategory cleans one category, optionally with a one-off retention
// override (0 keeps the policy's retention).
func (e *Engine) RunCategory(ctx context.Context, category string, retentionDays int) (mailbox.CleanupResult, error) {
	return e.RunWithOptions(ctx, RunOptions{
		Mode:                  mailbox.ModeNormal,
		Force:                 true,
		Trigger:               mailbox.TriggerCategory,
		Category:              category,
		RetentionDaysOverride: retentionDays,
	})
}

// RunWithOptions executes one cleanup run. Per-message failures are
// recorded in the result; the returned error is reserved for failures that
// prevent the run from starting. On cancellation the partial result is
// returned with Aborted set.
func (e *Engine) RunWithOptions(ctx context.Context, opts RunOptions) (mailbox.CleanupResult, error) {
	if opts.Trigger == "" {
		opts.Trigger = mailbox.TriggerManual
	}

	result := mailbox.CleanupResult{
		ID:          uuid.NewString(),
		Trigger:     opts.Trigger,
		Mode:        opts.Mode,
		Category:    opts.Category,
		PerCategory: make(map[string]int),
		Errors:      []string{},
		StartTime:   e.now().UTC(),
	}

	ctx, span := e.tracer.Start(ctx, "cleanup.run", trace.WithAttributes(
		attribute.String("cleanup.id", result.ID),
		attribute.String("cleanup.mode", opts.Mode.String()),
		attribute.String("cleanup.trigger", string(opts.Trigger)),
		attribute.Bool("cleanup.force", opts.Force),
	))
	defer span.End()

	logger := e.logger.With("run_id", result.ID, "mode", opts.Mode.String(), "trigger", string(opts.Trigger))

	if opts.RetentionDaysOverride < 0 || (opts.RetentionDaysOverride > 0 && opts.Category == "") {
		return e.finish(result, span), fmt.Errorf("retention override requires a category and a positive value")
	}

	if !opts.Force {
		stats, err := e.deps.Monitor.GetStats(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "storage stats unavailable")
			return e.finish(result, span), err
		}
		if stats.UtilizationPercent < e.deps.Controller.Warning()*100 {
			result.Skipped = true
			result.Notes = append(result.Notes, fmt.Sprintf("utilization %.1f%% below warning threshold, nothing to do", stats.UtilizationPercent))
			logger.Debug("cleanup skipped", "utilization_percent", stats.UtilizationPercent)
			return e.finish(result, span), nil
		}
	}

	policies, err := e.selectPolicies(opts)
	if err != nil {
		span.RecordError(err)
		return e.finish(result, span), err
	}

	factor := 1.0
	suppressArchive := false
	if opts.Mode == mailbox.ModeCritical {
		if opts.Aggressive {
			factor = e.config.AggressiveFactor
		} else {
			factor = e.config.EmergencyFactor
			suppressArchive = true
			result.ArchivalSuppressed = true
			result.Notes = append(result.Notes, EmergencyNote)
		}
	}

	acc := &accumulator{result: &result}

	if opts.Category == "" {
		e.reportUnregistered(ctx, acc, logger)
	}

	logger.Info("cleanup started",
		"categories", len(policies),
		"retention_factor", factor,
		"archival_suppressed", suppressArchive,
	)

	var g errgroup.Group
	g.SetLimit(e.config.Parallelism)
	for _, p := range policies {
		g.Go(func() error {
			e.runCategory(ctx, p, factor, suppressArchive, acc, logger)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		result.Aborted = true
		result.Errors = append(result.Errors, fmt.Sprintf("run aborted: %v", err))
		logger.Warn("cleanup aborted", "error", err, "deleted_count", result.DeletedCount)
	}

	result = e.finish(result, span)

	logger.Info("cleanup completed",
		"deleted_count", result.DeletedCount,
		"archived_count", result.ArchivedCount,
		"storage_freed_bytes", result.StorageFreedBytes,
		"errors", len(result.Errors),
		"duration", result.Duration(),
	)

	return result, nil
}

func (e *Engine) finish(result mailbox.CleanupResult, span trace.Span) mailbox.CleanupResult {
	result.EndTime = e.now().UTC()
	span.SetAttributes(
		attribute.Int("cleanup.deleted", result.DeletedCount),
		attribute.Int("cleanup.archived", result.ArchivedCount),
		attribute.Int64("cleanup.freed_bytes", result.StorageFreedBytes),
		attribute.Int("cleanup.errors", len(result.Errors)),
		attribute.Bool("cleanup.aborted", result.Aborted),
	)
	if result.Aborted {
		span.SetStatus(codes.Error, "aborted")
	}
	return result
}

func (e *Engine) selectPolicies(opts RunOptions) ([]mailbox.RetentionPolicy, error) {
	if opts.Category == "" {
		return e.deps.Policies.List(), nil
	}

	p, err := e.deps.Policies.Get(opts.Category)
	if err != nil {
		return nil, err
	}
	if opts.RetentionDaysOverride > 0 {
		p.RetentionDays = opts.RetentionDaysOverride
	}
	return []mailbox.RetentionPolicy{p}, nil
}

// reportUnregistered records categories present in the store that have no
// policy. Their messages are never touched.
func (e *Engine) reportUnregistered(ctx context.Context, acc *accumulator, logger *slog.Logger) {
	lister, ok := e.deps.Store.(mailbox.CategoryLister)
	if !ok {
		return
	}
	categories, err := lister.Categories(ctx)
	if err != nil {
		logger.Warn("category listing failed", "error", err)
		return
	}
	for _, c := range categories {
		if e.deps.Policies.Has(c) {
			continue
		}
		err := mailbox.NewPolicyError(c, mailbox.ErrUnregisteredCategory)
		logger.Warn("messages in unregistered category left untouched", "category", c)
		acc.fail(err)
	}
}

func (e *Engine) runCategory(ctx context.Context, p mailbox.RetentionPolicy, factor float64, suppressArchive bool, acc *accumulator, logger *slog.Logger) {
	days := EffectiveRetentionDays(p.RetentionDays, factor)
	cutoff := e.now().AddDate(0, 0, -days)

	ctx, span := e.tracer.Start(ctx, "cleanup.category", trace.WithAttributes(
		attribute.String("cleanup.category", p.Category),
		attribute.Int("cleanup.retention_days", days),
	))
	defer span.End()

	logger = logger.With("category", p.Category)
	logger.Debug("processing category",
		"retention_days", p.RetentionDays,
		"effective_retention_days", days,
		"cutoff", cutoff,
	)

	pacer := e.newPacer()
	seen := make(map[string]struct{})
	token := ""
	deleted := 0

	for batch := 0; ; batch++ {
		if ctx.Err() != nil {
			return
		}
		if batch > 0 {
			if err := pacer.Wait(ctx); err != nil {
				return
			}
		}

		var msgs []mailbox.Message
		var next string
		err := retryFetch(ctx, e.config.FetchRetries, e.config.FetchBackoff, func() error {
			var err error
			msgs, next, err = e.deps.Store.ListByCategoryBefore(ctx, p.Category, cutoff, e.config.BatchSize, token)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			span.RecordError(err)
			acc.fail(fmt.Errorf("list category %s: %w", p.Category, err))
			logger.Error("candidate listing failed, skipping category", "error", err)
			return
		}

		for _, msg := range msgs {
			if ctx.Err() != nil {
				return
			}
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
			if msg.Category != p.Category || !msg.Timestamp.Before(cutoff) {
				continue
			}
			if e.processMessage(ctx, p, msg, suppressArchive, acc, logger) {
				deleted++
			}
		}

		if next == "" || len(msgs) == 0 {
			break
		}
		token = next
	}

	if deleted > 0 {
		logger.Info("category cleaned", "deleted_count", deleted, "effective_retention_days", days)
	}
}

// processMessage archives (when required) and deletes one message. It
// reports whether the message was deleted.
func (e *Engine) processMessage(ctx context.Context, p mailbox.RetentionPolicy, msg mailbox.Message, suppressArchive bool, acc *accumulator, logger *slog.Logger) bool {
	size := msg.SizeBytes
	if size <= 0 {
		s, err := e.deps.Store.Size(ctx, msg.ID)
		if err != nil {
			logger.Debug("message size unavailable", "message_id", msg.ID, "error", err)
		} else {
			size = s
		}
	}

	if p.ArchiveBeforeDelete && !suppressArchive {
		var err error
		if e.deps.Archive == nil {
			err = errors.New("no archive sink configured")
		} else {
			err = e.deps.Archive.Archive(ctx, msg, p.Category)
		}
		if err != nil {
			acc.fail(mailbox.NewArchiveError(msg, p.Category, err))
			logger.Warn("archive failed, message kept", "message_id", msg.ID, "error", err)
			return false
		}
		acc.archived()
	}

	if err := e.deps.Store.Delete(ctx, msg.ID); err != nil {
		acc.fail(mailbox.NewDeleteError(msg, p.Category, err))
		logger.Warn("delete failed", "message_id", msg.ID, "error", err)
		return false
	}

	acc.deleted(p.Category, size)
	return true
}

// accumulator collects results from concurrently running categories.
type accumulator struct {
	mu     sync.Mutex
	result *mailbox.CleanupResult
}

func (a *accumulator) fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.Errors = append(a.result.Errors, err.Error())
}

func (a *accumulator) archived() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.ArchivedCount++
}

func (a *accumulator) deleted(category string, size int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.DeletedCount++
	a.result.PerCategory[category]++
	a.result.StorageFreedBytes += size
}
