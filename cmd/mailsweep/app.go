package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"mercator-hq/mailsweep/pkg/config"
	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/archive"
	"mercator-hq/mailsweep/pkg/mailbox/audit"
	"mercator-hq/mailsweep/pkg/mailbox/categorize"
	"mercator-hq/mailsweep/pkg/mailbox/escalation"
	"mercator-hq/mailsweep/pkg/mailbox/lifecycle"
	"mercator-hq/mailsweep/pkg/mailbox/monitor"
	"mercator-hq/mailsweep/pkg/mailbox/notify"
	"mercator-hq/mailsweep/pkg/mailbox/policy"
	"mercator-hq/mailsweep/pkg/mailbox/retention"
	"mercator-hq/mailsweep/pkg/mailbox/store"
	"mercator-hq/mailsweep/pkg/telemetry/metrics"
	"mercator-hq/mailsweep/pkg/telemetry/tracing"
)

// app holds the components built from the configuration. Commands that do
// not run the daemon use the same graph and simply never start the
// scheduler.
type app struct {
	cfg         *config.Config
	categorizer *categorize.Categorizer
	policies    *policy.Table
	store       mailbox.MailStore
	archive     mailbox.ArchiveSink
	audit       audit.Log
	monitor     *monitor.Monitor
	controller  *escalation.Controller
	engine      *retention.Engine
	scheduler   *retention.Scheduler
	service     *lifecycle.Service
	metrics     *metrics.Collector
	tracer      *tracing.Tracer

	closers []io.Closer
}

// newApp wires every component from cfg.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.categorizer, err = buildCategorizer(cfg.Categorizer); err != nil {
		return nil, err
	}
	if a.policies, err = buildPolicies(cfg.Policies); err != nil {
		return nil, err
	}
	if a.store, err = buildStore(cfg.Store, a.categorizer); err != nil {
		return nil, err
	}
	a.addCloser(a.store)
	if a.archive, err = buildArchive(ctx, cfg.Archive); err != nil {
		return nil, err
	}
	if a.audit, err = buildAudit(cfg.Audit); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.audit)

	if a.controller, err = escalation.New(cfg.Mailbox.WarningThreshold, cfg.Mailbox.CriticalThreshold); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	a.monitor = monitor.New(a.store, monitor.Config{
		QuotaBytes:         cfg.Mailbox.QuotaBytes,
		AverageMessageSize: cfg.Mailbox.AverageMessageSize,
		WarningThreshold:   cfg.Mailbox.WarningThreshold,
		PreferExact:        !cfg.Mailbox.EstimateOnly,
	})

	if a.tracer, err = tracing.New(ctx, cfg.Telemetry.Tracing, Version); err != nil {
		return nil, err
	}

	a.engine, err = retention.NewEngine(retention.Deps{
		Store:      a.store,
		Policies:   a.policies,
		Monitor:    a.monitor,
		Controller: a.controller,
		Archive:    a.archive,
		Tracer:     a.tracer.Tracer(),
	}, &retention.Config{
		BatchSize:        cfg.Cleanup.BatchSize,
		EmergencyFactor:  cfg.Cleanup.EmergencyFactor,
		AggressiveFactor: cfg.Cleanup.AggressiveFactor,
		Parallelism:      cfg.Cleanup.Parallelism,
		FetchRetries:     uint64(cfg.Cleanup.FetchRetries),
		FetchBackoff:     cfg.Cleanup.FetchBackoff,
		Pacing: retention.PacingConfig{
			Strategy:    cfg.Cleanup.Pacing.Strategy,
			Interval:    cfg.Cleanup.Pacing.Interval,
			MaxInterval: cfg.Cleanup.Pacing.MaxInterval,
		},
	})
	if err != nil {
		return nil, err
	}

	notifier, err := buildNotifier(cfg.Notify)
	if err != nil {
		return nil, err
	}

	deps := retention.SchedulerDeps{
		Engine:     a.engine,
		Monitor:    a.monitor,
		Controller: a.controller,
		Audit:      a.audit,
		Notifier:   notifier,
	}
	if cfg.Telemetry.Metrics.IsEnabled() {
		a.metrics = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
		deps.Recorder = a.metrics
	}
	a.scheduler, err = retention.NewScheduler(deps, retention.SchedulerConfig{
		Schedule:   cfg.Cleanup.Schedule,
		RunTimeout: cfg.Cleanup.RunTimeout,
		RunOnStart: cfg.Cleanup.RunOnStart,
	})
	if err != nil {
		return nil, err
	}

	a.service, err = lifecycle.New(lifecycle.Deps{
		Monitor:     a.monitor,
		Controller:  a.controller,
		Scheduler:   a.scheduler,
		Policies:    a.policies,
		Audit:       a.audit,
		Categorizer: a.categorizer,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) addCloser(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

// Close releases the store, the audit log and the tracer.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildCategorizer(cfg config.CategorizerConfig) (*categorize.Categorizer, error) {
	var rules []categorize.Rule
	for _, r := range cfg.Rules {
		rules = append(rules, categorize.Rule{
			Name:     r.Name,
			Category: r.Category,
			Field:    categorize.Field(r.Field),
			All:      r.All,
			Any:      r.Any,
			Pattern:  r.Pattern,
		})
	}
	if !cfg.DisableBuiltinRules {
		rules = append(rules, categorize.DefaultRules()...)
	}

	c, err := categorize.New(rules, cfg.DefaultCategory)
	if err != nil {
		return nil, fmt.Errorf("invalid categorizer rules: %w", err)
	}
	return c, nil
}

// buildPolicies layers the built-in table, the policy file and the inline
// entries, later layers replacing earlier ones per category.
func buildPolicies(cfg config.PoliciesConfig) (*policy.Table, error) {
	table := policy.NewDefaultTable()

	if cfg.File != "" {
		filePolicies, err := policy.LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		for _, p := range filePolicies {
			if err := table.Upsert(p); err != nil {
				return nil, err
			}
		}
	}

	for _, e := range cfg.Entries {
		if err := table.Upsert(policyFromEntry(e)); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func policyFromEntry(e config.PolicyEntry) mailbox.RetentionPolicy {
	return mailbox.RetentionPolicy{
		Category:            e.Category,
		RetentionDays:       e.RetentionDays,
		Priority:            mailbox.Priority(e.Priority),
		ArchiveBeforeDelete: e.ArchiveBeforeDelete,
		Description:         e.Description,
	}
}

func buildStore(cfg config.StoreConfig, categorizer *categorize.Categorizer) (mailbox.MailStore, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(store.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		}, categorizer)
	case "imap":
		return store.NewIMAPStore(store.IMAPConfig{
			Addr:               cfg.IMAP.Address,
			Username:           cfg.IMAP.Username,
			Password:           cfg.IMAP.Password,
			Mailbox:            cfg.IMAP.Mailbox,
			TLS:                cfg.IMAP.TLS,
			InsecureSkipVerify: cfg.IMAP.InsecureSkipVerify,
			Timeout:            cfg.IMAP.Timeout,
		}, categorizer)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

func buildArchive(ctx context.Context, cfg config.ArchiveConfig) (mailbox.ArchiveSink, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "file":
		return archive.NewFileSink(cfg.File.Directory, cfg.File.Pretty)
	case "s3":
		return archive.NewS3Sink(ctx, archive.S3Config{
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", cfg.Backend)
	}
}

func buildAudit(cfg config.AuditConfig) (audit.Log, error) {
	switch cfg.Backend {
	case "memory":
		return audit.NewMemoryLog(), nil
	case "sqlite":
		return audit.NewSQLiteLog(&audit.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			WALMode:      true,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Backend)
	}
}

// buildNotifier always logs notifications and fans out to the webhook and
// Telegram when configured.
func buildNotifier(cfg config.NotifyConfig) (mailbox.Notifier, error) {
	notifiers := notify.Multi{notify.NewLogNotifier()}

	if cfg.Webhook.URL != "" {
		wh, err := notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:        cfg.Webhook.URL,
			Headers:    cfg.Webhook.Headers,
			Timeout:    cfg.Webhook.Timeout,
			MaxRetries: uint64(cfg.Webhook.MaxRetries),
		})
		if err != nil {
			return nil, fmt.Errorf("invalid webhook notifier: %w", err)
		}
		notifiers = append(notifiers, wh)
	}

	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatIDs)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram notifier: %w", err)
		}
		notifiers = append(notifiers, tg)
	}

	slog.Debug("notifiers configured", "count", len(notifiers))
	return notifiers, nil
}
