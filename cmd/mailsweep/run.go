package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/mailsweep/pkg/cli"
	"mercator-hq/mailsweep/pkg/config"
	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/policy"
	"mercator-hq/mailsweep/pkg/server"
	"mercator-hq/mailsweep/pkg/telemetry/health"
)

var runFlags struct {
	listenAddress string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the cleanup scheduler and admin API",
	Long: `Start the cleanup scheduler, the policy file watcher and the admin
HTTP server, and run until interrupted.

Examples:
  # Start with a config file
  mailsweep run --config /etc/mailsweep/config.yaml

  # Override the admin listen address
  mailsweep run --listen 127.0.0.1:9090

  # Validate the config and build every component without starting
  mailsweep run --dry-run`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override admin listen address")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "build every component and exit")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Admin.ListenAddress = runFlags.listenAddress
	}

	out := cmd.OutOrStdout()
	printBanner(cmd, cfg)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := cli.SignalContext(parent)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.Close()

	fmt.Fprintf(out, "✓ Store ready (%s)\n", cfg.Store.Backend)
	fmt.Fprintf(out, "✓ Policies loaded (%d policies)\n", a.policies.Len())
	if unregistered := a.categorizer.Unregistered(a.policies); len(unregistered) > 0 {
		slog.Warn("categories without a retention policy are never cleaned up",
			"categories", unregistered,
		)
	}

	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.scheduler.Stop()
	if next := a.scheduler.NextRun(); next != nil {
		fmt.Fprintf(out, "✓ Scheduler started (%s, next check %s)\n", cfg.Cleanup.Schedule, next.Format("15:04:05"))
	}

	if cfg.Policies.Watch && cfg.Policies.File != "" {
		watcher, err := startWatcher(ctx, cfg.Policies, a.policies)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer watcher.Stop()
		fmt.Fprintf(out, "✓ Watching %s\n", cfg.Policies.File)
	}

	errChan := make(chan error, 1)
	var srv *server.Server
	if cfg.Admin.IsEnabled() {
		srv, err = newAdminServer(cfg, a)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		go func() {
			if err := srv.Start(ctx); err != nil {
				errChan <- err
			}
		}()
		fmt.Fprintf(out, "✓ Admin API listening on %s\n", cfg.Admin.ListenAddress)
		fmt.Fprintf(out, "✓ Health endpoint: http://%s/ready\n", cfg.Admin.ListenAddress)
		if a.metrics != nil {
			fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.Admin.ListenAddress, cfg.Telemetry.Metrics.Path)
		}
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case <-ctx.Done():
	}

	fmt.Fprintln(out, "\nShutting down...")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Admin.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}
	}
	fmt.Fprintln(out, "✓ Stopped")
	return nil
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Mailsweep v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)
	}
	fmt.Fprintln(out, "✓ Configuration loaded")

	slog.Debug("mailbox configured",
		"quota_bytes", cfg.Mailbox.QuotaBytes,
		"warning_threshold", cfg.Mailbox.WarningThreshold,
		"critical_threshold", cfg.Mailbox.CriticalThreshold,
	)
	slog.Debug("backends configured",
		"store", cfg.Store.Backend,
		"archive", cfg.Archive.Backend,
		"audit", cfg.Audit.Backend,
	)
}

// startWatcher reloads the policy file into table on change. The initial
// table already holds the file contents, so no reload happens at start.
func startWatcher(ctx context.Context, cfg config.PoliciesConfig, table *policy.Table) (*policy.Watcher, error) {
	w, err := policy.NewWatcher(cfg.File, table, cfg.WatchDebounce)
	if err != nil {
		return nil, err
	}
	w.OnReload = func(err error) {
		if err == nil {
			slog.Debug("policy table updated", "policies", table.Len())
		}
	}
	go func() {
		if err := w.Watch(ctx); err != nil {
			slog.Error("policy watcher stopped", "error", err)
		}
	}()
	return w, nil
}

func newAdminServer(cfg *config.Config, a *app) (*server.Server, error) {
	checker := health.New(health.DefaultCheckTimeout)
	if p, ok := a.store.(mailbox.Pinger); ok {
		checker.Register("store", health.PingCheck(p))
	}
	if p, ok := a.audit.(mailbox.Pinger); ok {
		checker.Register("audit", health.PingCheck(p))
	}
	checker.Register("scheduler", health.RunningCheck(a.scheduler))

	deps := server.Deps{
		API:         a.service,
		Health:      checker,
		Tracer:      a.tracer.Tracer(),
		MetricsPath: cfg.Telemetry.Metrics.Path,
	}
	if a.metrics != nil {
		deps.Metrics = a.metrics.Handler()
	}

	srv, err := server.New(&cfg.Admin, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin server: %w", err)
	}
	return srv, nil
}
