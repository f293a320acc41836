package main

import (
	"context"

	"github.com/spf13/cobra"

	"mercator-hq/mailsweep/pkg/cli"
	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/lifecycle"
	"mercator-hq/mailsweep/pkg/server"
)

var cleanupFlags struct {
	category      string
	retentionDays int
	aggressive    bool
	force         bool
}

var auditFlags struct {
	since string
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show mailbox storage usage",
	Long: `Show message count, used bytes, quota utilization and the escalation
mode the scheduler would choose now.`,
	Args: cobra.NoArgs,
	RunE: showStats,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run a cleanup now",
	Long: `Run a cleanup now under the run lock.

Without --category the run uses the current escalation mode and does
nothing below the warning threshold unless --force is given. With
--category only that category is cleaned, optionally with a one-off
retention period.

Examples:
  # Clean up according to current utilization
  mailsweep cleanup

  # Clean up even though the mailbox is below the warning threshold
  mailsweep cleanup --force

  # Delete promotional mail older than a week
  mailsweep cleanup --category promotional --retention-days 7`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the cleanup audit log",
	Long: `Show audited cleanup runs, oldest first.

Examples:
  # Everything
  mailsweep audit

  # Last 24 hours as JSON
  mailsweep audit --since 24h -o json

  # Last week
  mailsweep audit --since 7d`,
	Args: cobra.NoArgs,
	RunE: showAudit,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show a usage report with recommendations",
	Args:  cobra.NoArgs,
	RunE:  showReport,
}

func init() {
	rootCmd.AddCommand(statsCmd, cleanupCmd, auditCmd, reportCmd)

	cleanupCmd.Flags().StringVar(&cleanupFlags.category, "category", "", "clean up only this category")
	cleanupCmd.Flags().IntVar(&cleanupFlags.retentionDays, "retention-days", 0, "override the category's retention for this run (requires --category)")
	cleanupCmd.Flags().BoolVar(&cleanupFlags.aggressive, "aggressive", false, "keep archiving in critical mode with a milder retention cut")
	cleanupCmd.Flags().BoolVar(&cleanupFlags.force, "force", false, "run even below the warning threshold")

	auditCmd.Flags().StringVar(&auditFlags.since, "since", "", "only runs started within this window, e.g. 24h or 7d")
}

// withApp builds the component graph, runs fn and releases it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return cli.NewCommandError(cmd.Name(), err)
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		return cli.NewCommandError(cmd.Name(), err)
	}
	return nil
}

func showStats(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		stats, mode, err := a.service.Stats(ctx)
		if err != nil {
			return err
		}
		return printResult(cmd, cli.StatsView{Stats: stats, Mode: mode})
	})
}

func runCleanup(cmd *cobra.Command, args []string) error {
	req := lifecycle.CleanupRequest{
		Category:      cleanupFlags.category,
		RetentionDays: cleanupFlags.retentionDays,
		Aggressive:    cleanupFlags.aggressive,
		Force:         cleanupFlags.force,
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		result, err := a.service.Cleanup(ctx, req)
		if err != nil {
			return err
		}
		return printResult(cmd, cli.CleanupView{CleanupResult: result})
	})
}

func showAudit(cmd *cobra.Command, args []string) error {
	since, err := server.ParseSince(auditFlags.since)
	if err != nil {
		return cli.NewConfigError("since", err.Error())
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		runs, err := a.service.History(ctx, since)
		if err != nil {
			return err
		}
		if runs == nil {
			runs = []mailbox.CleanupResult{}
		}
		return printResult(cmd, cli.HistoryView(runs))
	})
}

func showReport(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		report, err := a.service.Report(ctx)
		if err != nil {
			return err
		}
		return printResult(cmd, cli.ReportView{Report: report})
	})
}
