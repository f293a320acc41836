package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/mailsweep/pkg/cli"
	"mercator-hq/mailsweep/pkg/config"
	"mercator-hq/mailsweep/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "mailsweep",
	Short: "Mailsweep - quota-aware mailbox retention",
	Long: `Mailsweep keeps a size-limited mailbox below its storage quota.

Messages are sorted into categories and each category has a retention
policy. A scheduler checks utilization periodically and deletes expired
messages, shortening retention as the mailbox fills up:
  - normal: below the warning threshold, nothing is deleted
  - warning: expired messages are deleted, archiving where configured
  - critical: retention is halved and archiving is skipped

Every run that does work is recorded in the audit log.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and exits with the code for its error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json")
}

// setup loads the configuration and installs the process logger before any
// subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	if _, err := cli.ParseFormat(outputFormat); err != nil {
		return cli.NewConfigError("output", err.Error())
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.FromConfig(cfg.Telemetry.Logging)
	if verbose {
		logCfg.Level = "debug"
	}
	logCfg.Writer = cmd.ErrOrStderr()
	if _, err := logging.Install(logCfg); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	return nil
}

// loadConfig returns the process configuration, loading it on first use.
func loadConfig() (*config.Config, error) {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg, nil
	}
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return config.MustGetConfig(), nil
}

// printResult writes v to the command's output in the selected format.
func printResult(cmd *cobra.Command, v any) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), v)
}
