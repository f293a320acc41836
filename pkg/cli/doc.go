/*
Package cli provides command-line helpers for the mailsweep command.

Output Formatting:

Command results are wrapped in a view and written as text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, cli.StatsView{Stats: stats, Mode: mode}); err != nil {
		return err
	}

Text output renders sizes and counts with go-humanize.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

Exit Codes:

ExitCode maps command errors to process exit codes.
*/
package cli
