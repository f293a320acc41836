package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/mailsweep/pkg/cli"
	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/policy"
)

var categorizeFlags struct {
	subject string
	sender  string
	body    string
}

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Inspect retention policies",
}

var policiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the effective retention policies",
	Long: `List the retention policies in effect: the built-in table, overlaid
with the policy file and the inline entries from the configuration.`,
	Args: cobra.NoArgs,
	RunE: listPolicies,
}

var policiesValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a policy file",
	Long: `Validate a policy file (.yaml, .yml, .json or .toml). Without an
argument the policy file and inline entries from the configuration are
validated.

Examples:
  mailsweep policies validate policies.yaml
  mailsweep policies validate --config /etc/mailsweep/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: validatePolicies,
}

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Show the category and policy a message would get",
	Long: `Run the configured categorization rules against a message described
by flags and show the retention policy that applies to it.

Examples:
  mailsweep categorize --sender deals@shop.example --subject "50% off"`,
	Args: cobra.NoArgs,
	RunE: categorizeMessage,
}

func init() {
	policiesCmd.AddCommand(policiesListCmd, policiesValidateCmd)
	rootCmd.AddCommand(policiesCmd, categorizeCmd)

	categorizeCmd.Flags().StringVar(&categorizeFlags.subject, "subject", "", "message subject")
	categorizeCmd.Flags().StringVar(&categorizeFlags.sender, "sender", "", "message sender")
	categorizeCmd.Flags().StringVar(&categorizeFlags.body, "body", "", "message body")
}

func listPolicies(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := buildPolicies(cfg.Policies)
	if err != nil {
		return cli.NewConfigError("policies", err.Error())
	}
	return printResult(cmd, cli.PoliciesView(table.List()))
}

func validatePolicies(cmd *cobra.Command, args []string) error {
	var (
		policies []mailbox.RetentionPolicy
		source   string
	)

	if len(args) == 1 {
		source = args[0]
		loaded, err := policy.LoadFile(source)
		if err != nil {
			return cli.NewCommandError("policies validate", err)
		}
		policies = loaded
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		table, err := buildPolicies(cfg.Policies)
		if err != nil {
			return cli.NewCommandError("policies validate", err)
		}
		source = "configuration"
		policies = table.List()
	}

	if outputFormat == string(cli.FormatText) {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d policies valid\n", source, len(policies))
	}
	return printResult(cmd, cli.PoliciesView(policies))
}

func categorizeMessage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	categorizer, err := buildCategorizer(cfg.Categorizer)
	if err != nil {
		return cli.NewConfigError("categorizer", err.Error())
	}
	table, err := buildPolicies(cfg.Policies)
	if err != nil {
		return cli.NewConfigError("policies", err.Error())
	}

	category := categorizer.Categorize(mailbox.Message{
		Subject: categorizeFlags.subject,
		Sender:  categorizeFlags.sender,
		Body:    categorizeFlags.body,
	})

	view := cli.CategorizeView{Category: category}
	if p, err := table.Get(category); err == nil {
		view.Policy = &p
	}
	return printResult(cmd, view)
}
