package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lfcamargo/portatrack/internal/rules"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Summarize the loaded rule table",
		Long: `Load the rule table and print counts by message kind, action, and
ticket status, plus how many auto-registered drafts are pending review.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(cmd, opts)
		},
	}

	return cmd
}

func runRules(cmd *cobra.Command, opts *RulesOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}

	repo := rules.NewRepository(rules.NewCSVSource(cfg.RuleSource), slog.Default())
	if err := repo.Load(); err != nil {
		return WrapExitError(ExitCommandError, "loading rule table", err)
	}

	stats := repo.Stats()
	payload := struct {
		Total         int            `json:"total"`
		Drafts        int            `json:"drafts"`
		ByMessageKind map[string]int `json:"by_message_kind"`
		ByAction      map[string]int `json:"by_action"`
		ByStatus      map[string]int `json:"by_status"`
	}{stats.Total, stats.Drafts, stats.ByMessageKind, stats.ByAction, stats.ByStatus}

	return printResult(cmd.OutOrStdout(), opts.Format, payload, func(w io.Writer) {
		fmt.Fprintf(w, "%d rule(s), %d draft(s) pending review\n", stats.Total, stats.Drafts)
		fmt.Fprintln(w, "by ticket status:")
		for status, n := range stats.ByStatus {
			fmt.Fprintf(w, "  %-40s %d\n", status, n)
		}
		fmt.Fprintln(w, "by action:")
		for action, n := range stats.ByAction {
			fmt.Fprintf(w, "  %-40s %d\n", action, n)
		}
	})
}
