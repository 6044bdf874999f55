package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lfcamargo/portatrack/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Changes bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <business-id>",
		Short: "Show every stored version of a record",
		Long: `Show the full version history of a business entity, oldest first.

With --changes, also lists the per-field change log emitted on each
version bump.

Example:
  portatrack history --config portatrack.cue ISZ-0042
  portatrack history --config portatrack.cue ISZ-0042 --changes`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Changes, "changes", false, "include the per-field change log")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, businessID string) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening record store", err)
	}
	defer st.Close()

	ctx := context.Background()
	entries, err := st.History(ctx, businessID)
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, "unknown business id", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "reading history", err)
	}

	var changes []store.Change
	if opts.Changes {
		changes, err = st.Changes(ctx, businessID)
		if err != nil {
			return WrapExitError(ExitCommandError, "reading change log", err)
		}
	}

	payload := struct {
		BusinessID string         `json:"business_id"`
		Versions   []store.Entry  `json:"versions"`
		Changes    []store.Change `json:"changes,omitempty"`
	}{businessID, entries, changes}

	return printResult(cmd.OutOrStdout(), opts.Format, payload, func(w io.Writer) {
		for _, e := range entries {
			latest := ""
			if e.IsLatest {
				latest = " (latest)"
			}
			fmt.Fprintf(w, "v%d%s  %s  source=%s  ticket=%q order=%q logistics=%q\n",
				e.Version, latest, e.StoredAt.Format("2006-01-02 15:04:05"),
				e.Source, e.TicketStatus, e.OrderStatus, e.LogisticsStatus)
		}
		for _, c := range changes {
			fmt.Fprintf(w, "  v%d %s: %q -> %q (%s)\n",
				c.Version, c.Field, c.OldValue, c.NewValue, c.Source)
		}
	})
}
