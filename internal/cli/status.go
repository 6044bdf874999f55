package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lfcamargo/portatrack/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	OrderStatus     string
	LogisticsStatus string
	TicketStatus    string
	Limit           int
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List latest record versions filtered by status",
		Long: `List the current (latest) version of records matching the given status
filters. Superseded versions never appear here.

Example:
  portatrack status --config portatrack.cue --ticket "Portabilidade Cancelada"
  portatrack status --config portatrack.cue --order "Concluído" --limit 20`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.OrderStatus, "order", "", "filter by order status")
	cmd.Flags().StringVar(&opts.LogisticsStatus, "logistics", "", "filter by logistics status")
	cmd.Flags().StringVar(&opts.TicketStatus, "ticket", "", "filter by ticket status")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows (0 = no limit)")

	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening record store", err)
	}
	defer st.Close()

	entries, err := st.ByStatus(context.Background(), store.StatusFilter{
		OrderStatus:     opts.OrderStatus,
		LogisticsStatus: opts.LogisticsStatus,
		TicketStatus:    opts.TicketStatus,
		Limit:           opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "querying records", err)
	}

	return printResult(cmd.OutOrStdout(), opts.Format, entries, func(w io.Writer) {
		for _, e := range entries {
			fmt.Fprintf(w, "%s v%d  ticket=%q order=%q logistics=%q  rule=%d\n",
				e.BusinessID, e.Version, e.TicketStatus, e.OrderStatus, e.LogisticsStatus, e.RuleID)
		}
		fmt.Fprintf(w, "%d record(s)\n", len(entries))
	})
}
