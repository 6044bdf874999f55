package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/lfcamargo/portatrack/internal/config"
	"github.com/lfcamargo/portatrack/internal/engine"
	"github.com/lfcamargo/portatrack/internal/enrich"
	"github.com/lfcamargo/portatrack/internal/metrics"
	"github.com/lfcamargo/portatrack/internal/rules"
	"github.com/lfcamargo/portatrack/internal/store"
)

// ProcessOptions holds flags for the process command.
type ProcessOptions struct {
	*RootOptions
	Source     string
	Manifest   string
	Enrichment string
	Serial     bool
	Workers    int
}

// NewProcessCommand creates the process command.
func NewProcessCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProcessOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "process [feed-file]",
		Short: "Classify and persist one feed file or a manifest of feeds",
		Long: `Process portability records: validate, match against the rule table,
and write versioned history to the record store.

A single feed file needs a --source tag; alternatively --manifest names a
YAML file listing several feeds with their tags.

Example:
  portatrack process --config portatrack.cue --source gerenciador feed.csv
  portatrack process --config portatrack.cue --manifest feeds.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "", "source tag for the feed file")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "YAML manifest listing feeds to process")
	cmd.Flags().StringVar(&opts.Enrichment, "enrichment", "", "CSV dataset for address/tracking enrichment")
	cmd.Flags().BoolVar(&opts.Serial, "serial", false, "disable the worker pool")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "worker pool size (0 = number of CPUs)")

	return cmd
}

func runProcess(cmd *cobra.Command, opts *ProcessOptions, args []string) error {
	if opts.Manifest == "" && len(args) == 0 {
		return WrapExitError(ExitCommandError, "nothing to process", fmt.Errorf("give a feed file or --manifest"))
	}
	if opts.Manifest == "" && opts.Source == "" {
		return WrapExitError(ExitCommandError, "missing --source", fmt.Errorf("a feed file needs a source tag"))
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}

	feeds := []ManifestFeed{}
	if opts.Manifest != "" {
		m, err := readManifest(opts.Manifest)
		if err != nil {
			return WrapExitError(ExitCommandError, "reading manifest", err)
		}
		feeds = m.Feeds
	} else {
		feeds = append(feeds, ManifestFeed{Path: args[0], Source: opts.Source})
	}

	repo := rules.NewRepository(rules.NewCSVSource(cfg.RuleSource), slog.Default())
	if err := repo.Load(); err != nil {
		return WrapExitError(ExitCommandError, "loading rule table", err)
	}
	matcher := rules.NewMatcher(repo)

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening record store", err)
	}
	defer st.Close()

	var lookup enrich.Lookup
	if opts.Enrichment != "" {
		dataset, err := loadEnrichment(opts.Enrichment)
		if err != nil {
			return WrapExitError(ExitCommandError, "loading enrichment dataset", err)
		}
		lookup = dataset
	}

	collector := metrics.NewCollector()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, collector.Handler()); err != nil {
				slog.Error("metrics listener stopped", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	orch := engine.New(repo, matcher, engine.Options{
		Store:   st,
		Lookup:  lookup,
		Metrics: collector,
		Logger:  slog.Default(),
	})

	ctx := context.Background()
	totalErrors := 0
	summaries := make([]*engine.BatchSummary, 0, len(feeds))
	for _, feed := range feeds {
		records, err := readFeed(feed.Path)
		if err != nil {
			return WrapExitError(ExitCommandError, "reading feed", err)
		}
		summary, err := orch.ProcessBatch(ctx, records, engine.BatchOptions{
			SourceTag:   feed.Source,
			Parallel:    cfg.Parallel && !opts.Serial,
			Workers:     pickWorkers(opts.Workers, cfg.Workers),
			ReloadRules: cfg.ReloadRules,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "processing batch", err)
		}
		summaries = append(summaries, summary)
		totalErrors += summary.Errors
	}

	if err := printSummaries(cmd.OutOrStdout(), opts.Format, summaries); err != nil {
		return err
	}
	if totalErrors > 0 {
		return WrapExitError(ExitFailure, "completed with errors", fmt.Errorf("%d record(s) failed", totalErrors))
	}
	return nil
}

func pickWorkers(flag, configured int) int {
	if flag > 0 {
		return flag
	}
	return configured
}

func loadConfig(opts *RootOptions) (config.Config, error) {
	if opts.Config == "" {
		return config.Default(), nil
	}
	return config.Load(opts.Config)
}

func printSummaries(w io.Writer, format string, summaries []*engine.BatchSummary) error {
	type payload struct {
		RunID     string `json:"run_id"`
		Source    string `json:"source"`
		Processed int    `json:"processed"`
		Matched   int    `json:"matched"`
		Unmapped  int    `json:"unmapped"`
		Rejected  int    `json:"rejected"`
		Created   int    `json:"created"`
		Refreshed int    `json:"refreshed"`
		Errors    int    `json:"errors"`
	}
	out := make([]payload, len(summaries))
	for i, s := range summaries {
		out[i] = payload{
			RunID:     s.RunID,
			Source:    s.Source,
			Processed: s.Processed,
			Matched:   s.Matched,
			Unmapped:  s.Unmapped,
			Rejected:  s.Rejected,
			Created:   s.Created,
			Refreshed: s.Refreshed,
			Errors:    s.Errors,
		}
	}
	return printResult(w, format, out, func(w io.Writer) {
		for _, s := range out {
			fmt.Fprintf(w, "%s: %d processed, %d matched, %d unmapped, %d rejected, %d new versions, %d refreshed, %d errors\n",
				s.Source, s.Processed, s.Matched, s.Unmapped, s.Rejected, s.Created, s.Refreshed, s.Errors)
		}
	})
}
