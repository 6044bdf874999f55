package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lfcamargo/portatrack/internal/enrich"
	"github.com/lfcamargo/portatrack/internal/metrics"
	"github.com/lfcamargo/portatrack/internal/rules"
	"github.com/lfcamargo/portatrack/internal/store"
)

// Orchestrator coordinates validation, matching, and persistence.
//
// Thread-safety model:
//   - ProcessRecord: safe from any goroutine; reads shared rule indices
//     and the match cache, writes only the record it was given
//   - Persist and ProcessBatch's persistence phase: single writer; never
//     called concurrently for overlapping records
//   - Rule reloads happen only at batch boundaries, never mid-batch
type Orchestrator struct {
	repo    *rules.Repository
	matcher *rules.Matcher
	store   *store.Store       // optional; nil disables persistence
	lookup  enrich.Lookup      // optional; nil disables enrichment
	metrics *metrics.Collector // optional; nil drops observations
	logger  *slog.Logger
}

// Options carries the orchestrator's optional collaborators.
type Options struct {
	Store   *store.Store
	Lookup  enrich.Lookup
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// New creates an orchestrator over a loaded repository and its matcher.
func New(repo *rules.Repository, matcher *rules.Matcher, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		repo:    repo,
		matcher: matcher,
		store:   opts.Store,
		lookup:  opts.Lookup,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// ProcessRecord runs the fixed validation checks and, when they all pass,
// the matcher. Results come back sorted ascending by priority, validation
// failures first.
//
// A record that fails validation is not matched. An unmapped record gets a
// draft rule registered best-effort: registration failure degrades the
// needs-review result (no rule id) but never fails the record.
func (o *Orchestrator) ProcessRecord(ctx context.Context, r *Record) []DecisionResult {
	results := runValidations(r)
	if len(results) > 0 {
		r.Matched = false
		o.metrics.RecordProcessed("rejected")
		sortResults(results)
		return results
	}

	mr := o.matcher.Match(r.MatchKeys())
	o.metrics.ObserveMatch(mr.Latency)

	if mr.Matched {
		r.applyRule(mr.Rule)
		results = append(results, DecisionResult{
			CheckName: "rule_match",
			Decision:  DecisionMatch,
			Action:    mr.Rule.Action,
			Details:   mr.Rule.WhatHappened,
			Priority:  PriorityMatch,
			RuleID:    mr.Rule.ID,
			Latency:   mr.Latency,
			At:        mr.At,
		})
		o.metrics.RecordProcessed("matched")
		sortResults(results)
		return results
	}

	r.Matched = false
	review := DecisionResult{
		CheckName: "unmapped",
		Decision:  DecisionReview,
		Action:    "review and map the new key combination",
		Details:   "no rule matches this record's comparison keys",
		Priority:  PriorityUnmapped,
		Latency:   mr.Latency,
		At:        mr.At,
	}

	// Fire-and-forget relative to the record: a failed registration is a
	// non-fatal error, the record still comes back as needs-review.
	if draftID, err := o.repo.RegisterDraftRule(r.MatchKeys()); err != nil {
		o.logger.Error("draft rule registration failed",
			"business_id", r.BusinessID(),
			"error", err,
		)
	} else {
		review.RuleID = draftID
		r.RuleID = draftID
		o.metrics.DraftRegistered()
	}
	r.WhatHappened = rules.DraftWhatHappened
	r.Action = rules.DraftAction
	r.MessageKind = rules.DraftMessageKind

	results = append(results, review)
	o.metrics.RecordProcessed("unmapped")
	sortResults(results)
	return results
}

// Persist submits the record's observed state to the versioned store and
// audits the decision results under runID.
func (o *Orchestrator) Persist(ctx context.Context, r *Record, sourceTag, runID string, results []DecisionResult) (version int, isNew bool, err error) {
	if o.store == nil {
		return 0, false, nil
	}

	version, isNew, err = o.store.Submit(ctx, r.BusinessID(), sourceTag, r.snapshot())
	if err != nil {
		return 0, false, fmt.Errorf("persist %s: %w", r.BusinessID(), err)
	}
	if isNew {
		o.metrics.VersionCreated()
	}

	for _, res := range results {
		entry := store.AuditEntry{
			RunID:      runID,
			BusinessID: r.BusinessID(),
			CheckName:  res.CheckName,
			Decision:   res.Decision,
			Action:     res.Action,
			Details:    res.Details,
			Priority:   res.Priority,
			RuleID:     res.RuleID,
			DecidedAt:  res.At,
		}
		if err := o.store.LogDecision(ctx, entry); err != nil {
			// Audit loss is logged, not fatal: the version is already in.
			o.logger.Error("decision audit failed",
				"business_id", r.BusinessID(),
				"error", err,
			)
		}
	}
	return version, isNew, nil
}

// BatchOptions controls one ProcessBatch run.
type BatchOptions struct {
	// SourceTag names the feed that produced the batch.
	SourceTag string
	// Parallel enables the worker pool for the validate+match phase.
	Parallel bool
	// Workers bounds the pool; defaults to GOMAXPROCS when zero.
	Workers int
	// ReloadRules re-reads the rule source at the batch boundary if it
	// changed. Reload failure aborts the batch: running on a stale set is
	// fine, running on a partial one is not.
	ReloadRules bool
}

// RecordOutcome pairs a record with its decision results and persistence
// outcome.
type RecordOutcome struct {
	Record     *Record
	Results    []DecisionResult
	Version    int
	NewVersion bool
	Err        error
}

// BatchSummary aggregates one batch run.
type BatchSummary struct {
	RunID     string
	Source    string
	StartedAt time.Time
	EndedAt   time.Time

	Processed int
	Matched   int
	Unmapped  int
	Rejected  int
	Created   int
	Refreshed int
	Errors    int

	Outcomes []RecordOutcome
}

// ProcessBatch runs the three-phase pipeline over records: enrichment
// once for the whole batch, validate+match (optionally on a worker pool),
// then strictly serial persistence. A failure in one record is counted
// and does not abort the rest; the batch always completes.
func (o *Orchestrator) ProcessBatch(ctx context.Context, records []*Record, opts BatchOptions) (*BatchSummary, error) {
	summary := &BatchSummary{
		RunID:     uuid.NewString(),
		Source:    opts.SourceTag,
		StartedAt: time.Now().UTC(),
		Outcomes:  make([]RecordOutcome, len(records)),
	}

	if opts.ReloadRules {
		reloaded, err := o.repo.ReloadIfChanged()
		if err != nil {
			return nil, fmt.Errorf("process batch: %w", err)
		}
		if reloaded {
			o.logger.Info("rule set reloaded at batch boundary", "run_id", summary.RunID)
		}
	}

	// Phase 1: enrichment, once over the whole batch so worker goroutines
	// never repeat the lookups.
	if o.lookup != nil {
		for _, r := range records {
			r.applyEnrichment(o.lookup.FindBestMatch(r.ExternalCode, r.OrderNumber, r.DocumentID))
		}
	}

	// Phase 2: validate+match. Workers read the rule indices and the match
	// cache and write only their own record; no shared mutable state.
	if opts.Parallel && len(records) > 1 {
		workers := opts.Workers
		if workers <= 0 {
			workers = runtime.GOMAXPROCS(0)
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, r := range records {
			i, r := i, r
			g.Go(func() error {
				summary.Outcomes[i] = RecordOutcome{
					Record:  r,
					Results: o.ProcessRecord(gctx, r),
				}
				return nil
			})
		}
		// Workers never return errors; Wait is just the join point.
		_ = g.Wait()
	} else {
		for i, r := range records {
			summary.Outcomes[i] = RecordOutcome{
				Record:  r,
				Results: o.ProcessRecord(ctx, r),
			}
		}
	}

	// Phase 3: persistence, single writer after the pool joins. Running
	// this inside the workers would race the store's version bump.
	for i := range summary.Outcomes {
		out := &summary.Outcomes[i]
		summary.Processed++
		tallyOutcome(summary, out.Results)

		version, isNew, err := o.Persist(ctx, out.Record, opts.SourceTag, summary.RunID, out.Results)
		if err != nil {
			out.Err = err
			summary.Errors++
			o.metrics.RecordFailed()
			o.logger.Error("record persistence failed",
				"run_id", summary.RunID,
				"business_id", out.Record.BusinessID(),
				"error", err,
			)
			continue
		}
		out.Version = version
		out.NewVersion = isNew
		if o.store != nil {
			if isNew {
				summary.Created++
			} else {
				summary.Refreshed++
			}
		}
	}

	summary.EndedAt = time.Now().UTC()
	o.recordSyncRun(ctx, summary)

	o.logger.Info("batch processed",
		"run_id", summary.RunID,
		"source", opts.SourceTag,
		"processed", summary.Processed,
		"matched", summary.Matched,
		"unmapped", summary.Unmapped,
		"rejected", summary.Rejected,
		"errors", summary.Errors,
	)
	return summary, nil
}

func tallyOutcome(summary *BatchSummary, results []DecisionResult) {
	for _, res := range results {
		switch res.Decision {
		case DecisionReject:
			summary.Rejected++
			return // one rejected record, regardless of failure count
		case DecisionMatch:
			summary.Matched++
			return
		case DecisionReview:
			summary.Unmapped++
			return
		}
	}
}

func (o *Orchestrator) recordSyncRun(ctx context.Context, summary *BatchSummary) {
	if o.store == nil {
		return
	}
	status := "success"
	if summary.Errors > 0 {
		status = "partial"
	}
	run := store.SyncRun{
		RunID:     summary.RunID,
		Source:    summary.Source,
		StartedAt: summary.StartedAt,
		EndedAt:   summary.EndedAt,
		Processed: summary.Processed,
		Created:   summary.Created,
		Refreshed: summary.Refreshed,
		Errors:    summary.Errors,
		Status:    status,
	}
	if err := o.store.RecordSyncRun(ctx, run); err != nil {
		o.logger.Error("sync run bookkeeping failed", "run_id", summary.RunID, "error", err)
	}
}

func sortResults(results []DecisionResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Priority < results[j].Priority
	})
}
