package rules

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Repository owns the loaded rule set and its lookup indices.
//
// Thread-safety model:
//   - RuleByID, candidates, Stats: safe from any goroutine (RLock)
//   - Load, ReloadIfChanged: stop-the-world writes (Lock); no match may
//     run concurrently, which the lock enforces
//   - RegisterDraftRule: takes the write lock only to allocate the id and
//     extend the indices; two racing registrations for the same keys may
//     both succeed and produce duplicate drafts, which is accepted
//
// Indices are replaced wholesale on every (re)load, never merged.
type Repository struct {
	source Source
	logger *slog.Logger

	mu         sync.RWMutex
	rules      []Rule
	byID       map[int]int      // rule id -> position in rules
	byStatus   map[string][]int // normalized ticket status -> positions, load order
	wildcard   []int            // positions of rules with no ticket status predicate
	loadedAt   time.Time        // ModTime of the source at last successful load
	generation uint64           // bumped on every successful (re)load
}

// NewRepository creates an empty repository over source. Call Load before
// matching.
func NewRepository(source Source, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{source: source, logger: logger}
}

// Load reads the full rule set from the source and rebuilds all indices.
// On failure the previous rule set is kept untouched.
func (r *Repository) Load() error {
	modTime, err := r.source.ModTime()
	if err != nil {
		return err
	}
	rules, err := r.source.Load()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.install(rules, modTime)
	r.logger.Info("rule set loaded",
		"source", r.source.Name(),
		"rules", len(rules),
		"statuses", len(r.byStatus),
	)
	return nil
}

// install replaces the rule set and indices. Caller holds the write lock.
func (r *Repository) install(rules []Rule, modTime time.Time) {
	r.rules = rules
	r.byID = make(map[int]int, len(rules))
	r.byStatus = make(map[string][]int, len(rules))
	r.wildcard = nil
	for i, rule := range rules {
		r.byID[rule.ID] = i
		if hasValue(rule.TicketStatus) {
			key := normalizeKey(rule.TicketStatus)
			r.byStatus[key] = append(r.byStatus[key], i)
		} else {
			r.wildcard = append(r.wildcard, i)
		}
	}
	r.loadedAt = modTime
	r.generation++
}

// ReloadIfChanged re-reads the source if its last-modified marker moved
// past the last successful load. Returns true if the rule set was
// replaced.
func (r *Repository) ReloadIfChanged() (bool, error) {
	modTime, err := r.source.ModTime()
	if err != nil {
		return false, err
	}

	r.mu.RLock()
	unchanged := !modTime.After(r.loadedAt)
	r.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	rules, err := r.source.Load()
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !modTime.After(r.loadedAt) {
		// Another caller reloaded while we were parsing.
		return false, nil
	}
	r.install(rules, modTime)
	r.logger.Info("rule set reloaded", "source", r.source.Name(), "rules", len(rules))
	return true, nil
}

// Generation returns a counter that changes on every successful (re)load.
// The matcher uses it to drop stale cache entries.
func (r *Repository) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// RuleByID looks a rule up by id.
func (r *Repository) RuleByID(id int) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return Rule{}, false
	}
	return r.rules[i], true
}

// Rules returns a copy of the loaded rule set in load order.
func (r *Repository) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// candidates returns the rules to evaluate for a ticket status: the
// status's own bucket first, then the wildcard bucket, both in load order.
// If both buckets are empty the whole rule set is the candidate list.
func (r *Repository) candidates(ticketStatus string) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specific := r.byStatus[normalizeKey(ticketStatus)]
	if len(specific) == 0 && len(r.wildcard) == 0 {
		out := make([]Rule, len(r.rules))
		copy(out, r.rules)
		return out
	}

	out := make([]Rule, 0, len(specific)+len(r.wildcard))
	for _, i := range specific {
		out = append(out, r.rules[i])
	}
	for _, i := range r.wildcard {
		out = append(out, r.rules[i])
	}
	return out
}

// RegisterDraftRule appends a new rule whose predicates are the observed
// keys verbatim and whose outcome is the needs-review sentinel. The rule
// is written through to the source and added to the in-memory indices.
//
// Not deduplicated: a concurrent registration for the same keys creates a
// harmless duplicate draft for the reviewer to fold.
func (r *Repository) RegisterDraftRule(keys MatchKeys) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nextID := 1
	for _, rule := range r.rules {
		if rule.ID >= nextID {
			nextID = rule.ID + 1
		}
	}

	draft := Rule{
		ID:                 nextID,
		TicketStatus:       keys.TicketStatus,
		DonorCarrier:       keys.DonorCarrier,
		RefusalReason:      keys.RefusalReason,
		CancellationReason: keys.CancellationReason,
		LastTicket:         keys.LastTicket,
		UnqueriedReason:    keys.UnqueriedReason,
		WhatHappened:       DraftWhatHappened,
		Action:             DraftAction,
		MessageKind:        DraftMessageKind,
	}

	if err := r.source.Append(draft); err != nil {
		return 0, fmt.Errorf("register draft rule: %w", err)
	}

	i := len(r.rules)
	r.rules = append(r.rules, draft)
	r.byID[draft.ID] = i
	if hasValue(draft.TicketStatus) {
		key := normalizeKey(draft.TicketStatus)
		r.byStatus[key] = append(r.byStatus[key], i)
	} else {
		r.wildcard = append(r.wildcard, i)
	}

	// Appending moved the file's mtime forward; advance loadedAt so the
	// next ReloadIfChanged does not re-read our own write.
	if modTime, err := r.source.ModTime(); err == nil {
		r.loadedAt = modTime
	}

	r.logger.Info("draft rule registered",
		"rule_id", draft.ID,
		"ticket_status", draft.TicketStatus,
	)
	return nextID, nil
}

// Stats summarizes the loaded rule set for operators.
type Stats struct {
	Total         int
	Drafts        int
	ByMessageKind map[string]int
	ByAction      map[string]int
	ByStatus      map[string]int
	LoadedAt      time.Time
}

// Stats counts rules by message kind, action, and ticket status.
func (r *Repository) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Total:         len(r.rules),
		ByMessageKind: make(map[string]int),
		ByAction:      make(map[string]int),
		ByStatus:      make(map[string]int),
		LoadedAt:      r.loadedAt,
	}
	for _, rule := range r.rules {
		kind := rule.MessageKind
		if kind == "" {
			kind = "SEM TIPO"
		}
		s.ByMessageKind[kind]++

		action := rule.Action
		if action == "" {
			action = "SEM AÇÃO"
		}
		s.ByAction[action]++

		status := rule.TicketStatus
		if status == "" {
			status = "SEM STATUS"
		}
		s.ByStatus[status]++

		if rule.IsDraft() {
			s.Drafts++
		}
	}
	return s
}
