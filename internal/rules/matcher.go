package rules

import (
	"sync"
	"time"
)

// MatchResult is the outcome of one matching attempt. It is ephemeral:
// callers fold the winning rule's outcome into the record before anything
// is persisted.
type MatchResult struct {
	Rule    Rule
	Matched bool
	At      time.Time
	Latency time.Duration
}

// cacheEntry caches the winner for a comparison tuple. Absence of a winner
// is cached too: re-scanning every candidate for a tuple already known to
// be unmapped is the common case in large feeds.
type cacheEntry struct {
	ruleID  int
	matched bool
}

// Matcher resolves a record's comparison keys to the single best matching
// rule using the repository's indices.
//
// Candidate order is the source's row order, specific bucket before the
// wildcard bucket, and the first rule whose predicates all hold wins.
// Ties between rules matching the same keys are deliberately settled by
// load order, not specificity; reordering rows in the source reorders the
// outcome, and the operations team relies on that.
//
// Safe for concurrent use. The cache is tagged with the repository
// generation and dropped wholesale after a reload.
type Matcher struct {
	repo *Repository

	mu         sync.Mutex
	cache      map[string]cacheEntry
	generation uint64
}

// NewMatcher creates a matcher over repo with an empty cache.
func NewMatcher(repo *Repository) *Matcher {
	return &Matcher{repo: repo, cache: make(map[string]cacheEntry)}
}

// Match returns the first rule whose predicates hold for keys, or
// Matched=false if no rule applies.
func (m *Matcher) Match(keys MatchKeys) MatchResult {
	start := time.Now()
	gen := m.repo.Generation()
	cacheKey := keys.CacheKey()

	if entry, ok := m.lookup(cacheKey, gen); ok {
		result := MatchResult{Matched: entry.matched, At: start, Latency: time.Since(start)}
		if entry.matched {
			// The rule is still present: entries are dropped on reload and
			// rules are never removed otherwise.
			if rule, ok := m.repo.RuleByID(entry.ruleID); ok {
				result.Rule = rule
				return result
			}
		} else {
			return result
		}
	}

	result := MatchResult{At: start}
	for _, rule := range m.repo.candidates(keys.TicketStatus) {
		if ruleMatches(rule, keys) {
			result.Rule = rule
			result.Matched = true
			break
		}
	}
	result.Latency = time.Since(start)

	m.storeEntry(cacheKey, gen, cacheEntry{ruleID: result.Rule.ID, matched: result.Matched})
	return result
}

// CacheSize returns the number of cached comparison tuples.
func (m *Matcher) CacheSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

func (m *Matcher) lookup(key string, gen uint64) (cacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		m.cache = make(map[string]cacheEntry)
		m.generation = gen
		return cacheEntry{}, false
	}
	entry, ok := m.cache[key]
	return entry, ok
}

func (m *Matcher) storeEntry(key string, gen uint64, entry cacheEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		// A reload happened mid-match; the result may reflect the old rule
		// set, so it must not be cached.
		return
	}
	m.cache[key] = entry
}

// ruleMatches evaluates every predicate field with early exit.
func ruleMatches(rule Rule, keys MatchKeys) bool {
	if hasValue(rule.TicketStatus) && !valuesMatch(rule.TicketStatus, keys.TicketStatus) {
		return false
	}
	if hasValue(rule.DonorCarrier) && !valuesMatch(rule.DonorCarrier, keys.DonorCarrier) {
		return false
	}
	if hasValue(rule.RefusalReason) && !valuesMatch(rule.RefusalReason, keys.RefusalReason) {
		return false
	}
	if hasValue(rule.CancellationReason) && !valuesMatch(rule.CancellationReason, keys.CancellationReason) {
		return false
	}
	// Exact match only when both sides carry a value: a record that does
	// not say whether this is the last ticket is not rejected by rules
	// that do.
	if rule.LastTicket != nil && keys.LastTicket != nil && *rule.LastTicket != *keys.LastTicket {
		return false
	}
	if hasValue(rule.UnqueriedReason) && !partialMatch(rule.UnqueriedReason, keys.UnqueriedReason) {
		return false
	}
	return true
}
