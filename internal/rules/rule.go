package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sentinel outcome values written into draft rules created for unmapped
// records. These exact strings are what reviewers filter on in the rule
// table, so they stay in the source language of that file.
const (
	DraftWhatHappened = "NÃO MAPEADO - REVISAR"
	DraftAction       = "DEFINIR AÇÃO"
	DraftMessageKind  = "PENDENTE"
)

// Rule is one row of the rule table: a set of predicate fields matched
// against a record's comparison keys, and the outcome copied onto the
// record when the rule wins.
//
// An empty predicate field is a wildcard and matches any record value.
// LastTicket is tri-state: nil is a wildcard, a concrete value requires an
// exact match only when the record also carries a value.
type Rule struct {
	ID int

	// Predicate fields.
	TicketStatus       string
	DonorCarrier       string
	RefusalReason      string
	CancellationReason string
	LastTicket         *bool
	UnqueriedReason    string // matched by substring in either direction

	// Outcome fields.
	NewTicketStatus   string
	AccessAdjustments string
	WhatHappened      string
	Action            string
	MessageKind       string
	TemplateRef       string
}

// IsDraft reports whether the rule is an auto-registered draft awaiting
// human review.
func (r Rule) IsDraft() bool {
	return r.WhatHappened == DraftWhatHappened
}

// MatchKeys is the tuple of record fields a rule's predicates are evaluated
// against.
type MatchKeys struct {
	TicketStatus       string
	DonorCarrier       string
	RefusalReason      string
	CancellationReason string
	LastTicket         *bool
	UnqueriedReason    string
}

// CacheKey returns a stable digest of the full comparison tuple, used as
// the match cache key. Domain-prefixed so the digest can never collide
// with other sha256 uses in this codebase.
func (k MatchKeys) CacheKey() string {
	last := ""
	if k.LastTicket != nil {
		if *k.LastTicket {
			last = "1"
		} else {
			last = "0"
		}
	}
	h := sha256.New()
	h.Write([]byte("portatrack/matchkeys/v1"))
	h.Write([]byte{0x00})
	for _, part := range []string{
		normalizeKey(k.TicketStatus),
		normalizeKey(k.DonorCarrier),
		normalizeKey(k.RefusalReason),
		normalizeKey(k.CancellationReason),
		last,
		normalizeKey(k.UnqueriedReason),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0x00})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeKey canonicalizes a free-form comparison value: NFC form,
// surrounding whitespace dropped, case folded. The rule table is edited by
// hand in spreadsheets, so stray spaces and case drift are routine.
func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// valuesMatch compares a concrete (non-wildcard) rule predicate against a
// record value.
func valuesMatch(ruleValue, recordValue string) bool {
	return normalizeKey(ruleValue) == normalizeKey(recordValue)
}

// partialMatch reports whether one value contains the other. Used for the
// unqueried-reason field only: the upstream systems emit near-duplicate
// wordings of the same reason, so full equality would miss real matches.
func partialMatch(ruleValue, recordValue string) bool {
	rv := normalizeKey(ruleValue)
	cv := normalizeKey(recordValue)
	if cv == "" {
		return false
	}
	return rv == cv || strings.Contains(cv, rv) || strings.Contains(rv, cv)
}

// hasValue reports whether a predicate field constrains the match, i.e. is
// not a wildcard.
func hasValue(s string) bool {
	return strings.TrimSpace(s) != ""
}
