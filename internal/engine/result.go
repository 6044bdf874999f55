package engine

import "time"

// Decision grades, lowest priority number surfaces first.
const (
	DecisionReject = "REJECT"
	DecisionMatch  = "MATCH"
	DecisionReview = "NEEDS_REVIEW"
)

// Result priorities. Validation failures always precede match results;
// the unmapped sentinel sinks to the bottom.
const (
	PriorityValidation = 1
	PriorityMatch      = 2
	PriorityUnmapped   = 10
)

// DecisionResult is one decision produced for a record. A record yields
// zero or more validation failures followed by exactly one match or
// unmapped result, sorted ascending by priority.
type DecisionResult struct {
	CheckName string
	Decision  string
	Action    string
	Details   string
	Priority  int
	RuleID    int // winning or draft rule, 0 when none
	Latency   time.Duration
	At        time.Time
}
