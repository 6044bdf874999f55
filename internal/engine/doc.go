// Package engine orchestrates record processing: structural validation,
// rule matching, unmapped-rule bootstrapping, and versioned persistence.
//
// State machine per record: Received -> Validated -> Matched|Unmapped ->
// Persisted. Validation failures do not stop matching decisions from being
// audited, but a record that fails validation is never persisted as
// matched.
//
// Batches run in three phases: one enrichment pass over the whole batch,
// a parallel validate+match phase over read-only rule indices, and a
// strictly serial persistence phase. Persisting inside the parallel phase
// would race the store's read-version/insert-version sequence.
package engine
