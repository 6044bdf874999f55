// Package store persists the versioned history of portability records.
//
// Every business entity is keyed by its stable external id and carries a
// contiguous version sequence 1..N with exactly one latest row. A submit
// either refreshes the latest row's timestamp (tracked fields unchanged),
// or flips it and inserts the next version, emitting one change row per
// tracked field that moved.
//
// Storage is SQLite with WAL mode. The connection pool is capped at one
// connection: all writes are serialized, which is what makes the
// read-current-version / insert-next-version sequence in Submit safe.
package store
