package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// timeFormat is the canonical text encoding for timestamps in the store.
const timeFormat = time.RFC3339Nano

// Submit records an observed state for businessID coming from sourceTag.
//
// The content hash over the snapshot's tracked fields decides the outcome:
//   - first sight: version 1 inserted, (1, true)
//   - hash equal to current latest: only stored_at refreshed, (v, false)
//   - hash differs: latest flipped, version v+1 inserted with one change
//     row per tracked field that moved, (v+1, true)
//
// Submissions for the same business id must not run concurrently; the
// single-connection pool serializes them as long as callers go through one
// Store.
func (s *Store) Submit(ctx context.Context, businessID, sourceTag string, snap Snapshot) (version int, isNew bool, err error) {
	if businessID == "" {
		return 0, false, fmt.Errorf("submit: empty business id")
	}

	hash := ContentHash(&snap)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("submit %s: begin tx: %w", businessID, err)
	}
	defer tx.Rollback() // No-op if committed

	var (
		curVersion int
		curHash    string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT version, content_hash
		FROM records
		WHERE business_id = ? AND is_latest = 1
	`, businessID).Scan(&curVersion, &curHash)

	switch {
	case err == sql.ErrNoRows:
		if err := insertVersion(ctx, tx, businessID, 1, sourceTag, hash, now, &snap); err != nil {
			return 0, false, fmt.Errorf("submit %s: %w", businessID, err)
		}
		if err := tx.Commit(); err != nil {
			return 0, false, fmt.Errorf("submit %s: commit: %w", businessID, err)
		}
		return 1, true, nil

	case err != nil:
		return 0, false, fmt.Errorf("submit %s: read latest: %w", businessID, err)
	}

	if curHash == hash {
		_, err := tx.ExecContext(ctx, `
			UPDATE records SET stored_at = ?
			WHERE business_id = ? AND version = ?
		`, now.Format(timeFormat), businessID, curVersion)
		if err != nil {
			return 0, false, fmt.Errorf("submit %s: refresh: %w", businessID, err)
		}
		if err := tx.Commit(); err != nil {
			return 0, false, fmt.Errorf("submit %s: commit: %w", businessID, err)
		}
		return curVersion, false, nil
	}

	prev, err := readSnapshot(ctx, tx, businessID, curVersion)
	if err != nil {
		return 0, false, fmt.Errorf("submit %s: read previous: %w", businessID, err)
	}

	newVersion := curVersion + 1
	_, err = tx.ExecContext(ctx, `
		UPDATE records SET is_latest = 0
		WHERE business_id = ? AND version = ?
	`, businessID, curVersion)
	if err != nil {
		return 0, false, fmt.Errorf("submit %s: flip latest: %w", businessID, err)
	}

	if err := insertVersion(ctx, tx, businessID, newVersion, sourceTag, hash, now, &snap); err != nil {
		return 0, false, fmt.Errorf("submit %s: %w", businessID, err)
	}

	for _, f := range trackedFields {
		oldVal, newVal := f.value(prev), f.value(&snap)
		if oldVal == newVal {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO record_changes
			(business_id, version, field, old_value, new_value, source, changed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, businessID, newVersion, f.name, oldVal, newVal, sourceTag, now.Format(timeFormat))
		if err != nil {
			return 0, false, fmt.Errorf("submit %s: change log: %w", businessID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("submit %s: commit: %w", businessID, err)
	}
	return newVersion, true, nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, businessID string, version int, sourceTag, hash string, now time.Time, snap *Snapshot) error {
	var ruleID sql.NullInt64
	if snap.RuleID != 0 {
		ruleID = sql.NullInt64{Int64: int64(snap.RuleID), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO records (
			business_id, version, is_latest, source, content_hash, stored_at,
			document_id, access_number, order_number, external_code,
			customer_name, address, city, state, postal_code, tracking_code,
			order_status, logistics_status, ticket_status, ticket_number, donor_carrier,
			refusal_reason, cancellation_reason, unqueried_reason,
			portability_date, delivery_date, logistics_date,
			matched, rule_id, what_happened, action, message_kind, template_ref
		) VALUES (?, ?, 1, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?, ?, ?)
	`,
		businessID, version, sourceTag, hash, now.Format(timeFormat),
		snap.DocumentID, snap.AccessNumber, snap.OrderNumber, snap.ExternalCode,
		snap.CustomerName, snap.Address, snap.City, snap.State, snap.PostalCode, snap.TrackingCode,
		snap.OrderStatus, snap.LogisticsStatus, snap.TicketStatus, snap.TicketNumber, snap.DonorCarrier,
		snap.RefusalReason, snap.CancellationReason, snap.UnqueriedReason,
		snap.PortabilityDate, snap.DeliveryDate, snap.LogisticsDate,
		boolToInt(snap.Matched), ruleID, snap.WhatHappened, snap.Action, snap.MessageKind, snap.TemplateRef,
	)
	if err != nil {
		return fmt.Errorf("insert version %d: %w", version, err)
	}
	return nil
}

// LogDecision appends one decision result to the audit log.
func (s *Store) LogDecision(ctx context.Context, entry AuditEntry) error {
	var ruleID sql.NullInt64
	if entry.RuleID != 0 {
		ruleID = sql.NullInt64{Int64: int64(entry.RuleID), Valid: true}
	}
	decidedAt := entry.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_audit
		(run_id, business_id, check_name, decision, action, details, priority, rule_id, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.RunID, entry.BusinessID, entry.CheckName, entry.Decision,
		entry.Action, entry.Details, entry.Priority, ruleID,
		decidedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// RecordSyncRun appends the bookkeeping row for one feed ingestion.
func (s *Store) RecordSyncRun(ctx context.Context, run SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs
		(run_id, source, started_at, ended_at, processed, created, refreshed, errors, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID, run.Source,
		run.StartedAt.UTC().Format(timeFormat), run.EndedAt.UTC().Format(timeFormat),
		run.Processed, run.Created, run.Refreshed, run.Errors, run.Status,
	)
	if err != nil {
		return fmt.Errorf("record sync run: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
