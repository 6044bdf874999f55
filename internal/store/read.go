package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// recordColumns is the select list matching scanEntry's scan order.
const recordColumns = `
	business_id, version, is_latest, source, content_hash, stored_at,
	document_id, access_number, order_number, external_code,
	customer_name, address, city, state, postal_code, tracking_code,
	order_status, logistics_status, ticket_status, ticket_number, donor_carrier,
	refusal_reason, cancellation_reason, unqueried_reason,
	portability_date, delivery_date, logistics_date,
	matched, rule_id, what_happened, action, message_kind, template_ref`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e        Entry
		isLatest int
		matched  int
		ruleID   sql.NullInt64
		storedAt string
	)
	err := row.Scan(
		&e.BusinessID, &e.Version, &isLatest, &e.Source, &e.ContentHash, &storedAt,
		&e.DocumentID, &e.AccessNumber, &e.OrderNumber, &e.ExternalCode,
		&e.CustomerName, &e.Address, &e.City, &e.State, &e.PostalCode, &e.TrackingCode,
		&e.OrderStatus, &e.LogisticsStatus, &e.TicketStatus, &e.TicketNumber, &e.DonorCarrier,
		&e.RefusalReason, &e.CancellationReason, &e.UnqueriedReason,
		&e.PortabilityDate, &e.DeliveryDate, &e.LogisticsDate,
		&matched, &ruleID, &e.WhatHappened, &e.Action, &e.MessageKind, &e.TemplateRef,
	)
	if err != nil {
		return nil, err
	}
	e.IsLatest = isLatest != 0
	e.Matched = matched != 0
	if ruleID.Valid {
		e.RuleID = int(ruleID.Int64)
	}
	if t, err := time.Parse(timeFormat, storedAt); err == nil {
		e.StoredAt = t
	}
	return &e, nil
}

// Latest returns the current version of a business entity, or ErrNotFound.
func (s *Store) Latest(ctx context.Context, businessID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE business_id = ? AND is_latest = 1
	`, businessID)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest %s: %w", businessID, err)
	}
	return entry, nil
}

// History returns every stored version of a business entity ordered by
// version ascending. Returns ErrNotFound for an unknown business id.
func (s *Store) History(ctx context.Context, businessID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE business_id = ?
		ORDER BY version ASC
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", businessID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", businessID, err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history %s: %w", businessID, err)
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries, nil
}

// ByStatus returns latest rows matching the filter, most recently stored
// first. Superseded versions are never returned.
func (s *Store) ByStatus(ctx context.Context, filter StatusFilter) ([]Entry, error) {
	conditions := []string{"is_latest = 1"}
	var args []any

	if filter.OrderStatus != "" {
		conditions = append(conditions, "order_status = ?")
		args = append(args, filter.OrderStatus)
	}
	if filter.LogisticsStatus != "" {
		conditions = append(conditions, "logistics_status = ?")
		args = append(args, filter.LogisticsStatus)
	}
	if filter.TicketStatus != "" {
		conditions = append(conditions, "ticket_status = ?")
		args = append(args, filter.TicketStatus)
	}

	query := `SELECT ` + recordColumns + `
		FROM records
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY stored_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("by status: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("by status: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("by status: %w", err)
	}
	return entries, nil
}

// Changes returns the per-field change rows for a business entity, ordered
// by version then field.
func (s *Store) Changes(ctx context.Context, businessID string) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT business_id, version, field, old_value, new_value, source, changed_at
		FROM record_changes
		WHERE business_id = ?
		ORDER BY version ASC, field ASC
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("changes %s: %w", businessID, err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var (
			c         Change
			oldVal    sql.NullString
			newVal    sql.NullString
			changedAt string
		)
		if err := rows.Scan(&c.BusinessID, &c.Version, &c.Field, &oldVal, &newVal, &c.Source, &changedAt); err != nil {
			return nil, fmt.Errorf("changes %s: %w", businessID, err)
		}
		c.OldValue = oldVal.String
		c.NewValue = newVal.String
		if t, err := time.Parse(timeFormat, changedAt); err == nil {
			c.ChangedAt = t
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("changes %s: %w", businessID, err)
	}
	return changes, nil
}

// readSnapshot loads the stored snapshot of one version inside a submit
// transaction, for change-row comparison.
func readSnapshot(ctx context.Context, tx *sql.Tx, businessID string, version int) (*Snapshot, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE business_id = ? AND version = ?
	`, businessID, version)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, err
	}
	return &entry.Snapshot, nil
}
