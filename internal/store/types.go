package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned by reads for a business id with no stored
// versions. Expected during first-sight ingestion, not an error condition.
var ErrNotFound = errors.New("store: record not found")

// Snapshot is the observed state of a portability record at submit time.
// Dates arrive as free-form text from the feeds and are stored verbatim.
type Snapshot struct {
	DocumentID   string
	AccessNumber string
	OrderNumber  string
	ExternalCode string

	CustomerName string
	Address      string
	City         string
	State        string
	PostalCode   string
	TrackingCode string

	OrderStatus     string
	LogisticsStatus string
	TicketStatus    string
	TicketNumber    string
	DonorCarrier    string

	RefusalReason      string
	CancellationReason string
	UnqueriedReason    string

	PortabilityDate string
	DeliveryDate    string
	LogisticsDate   string

	Matched      bool
	RuleID       int
	WhatHappened string
	Action       string
	MessageKind  string
	TemplateRef  string
}

// Entry is one stored version of a business entity.
type Entry struct {
	BusinessID  string
	Version     int
	IsLatest    bool
	Source      string
	ContentHash string
	StoredAt    time.Time

	Snapshot
}

// Change is one tracked field whose value moved between consecutive
// versions.
type Change struct {
	BusinessID string
	Version    int
	Field      string
	OldValue   string
	NewValue   string
	Source     string
	ChangedAt  time.Time
}

// SyncRun summarizes one feed ingestion for bookkeeping.
type SyncRun struct {
	RunID     string
	Source    string
	StartedAt time.Time
	EndedAt   time.Time
	Processed int
	Created   int
	Refreshed int
	Errors    int
	Status    string
}

// AuditEntry is one decision result appended to the audit log.
type AuditEntry struct {
	RunID      string
	BusinessID string
	CheckName  string
	Decision   string
	Action     string
	Details    string
	Priority   int
	RuleID     int
	DecidedAt  time.Time
}

// StatusFilter selects latest rows by their status fields. Empty fields
// are ignored; a zero Limit means no limit.
type StatusFilter struct {
	OrderStatus     string
	LogisticsStatus string
	TicketStatus    string
	Limit           int
}
