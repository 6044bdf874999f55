package engine

import (
	"github.com/lfcamargo/portatrack/internal/enrich"
	"github.com/lfcamargo/portatrack/internal/rules"
	"github.com/lfcamargo/portatrack/internal/store"
)

// Record is one portability record as observed in a feed row. It is
// transient: processing folds it into the versioned store and discards it.
type Record struct {
	// Natural key.
	DocumentID   string
	AccessNumber string
	OrderNumber  string
	ExternalCode string // stable id correlating the entity across feeds

	// Ticket state, inputs to matching.
	TicketNumber       string
	TicketStatus       string
	DonorCarrier       string
	RefusalReason      string
	CancellationReason string
	LastTicket         *bool
	UnqueriedReason    string

	// Order and logistics state.
	OrderStatus     string
	LogisticsStatus string
	PortabilityDate string
	DeliveryDate    string
	LogisticsDate   string

	// Enrichment data, populated by the batch enrichment pass.
	CustomerName string
	Address      string
	City         string
	State        string
	PostalCode   string
	TrackingCode string

	// Classification outcome, populated by matching.
	Matched      bool
	RuleID       int
	WhatHappened string
	Action       string
	MessageKind  string
	TemplateRef  string
}

// BusinessID returns the cross-feed identity of the record: the external
// code when present, otherwise the order number.
func (r *Record) BusinessID() string {
	if r.ExternalCode != "" {
		return r.ExternalCode
	}
	return r.OrderNumber
}

// MatchKeys returns the comparison tuple the matcher evaluates rules
// against.
func (r *Record) MatchKeys() rules.MatchKeys {
	return rules.MatchKeys{
		TicketStatus:       r.TicketStatus,
		DonorCarrier:       r.DonorCarrier,
		RefusalReason:      r.RefusalReason,
		CancellationReason: r.CancellationReason,
		LastTicket:         r.LastTicket,
		UnqueriedReason:    r.UnqueriedReason,
	}
}

// applyRule copies the winning rule's outcome onto the record.
func (r *Record) applyRule(rule rules.Rule) {
	r.Matched = true
	r.RuleID = rule.ID
	r.WhatHappened = rule.WhatHappened
	r.Action = rule.Action
	r.MessageKind = rule.MessageKind
	r.TemplateRef = rule.TemplateRef
}

// applyEnrichment merges lookup data onto the record. Only empty fields
// are filled: feed data wins over the enrichment dataset.
func (r *Record) applyEnrichment(e *enrich.Record) {
	if e == nil {
		return
	}
	if r.CustomerName == "" {
		r.CustomerName = e.CustomerName
	}
	if r.Address == "" {
		r.Address = e.Address
	}
	if r.City == "" {
		r.City = e.City
	}
	if r.State == "" {
		r.State = e.State
	}
	if r.PostalCode == "" {
		r.PostalCode = e.PostalCode
	}
	if r.TrackingCode == "" {
		r.TrackingCode = e.TrackingCode
	}
	if r.DeliveryDate == "" {
		r.DeliveryDate = e.DeliveryEstimate
	}
}

// snapshot converts the record to the store's observed-state form.
func (r *Record) snapshot() store.Snapshot {
	return store.Snapshot{
		DocumentID:   r.DocumentID,
		AccessNumber: r.AccessNumber,
		OrderNumber:  r.OrderNumber,
		ExternalCode: r.ExternalCode,

		CustomerName: r.CustomerName,
		Address:      r.Address,
		City:         r.City,
		State:        r.State,
		PostalCode:   r.PostalCode,
		TrackingCode: r.TrackingCode,

		OrderStatus:     r.OrderStatus,
		LogisticsStatus: r.LogisticsStatus,
		TicketStatus:    r.TicketStatus,
		TicketNumber:    r.TicketNumber,
		DonorCarrier:    r.DonorCarrier,

		RefusalReason:      r.RefusalReason,
		CancellationReason: r.CancellationReason,
		UnqueriedReason:    r.UnqueriedReason,

		PortabilityDate: r.PortabilityDate,
		DeliveryDate:    r.DeliveryDate,
		LogisticsDate:   r.LogisticsDate,

		Matched:      r.Matched,
		RuleID:       r.RuleID,
		WhatHappened: r.WhatHappened,
		Action:       r.Action,
		MessageKind:  r.MessageKind,
		TemplateRef:  r.TemplateRef,
	}
}
