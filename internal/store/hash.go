package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashDomain namespaces the content hash. The version suffix allows the
// tracked-field set to change without old hashes colliding with new ones.
const hashDomain = "portatrack/record/v1"

// trackedField pairs a change-log field name with its accessor. Order is
// fixed: it is part of the hash input.
type trackedField struct {
	name  string
	value func(*Snapshot) string
}

// trackedFields is the subset of the snapshot that participates in change
// detection. Free-text notes, addresses, and customer data are excluded on
// purpose: they churn with feed formatting noise and would mint versions
// that carry no business change.
var trackedFields = []trackedField{
	{"order_status", func(s *Snapshot) string { return s.OrderStatus }},
	{"logistics_status", func(s *Snapshot) string { return s.LogisticsStatus }},
	{"ticket_status", func(s *Snapshot) string { return s.TicketStatus }},
	{"refusal_reason", func(s *Snapshot) string { return s.RefusalReason }},
	{"cancellation_reason", func(s *Snapshot) string { return s.CancellationReason }},
	{"portability_date", func(s *Snapshot) string { return s.PortabilityDate }},
	{"delivery_date", func(s *Snapshot) string { return s.DeliveryDate }},
	{"logistics_date", func(s *Snapshot) string { return s.LogisticsDate }},
}

// ContentHash digests the tracked fields of a snapshot. Equal hashes mean
// "no new version"; the digest is stored on the row so the comparison
// never re-reads old field values.
func ContentHash(s *Snapshot) string {
	h := sha256.New()
	h.Write([]byte(hashDomain))
	h.Write([]byte{0x00})
	for _, f := range trackedFields {
		h.Write([]byte(f.name))
		h.Write([]byte{0x00})
		h.Write([]byte(f.value(s)))
		h.Write([]byte{0x00})
	}
	return hex.EncodeToString(h.Sum(nil))
}
