// Package enrich supplies external-lookup data (addresses, logistics
// tracking) merged onto records before matching. The dataset comes from a
// separate feed and is loaded once per batch; lookups are pure reads over
// in-memory indices.
package enrich

import (
	"strings"
	"sync"
)

// Record is one row of the enrichment dataset.
type Record struct {
	ExternalCode string
	OrderNumber  string
	DocumentID   string

	CustomerName string
	Address      string
	City         string
	State        string
	PostalCode   string

	TrackingCode     string
	DeliveryEstimate string
	SaleDate         string
}

// Lookup finds the best enrichment record for a set of identifiers.
// Implementations try external code first, then order number, then
// document id, returning the first hit.
type Lookup interface {
	FindBestMatch(externalCode, orderNumber, documentID string) *Record
}

// Dataset is an in-memory Lookup with per-key indices. Rows are indexed in
// insertion order; when several rows share a key the earliest inserted one
// wins, so callers should insert newest-first.
type Dataset struct {
	mu         sync.RWMutex
	byExternal map[string]*Record
	byOrder    map[string]*Record
	byDocument map[string]*Record
	cache      map[string]*Record
	size       int
}

// NewDataset indexes the given rows.
func NewDataset(records []Record) *Dataset {
	d := &Dataset{
		byExternal: make(map[string]*Record, len(records)),
		byOrder:    make(map[string]*Record, len(records)),
		byDocument: make(map[string]*Record, len(records)),
		cache:      make(map[string]*Record),
	}
	for i := range records {
		d.add(&records[i])
	}
	return d
}

func (d *Dataset) add(r *Record) {
	d.size++
	if key := cleanKey(r.ExternalCode); key != "" {
		if _, ok := d.byExternal[key]; !ok {
			d.byExternal[key] = r
		}
	}
	if key := cleanKey(r.OrderNumber); key != "" {
		if _, ok := d.byOrder[key]; !ok {
			d.byOrder[key] = r
		}
	}
	if key := digitsOnly(r.DocumentID); key != "" {
		if _, ok := d.byDocument[key]; !ok {
			d.byDocument[key] = r
		}
	}
}

// Size returns the number of indexed rows.
func (d *Dataset) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.size
}

// FindBestMatch tries external code, then order number, then document id.
// Results, including misses, are cached per identifier tuple.
func (d *Dataset) FindBestMatch(externalCode, orderNumber, documentID string) *Record {
	cacheKey := cleanKey(externalCode) + "|" + cleanKey(orderNumber) + "|" + digitsOnly(documentID)

	d.mu.RLock()
	cached, ok := d.cache[cacheKey]
	d.mu.RUnlock()
	if ok {
		return cached
	}

	var result *Record
	d.mu.RLock()
	if key := cleanKey(externalCode); key != "" {
		result = d.byExternal[key]
	}
	if result == nil {
		if key := cleanKey(orderNumber); key != "" {
			result = d.byOrder[key]
		}
	}
	if result == nil {
		if key := digitsOnly(documentID); key != "" {
			result = d.byDocument[key]
		}
	}
	d.mu.RUnlock()

	d.mu.Lock()
	d.cache[cacheKey] = result
	d.mu.Unlock()
	return result
}

func cleanKey(s string) string {
	return strings.TrimSpace(s)
}

// digitsOnly strips formatting from document ids ("529.982.247-25" and
// "52998224725" are the same key).
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
