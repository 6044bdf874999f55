package cli

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/lfcamargo/portatrack/internal/enrich"
)

// loadEnrichment reads the enrichment dataset CSV. Rows are expected
// newest-first, as exported; the dataset keeps the first row per key.
func loadEnrichment(path string) (*enrich.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read enrichment %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read enrichment %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read enrichment %s: empty file", path)
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.TrimSpace(name)] = i
	}

	records := make([]enrich.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		records = append(records, enrich.Record{
			ExternalCode:     field("external_code"),
			OrderNumber:      field("order_number"),
			DocumentID:       field("document_id"),
			CustomerName:     field("customer_name"),
			Address:          field("address"),
			City:             field("city"),
			State:            field("state"),
			PostalCode:       field("postal_code"),
			TrackingCode:     field("tracking_code"),
			DeliveryEstimate: field("delivery_estimate"),
			SaleDate:         field("sale_date"),
		})
	}
	return enrich.NewDataset(records), nil
}
