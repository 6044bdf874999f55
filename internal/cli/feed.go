package cli

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/lfcamargo/portatrack/internal/engine"
)

// readFeed parses one feed CSV into records. Feed files are produced by
// the export jobs with a fixed snake_case header; there is no column
// aliasing or encoding detection here on purpose.
func readFeed(path string) ([]*engine.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read feed %s: empty file", path)
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.TrimSpace(name)] = i
	}

	records := make([]*engine.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		records = append(records, &engine.Record{
			DocumentID:         field("document_id"),
			AccessNumber:       field("access_number"),
			OrderNumber:        field("order_number"),
			ExternalCode:       field("external_code"),
			TicketNumber:       field("ticket_number"),
			TicketStatus:       field("ticket_status"),
			DonorCarrier:       field("donor_carrier"),
			RefusalReason:      field("refusal_reason"),
			CancellationReason: field("cancellation_reason"),
			LastTicket:         parseFeedBool(field("last_ticket")),
			UnqueriedReason:    field("unqueried_reason"),
			OrderStatus:        field("order_status"),
			LogisticsStatus:    field("logistics_status"),
			PortabilityDate:    field("portability_date"),
			DeliveryDate:       field("delivery_date"),
			LogisticsDate:      field("logistics_date"),
		})
	}
	return records, nil
}

func parseFeedBool(s string) *bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "sim", "yes":
		v := true
		return &v
	case "0", "false", "não", "nao", "no":
		v := false
		return &v
	default:
		return nil
	}
}
