// Package testutil provides shared fixtures for rule-table tests.
package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

// RuleTableHeader is the legacy rule table header, in canonical order.
var RuleTableHeader = []string{
	"REGRA_ID",
	"Status do bilhete",
	"Operadora doadora",
	"Motivo da recusa",
	"Motivo do cancelamento",
	"Último bilhete de portabilidade?",
	"Motivo de não ter sido consultado",
	"Novo status do bilhete",
	"Ajustes número de acesso",
	"O que aconteceu",
	"Ação a ser realizada",
	"Tipo de mensagem",
	"Templete",
}

// WriteRuleTable writes a rule table CSV under dir and returns its path.
// Each row must have len(RuleTableHeader) fields.
func WriteRuleTable(t *testing.T, dir string, rows [][]string) string {
	t.Helper()

	path := filepath.Join(dir, "triggers.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create rule table: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(RuleTableHeader); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for _, row := range rows {
		if len(row) != len(RuleTableHeader) {
			t.Fatalf("row has %d fields, header has %d", len(row), len(RuleTableHeader))
		}
		if err := w.Write(row); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush rule table: %v", err)
	}
	return path
}

// Row builds one rule table row from the commonly varied fields, leaving
// the rest empty.
func Row(id, ticketStatus, donorCarrier, refusalReason, cancellationReason, lastTicket, unqueriedReason, whatHappened, action, messageKind string) []string {
	return []string{
		id,
		ticketStatus,
		donorCarrier,
		refusalReason,
		cancellationReason,
		lastTicket,
		unqueriedReason,
		"", // Novo status do bilhete
		"", // Ajustes número de acesso
		whatHappened,
		action,
		messageKind,
		"", // Templete
	}
}

// BoolPtr returns a pointer to b, for tri-state predicate fields.
func BoolPtr(b bool) *bool {
	return &b
}
