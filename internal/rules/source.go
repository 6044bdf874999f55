package rules

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Source is an ordered sequence of rule rows with named columns. The
// production source is a CSV file maintained by operations staff; tests use
// the same implementation against temp files.
type Source interface {
	// Name identifies the source for error messages and logs.
	Name() string
	// Load reads every row into a Rule slice, preserving row order.
	Load() ([]Rule, error)
	// Append writes one rule as a new row at the end of the source.
	Append(Rule) error
	// ModTime returns the source's last-modified marker.
	ModTime() (time.Time, error)
}

// Legacy column headers. These match the operations spreadsheet exactly,
// typo included ("Templete"). Renaming any of them breaks the contract
// with the existing file.
const (
	colRuleID             = "REGRA_ID"
	colTicketStatus       = "Status do bilhete"
	colDonorCarrier       = "Operadora doadora"
	colRefusalReason      = "Motivo da recusa"
	colCancellationReason = "Motivo do cancelamento"
	colLastTicket         = "Último bilhete de portabilidade?"
	colUnqueriedReason    = "Motivo de não ter sido consultado"
	colNewTicketStatus    = "Novo status do bilhete"
	colAccessAdjustments  = "Ajustes número de acesso"
	colWhatHappened       = "O que aconteceu"
	colAction             = "Ação a ser realizada"
	colMessageKind        = "Tipo de mensagem"
	colTemplateRef        = "Templete"
)

// canonicalColumns is the column order used when this program writes the
// file itself (first draft append on a fresh file).
var canonicalColumns = []string{
	colRuleID,
	colTicketStatus,
	colDonorCarrier,
	colRefusalReason,
	colCancellationReason,
	colLastTicket,
	colUnqueriedReason,
	colNewTicketStatus,
	colAccessAdjustments,
	colWhatHappened,
	colAction,
	colMessageKind,
	colTemplateRef,
}

// CSVSource reads and appends rules in a CSV file with the legacy column
// headers.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source backed by the CSV file at path. The file
// is not opened until Load or Append.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Name() string { return s.path }

// Load parses all rows into Rules. Fails with a SourceError if the file is
// missing, unreadable, or any row is malformed: a partial rule set is
// never returned.
func (s *CSVSource) Load() ([]Rule, error) {
	f, err := os.Open(s.path)
	if err != nil {
		code := ErrCodeSourceUnreadable
		if os.IsNotExist(err) {
			code = ErrCodeSourceMissing
		}
		return nil, &SourceError{Code: code, Name: s.path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // validated against the header below
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &SourceError{Code: ErrCodeSourceUnreadable, Name: s.path, Err: err}
	}
	if len(rows) == 0 {
		return nil, &SourceError{Code: ErrCodeSourceUnreadable, Name: s.path, Err: fmt.Errorf("empty file, header row required")}
	}

	cols, err := columnIndex(rows[0])
	if err != nil {
		return nil, &SourceError{Code: ErrCodeSourceUnreadable, Name: s.path, Err: err}
	}

	rls := make([]Rule, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rule, err := parseRow(row, cols)
		if err != nil {
			return nil, &SourceError{Code: ErrCodeSourceUnreadable, Name: s.path, Err: fmt.Errorf("row %d: %w", i+2, err)}
		}
		rls = append(rls, rule)
	}
	return rls, nil
}

// Append writes the rule as a new row, matching the file's existing column
// order. A missing file is created with the canonical header first.
func (s *CSVSource) Append(rule Rule) error {
	header, err := s.readHeader()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &SourceError{Code: ErrCodeSourceWrite, Name: s.path, Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if header == nil {
		header = canonicalColumns
		if err := w.Write(header); err != nil {
			return &SourceError{Code: ErrCodeSourceWrite, Name: s.path, Err: err}
		}
	}
	if err := w.Write(ruleRow(rule, header)); err != nil {
		return &SourceError{Code: ErrCodeSourceWrite, Name: s.path, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &SourceError{Code: ErrCodeSourceWrite, Name: s.path, Err: err}
	}
	return nil
}

func (s *CSVSource) ModTime() (time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		code := ErrCodeSourceUnreadable
		if os.IsNotExist(err) {
			code = ErrCodeSourceMissing
		}
		return time.Time{}, &SourceError{Code: code, Name: s.path, Err: err}
	}
	return info.ModTime(), nil
}

// readHeader returns the file's header row, or nil if the file does not
// exist yet.
func (s *CSVSource) readHeader() ([]string, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &SourceError{Code: ErrCodeSourceUnreadable, Name: s.path, Err: err}
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, &SourceError{Code: ErrCodeSourceUnreadable, Name: s.path, Err: err}
	}
	return header, nil
}

// columnIndex maps known column names to their position in the header.
// All columns are required; extra columns are ignored.
func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, name := range canonicalColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

func parseRow(row []string, cols map[string]int) (Rule, error) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	idText := field(colRuleID)
	if idText == "" {
		return Rule{}, fmt.Errorf("missing %s", colRuleID)
	}
	id, err := strconv.Atoi(idText)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid %s %q: %w", colRuleID, idText, err)
	}

	return Rule{
		ID:                 id,
		TicketStatus:       field(colTicketStatus),
		DonorCarrier:       field(colDonorCarrier),
		RefusalReason:      field(colRefusalReason),
		CancellationReason: field(colCancellationReason),
		LastTicket:         parseLastTicket(field(colLastTicket)),
		UnqueriedReason:    field(colUnqueriedReason),
		NewTicketStatus:    field(colNewTicketStatus),
		AccessAdjustments:  field(colAccessAdjustments),
		WhatHappened:       field(colWhatHappened),
		Action:             field(colAction),
		MessageKind:        field(colMessageKind),
		TemplateRef:        field(colTemplateRef),
	}, nil
}

// parseLastTicket maps the spreadsheet's Sim/Não column to the tri-state
// predicate. Anything unrecognized is treated as a wildcard rather than
// rejecting the row, matching how the legacy table was consumed.
func parseLastTicket(s string) *bool {
	switch normalizeKey(s) {
	case "sim":
		v := true
		return &v
	case "não", "nao":
		v := false
		return &v
	default:
		return nil
	}
}

func formatLastTicket(v *bool) string {
	if v == nil {
		return ""
	}
	if *v {
		return "Sim"
	}
	return "Não"
}

// ruleRow renders the rule in the given column order; unknown columns are
// left empty.
func ruleRow(rule Rule, header []string) []string {
	values := map[string]string{
		colRuleID:             strconv.Itoa(rule.ID),
		colTicketStatus:       rule.TicketStatus,
		colDonorCarrier:       rule.DonorCarrier,
		colRefusalReason:      rule.RefusalReason,
		colCancellationReason: rule.CancellationReason,
		colLastTicket:         formatLastTicket(rule.LastTicket),
		colUnqueriedReason:    rule.UnqueriedReason,
		colNewTicketStatus:    rule.NewTicketStatus,
		colAccessAdjustments:  rule.AccessAdjustments,
		colWhatHappened:       rule.WhatHappened,
		colAction:             rule.Action,
		colMessageKind:        rule.MessageKind,
		colTemplateRef:        rule.TemplateRef,
	}
	row := make([]string, len(header))
	for i, name := range header {
		row[i] = values[strings.TrimSpace(name)]
	}
	return row
}
