package engine

import (
	"fmt"
	"strings"
	"time"
)

// minAccessNumberLen is the minimum length of a portable access number
// (DDD plus nine-digit mobile number).
const minAccessNumberLen = 11

// validationCheck is one fixed structural check. A nil result means the
// check passed.
type validationCheck struct {
	name string
	run  func(*Record) *DecisionResult
}

// validationChecks run in fixed order on every record. A failed check does
// not stop the later ones: all applicable failures are collected.
var validationChecks = []validationCheck{
	{"required_fields", checkRequiredFields},
	{"document_id", checkDocumentID},
	{"access_number", checkAccessNumber},
}

func runValidations(r *Record) []DecisionResult {
	now := time.Now()
	var failures []DecisionResult
	for _, check := range validationChecks {
		if res := check.run(r); res != nil {
			res.CheckName = check.name
			res.Decision = DecisionReject
			res.Priority = PriorityValidation
			res.At = now
			failures = append(failures, *res)
		}
	}
	return failures
}

func checkRequiredFields(r *Record) *DecisionResult {
	var missing []string
	if strings.TrimSpace(r.DocumentID) == "" {
		missing = append(missing, "document id")
	}
	if strings.TrimSpace(r.AccessNumber) == "" {
		missing = append(missing, "access number")
	}
	if strings.TrimSpace(r.OrderNumber) == "" {
		missing = append(missing, "order number")
	}
	if strings.TrimSpace(r.ExternalCode) == "" {
		missing = append(missing, "external code")
	}
	if len(missing) == 0 {
		return nil
	}
	return &DecisionResult{
		Action:  "mark record invalid",
		Details: "missing required fields: " + strings.Join(missing, ", "),
	}
}

func checkDocumentID(r *Record) *DecisionResult {
	doc := strings.TrimSpace(r.DocumentID)
	if doc == "" {
		// Covered by required_fields.
		return nil
	}
	if !validCPF(doc) {
		return &DecisionResult{
			Action:  "mark document id invalid",
			Details: fmt.Sprintf("document id %q is not a valid CPF", doc),
		}
	}
	return nil
}

func checkAccessNumber(r *Record) *DecisionResult {
	num := strings.TrimSpace(r.AccessNumber)
	if num == "" {
		return nil
	}
	if len(num) < minAccessNumberLen {
		return &DecisionResult{
			Action:  "mark access number invalid",
			Details: fmt.Sprintf("access number must have at least %d characters, got %d", minAccessNumberLen, len(num)),
		}
	}
	return nil
}

// validCPF verifies the CPF check digits: eleven digits where the last two
// are modulo-11 checksums of the preceding ones. All-same-digit sequences
// pass the checksum but are reserved invalid values.
func validCPF(s string) bool {
	if len(s) != 11 {
		return false
	}
	digits := make([]int, 11)
	allEqual := true
	for i := 0; i < 11; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
		if digits[i] != digits[0] {
			allEqual = false
		}
	}
	if allEqual {
		return false
	}
	return cpfDigit(digits, 9) == digits[9] && cpfDigit(digits, 10) == digits[10]
}

// cpfDigit computes the check digit at position n from the n preceding
// digits.
func cpfDigit(digits []int, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += digits[i] * (n + 1 - i)
	}
	d := sum * 10 % 11
	if d == 10 {
		return 0
	}
	return d
}
