package rules

import (
	"errors"
	"fmt"
)

// SourceErrorCode categorizes rule source failures.
type SourceErrorCode string

const (
	// ErrCodeSourceMissing indicates the rule source does not exist.
	ErrCodeSourceMissing SourceErrorCode = "SOURCE_MISSING"

	// ErrCodeSourceUnreadable indicates the source exists but could not be
	// read or parsed.
	ErrCodeSourceUnreadable SourceErrorCode = "SOURCE_UNREADABLE"

	// ErrCodeSourceWrite indicates a draft rule could not be appended to
	// the source.
	ErrCodeSourceWrite SourceErrorCode = "SOURCE_WRITE"
)

// SourceError is a fatal rule source failure. The engine never runs with a
// partial rule set: any SourceError from load or reload propagates to the
// caller unchanged.
type SourceError struct {
	Code SourceErrorCode
	Name string // source identity, usually a file path
	Err  error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: rule source %q: %v", e.Code, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: rule source %q", e.Code, e.Name)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsSourceError returns true if err is a SourceError, unwrapping as needed.
func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}
