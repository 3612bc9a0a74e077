package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrIO marks a dataset that could not be opened, read or downloaded.
	ErrIO = errors.New("dataset io error")

	// ErrParse marks a dataset whose content does not match the expected schema.
	ErrParse = errors.New("dataset parse error")
)

// ParseError describes a single cell or header that could not be coerced.
// Row is the 1-based CSV line number, 0 for header problems.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("%s: header: %v", ErrParse, e.Err)
	}
	return fmt.Sprintf("%s: line %d column %q value %q: %v", ErrParse, e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}
