package contacts

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when the source text contains no non-empty lines.
var ErrEmptyInput = errors.New("no non-empty lines in input")

// ErrFileTooLarge is returned by ReadAll when the input exceeds its limit.
var ErrFileTooLarge = errors.New("file too large")

// ColumnNotFoundError reports a selected column name that is absent from the
// parsed headers. The import aborts before producing any partial output.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found in headers", e.Column)
}
