// Package service holds the domain rules that sit between the HTTP handlers
// and the store: template definition checks, the record validation gate,
// status transitions and compliance scoring.
package service

import (
	"errors"
	"fmt"

	"github.com/matthewbaird/compliance/internal/template"
)

// ErrInvalidInput is returned when a request is malformed before any
// template validation takes place.
var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ValidationError is returned when record data fails its template. Result
// carries every field error.
type ValidationError struct {
	Result template.Result
}

func (e *ValidationError) Error() string {
	n := len(e.Result.Errors)
	if n == 1 {
		return "validation failed: " + e.Result.Errors[0].Message
	}
	return fmt.Sprintf("validation failed: %d field errors", n)
}
