package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an update/delete/get target does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrUnavailable is returned when no backing store can serve the request
	// (primary down and the environment forbids the fallback).
	ErrUnavailable = errors.New("database connection unavailable")
)

// ValidationError carries a field-level message for malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}
