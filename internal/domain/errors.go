package domain

import (
	"errors"
	"fmt"
)

// ErrInsufficientPoints is returned when a selection has fewer usable points
// than interpolation needs.
var ErrInsufficientPoints = errors.New("insufficient points")

// ParseError reports a required field in an ingested record that could not be
// parsed. The record is dropped; loading continues.
type ParseError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: parse %s %q: %v", e.Line, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("line %d: parse %s %q", e.Line, e.Field, e.Value)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyInputError is returned by the region builder when no point has finite
// coordinates.
type EmptyInputError struct {
	Points int
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("no finite coordinates among %d points", e.Points)
}

// ValidationError is a client input problem: an unsupported or missing lookup
// field. It is never a cache miss.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}
