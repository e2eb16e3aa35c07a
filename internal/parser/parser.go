// Package parser decodes CLEF documents into events.
//
// A CLEF document is a single JSON object. Fields whose names are in the
// clef catalog ("@t", "@mt", "@l", ...) carry event metadata; every other
// field is a user property.
package parser

import (
	"errors"
	"fmt"
)

// Common errors returned by the decoder.
var (
	// ErrInvalidData is matched by every *FormatError.
	ErrInvalidData = errors.New("invalid data in line")

	// ErrEmptyDocument is the cause when a document is empty or whitespace.
	ErrEmptyDocument = errors.New("empty document")
)

// FormatError reports a document that cannot be decoded into an event.
type FormatError struct {
	// Line is the 1-based line number of the document.
	Line int

	// Field names the offending field; empty when the whole document is at fault.
	Field string

	// Reason describes the problem.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrInvalidData) hold for every FormatError.
func (e *FormatError) Is(target error) bool {
	return target == ErrInvalidData
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func documentError(line int, reason string, cause error) *FormatError {
	return &FormatError{Line: line, Reason: reason, Err: cause}
}

func fieldError(line int, field, reason string, cause error) *FormatError {
	return &FormatError{
		Line:   line,
		Field:  field,
		Reason: fmt.Sprintf("the value of `%s` %s", field, reason),
		Err:    cause,
	}
}
