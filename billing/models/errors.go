package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// MessageInvalidJSON is reported under the "request" field when the body cannot be decoded
	MessageInvalidJSON = "Invalid JSON payload."

	// MessageUnexpected is the only detail returned for unhandled failures
	MessageUnexpected = "An unexpected error occurred."
)

// ValidationError is an ordered mapping of field path to messages.
// Fields keep the order in which their first message was added.
type ValidationError struct {
	order  []string
	fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{fields: make(map[string][]string)}
}

// Add records a message for a field. Repeated identical messages are kept once.
func (e *ValidationError) Add(field, message string) {
	if e.fields == nil {
		e.fields = make(map[string][]string)
	}
	msgs, ok := e.fields[field]
	if !ok {
		e.order = append(e.order, field)
	}
	for _, m := range msgs {
		if m == message {
			return
		}
	}
	e.fields[field] = append(msgs, message)
}

// Merge appends every message of other, preserving its field order
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for _, field := range other.order {
		for _, msg := range other.fields[field] {
			e.Add(field, msg)
		}
	}
}

func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.order) > 0
}

// Fields returns the field paths in insertion order
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.order...)
}

func (e *ValidationError) Messages(field string) []string {
	return append([]string(nil), e.fields[field]...)
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.order))
	for _, field := range e.order {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.fields[field], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// MarshalJSON writes the fields as a JSON object in insertion order
func (e *ValidationError) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, field := range e.order {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(field)
		if err != nil {
			return nil, err
		}
		msgs, err := json.Marshal(e.fields[field])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(msgs)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// ConflictError is returned when a bill number is already taken
type ConflictError struct {
	BillNumber string
	Err        error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Bill number '%s' already exists.", e.BillNumber)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Conflict() bool { return true }

// conflicter is implemented by failures that can be classified as a uniqueness conflict
type conflicter interface {
	Conflict() bool
}

// IsConflict reports whether any error in err's chain classifies itself as a conflict
func IsConflict(err error) bool {
	var c conflicter
	return errors.As(err, &c) && c.Conflict()
}

// BrokerError is returned when an event could not be delivered to the message broker
type BrokerError struct {
	Op  string
	Err error
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker %s failed: %v", e.Op, e.Err)
}

func (e *BrokerError) Unwrap() error { return e.Err }
