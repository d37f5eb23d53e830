package drug

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a variant lookup misses.
var ErrNotFound = errors.New("drug not found")

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates per-field problems with a request. A bulk
// request fails as a whole with one ValidationError covering every bad
// entry.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("validation failed: %d invalid fields", len(e.Fields))
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) HasErrors() bool { return len(e.Fields) > 0 }

// ConflictError reports that an active variant already holds the same
// code and price pairing.
type ConflictError struct {
	Code  string
	Price decimal.Decimal
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("drug %s already exists at price %s", e.Code, e.Price.StringFixed(2))
}

// StorageError wraps a database failure. ActorReference marks the
// sub-case where the recorded actor does not exist in the user table,
// which points at a stale session rather than bad drug data.
type StorageError struct {
	Op             string
	ActorReference bool
	Err            error
}

func (e *StorageError) Error() string {
	if e.ActorReference {
		return fmt.Sprintf("%s: recorded user no longer exists, please sign in again", e.Op)
	}
	return fmt.Sprintf("%s: storage failure: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
