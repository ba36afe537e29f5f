package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotAuthenticated is returned when a persistence operation runs without a session.
	ErrNotAuthenticated = errors.New("user is not authenticated")
	// ErrNotFound is returned when the targeted product is absent from the store.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicate is returned when a product with the same id already exists for the user.
	ErrDuplicate = errors.New("product already exists")
	// ErrUnknownCollection is returned for collection names outside Collections().
	ErrUnknownCollection = errors.New("unknown collection")

	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenExpired       = errors.New("token has expired")
)

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a message for field, keeping the first one.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Outcome tells callers how a write ended up in local and remote state.
type Outcome string

const (
	OutcomeSaved   Outcome = "saved"
	OutcomePending Outcome = "pending"
	// OutcomeReverted means the remote write failed and local state was rolled back.
	OutcomeReverted Outcome = "failed_reverted"
	// OutcomeUnreconciled means the remote write failed and the store could not be
	// restored; the local copy is kept as orphaned until a reconcile pass.
	OutcomeUnreconciled Outcome = "failed_unreconciled"
)

// RemoteError wraps a document store failure with the resulting outcome.
type RemoteError struct {
	Op      string
	Outcome Outcome
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Outcome, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
