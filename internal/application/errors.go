package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/session-scheduler/internal/access"
	"github.com/example/session-scheduler/internal/persistence"
)

var (
	// ErrNotFound is returned when the requested session does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a session collides with an existing one.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidTransition is returned when a status change is not in the transition table.
	ErrInvalidTransition = errors.New("application: invalid status transition")
	// ErrNotTemplate is returned when a template operation targets a non-template session.
	ErrNotTemplate = errors.New("application: session is not a recurring template")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// StoreError wraps a storage failure. Callers may retry; the operation had no effect
// beyond what the store committed before failing.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("application: store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// storeError maps repository errors onto application errors.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
	}
	return &StoreError{Op: op, Err: err}
}

// AccessBlockedError reports a write attempt rejected by the access controller.
type AccessBlockedError struct {
	SessionID string
	Result    access.Result
}

func (e *AccessBlockedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Result.Detail != "" {
		return fmt.Sprintf("application: session %s blocked: %s (%s)", e.SessionID, e.Result.Reason, e.Result.Detail)
	}
	return fmt.Sprintf("application: session %s blocked: %s", e.SessionID, e.Result.Reason)
}
