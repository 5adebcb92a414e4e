// Package scheduler holds the session lifecycle rules shared by the access controller
// and the application services.
package scheduler

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Status classifies where a session is in its lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusClosed    Status = "closed"
)

// ErrUnknownStatus is returned by ParseStatus for values outside the lifecycle.
var ErrUnknownStatus = errors.New("scheduler: unknown status")

var transitions = map[Status][]Status{
	StatusDraft:     {StatusActive, StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusActive, StatusDraft, StatusCancelled},
	StatusActive:    {StatusCompleted, StatusClosed, StatusCancelled},
	StatusCompleted: {StatusClosed, StatusActive},
	StatusClosed:    {StatusActive},
	StatusCancelled: {StatusDraft},
}

// ParseStatus converts a stored status string.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, value)
	}
	return status, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Finished reports whether the session no longer accepts work.
func (s Status) Finished() bool {
	return s == StatusClosed || s == StatusCompleted || s == StatusCancelled
}

// Next lists the statuses reachable from s in one step.
func (s Status) Next() []Status {
	return slices.Clone(transitions[s])
}

// CanTransition reports whether a session may move from one status to another.
// Staying on the same status is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return from.Valid()
	}
	return slices.Contains(transitions[from], to)
}
