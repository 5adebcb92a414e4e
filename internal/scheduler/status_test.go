package scheduler

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusActive, true},
		{StatusDraft, StatusScheduled, true},
		{StatusScheduled, StatusActive, true},
		{StatusActive, StatusClosed, true},
		{StatusCompleted, StatusActive, true},
		{StatusClosed, StatusActive, true},
		{StatusCancelled, StatusDraft, true},
		{StatusActive, StatusActive, true},
		{StatusClosed, StatusScheduled, false},
		{StatusCancelled, StatusActive, false},
		{StatusActive, StatusDraft, false},
		{Status("archived"), StatusActive, false},
		{Status("archived"), Status("archived"), false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	status, err := ParseStatus(" Active ")
	if err != nil || status != StatusActive {
		t.Fatalf("expected active, got %q, %v", status, err)
	}
	if _, err := ParseStatus("archived"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestStatus_Finished(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusClosed, StatusCompleted, StatusCancelled} {
		if !s.Finished() {
			t.Errorf("%s should be finished", s)
		}
	}
	for _, s := range []Status{StatusDraft, StatusActive, StatusScheduled} {
		if s.Finished() {
			t.Errorf("%s should not be finished", s)
		}
	}
}
