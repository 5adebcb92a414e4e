// Package access decides whether a session can be selected or written to at a given
// instant. The functions are pure: callers supply now and today.
package access

import (
	"time"

	"github.com/example/session-scheduler/internal/scheduler"
)

// Reason explains why write access is blocked.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonSessionNotFound Reason = "session_not_found"
	ReasonSessionClosed   Reason = "session_closed"
	ReasonNotYetActive    Reason = "session_not_yet_active"
	ReasonNotStarted      Reason = "session_not_started"
	ReasonExpired         Reason = "session_expired"
)

// Session is the slice of a session the controller reads.
type Session struct {
	Status        scheduler.Status
	ScheduledDate *time.Time
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	IsTemplate    bool
}

// Result is the outcome of a write access check. Detail carries the offending status
// for ReasonSessionClosed; Boundary carries the window edge for the time based reasons.
type Result struct {
	Allowed  bool
	Reason   Reason
	Detail   string
	Boundary *time.Time
}

func allowed() Result {
	return Result{Allowed: true}
}

func blocked(reason Reason, detail string, boundary *time.Time) Result {
	return Result{Reason: reason, Detail: detail, Boundary: boundary}
}

// ClassifyWriteAccess decides whether session accepts writes at now.
//
// Status is checked before the validity window, so a closed session stays blocked even
// inside its window. The window applies only when both bounds are set.
func ClassifyWriteAccess(session *Session, now time.Time) Result {
	if session == nil {
		return blocked(ReasonSessionNotFound, "", nil)
	}
	if session.Status.Finished() {
		return blocked(ReasonSessionClosed, string(session.Status), nil)
	}
	if session.Status == scheduler.StatusScheduled {
		return blocked(ReasonNotYetActive, "", nil)
	}
	if session.ValidFrom != nil && session.ValidUntil != nil {
		if now.Before(*session.ValidFrom) {
			from := *session.ValidFrom
			return blocked(ReasonNotStarted, from.UTC().Format(time.RFC3339), &from)
		}
		if now.After(*session.ValidUntil) {
			until := *session.ValidUntil
			return blocked(ReasonExpired, until.UTC().Format(time.RFC3339), &until)
		}
	}
	return allowed()
}

// IsVisibleForSelection decides whether session may appear in the list a counter picks
// from. today is the civil date of now in the scheduler's timezone, at midnight UTC.
func IsVisibleForSelection(session Session, now, today time.Time) bool {
	if session.Status == scheduler.StatusScheduled {
		if session.ScheduledDate == nil || !sameDate(*session.ScheduledDate, today) {
			return false
		}
	}
	if session.ValidUntil != nil && session.ValidUntil.Before(now) {
		return false
	}
	if session.ValidFrom != nil && session.ValidFrom.After(now) {
		return false
	}
	return !session.IsTemplate
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
