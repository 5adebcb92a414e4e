package persistence

import "time"

// Session is a row of the sessions table. Templates, standalone sessions and generated
// occurrences share the same shape; ParentSessionID distinguishes occurrences.
type Session struct {
	ID              string
	Name            string
	Type            string
	Status          string
	RepeatType      string
	RepeatDays      []string
	RepeatEndDate   *time.Time
	SessionDate     time.Time
	ScheduledDate   *time.Time
	StartTime       string
	EndTime         string
	ValidFrom       *time.Time
	ValidUntil      *time.Time
	ParentSessionID *string
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SessionFilter narrows session queries. Zero values disable the corresponding clause.
type SessionFilter struct {
	ParentID      *string
	OnlyTemplates bool
	// DateAfter keeps sessions strictly after the given civil date.
	DateAfter *time.Time
	// DateFrom and DateTo bound session_date inclusively.
	DateFrom *time.Time
	DateTo   *time.Time
	Statuses []string
}
