package application

import (
	"slices"
	"time"

	"github.com/example/session-scheduler/internal/access"
	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/recurrence"
	"github.com/example/session-scheduler/internal/scheduler"
)

// Session is a countable unit of work: a standalone session, a recurring template or
// an occurrence generated from one.
type Session struct {
	ID              string
	Name            string
	Type            string
	Status          scheduler.Status
	RepeatType      recurrence.RepeatType
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

// IsTemplate reports whether the session is a recurring template.
func (s Session) IsTemplate() bool {
	return s.ParentSessionID == nil && s.RepeatType != "" && s.RepeatType != recurrence.OneTime
}

// IsOccurrence reports whether the session was generated from a template.
func (s Session) IsOccurrence() bool {
	return s.ParentSessionID != nil
}

// AccessView returns the fields the access controller reads.
func (s Session) AccessView() access.Session {
	return access.Session{
		Status:        s.Status,
		ScheduledDate: s.ScheduledDate,
		ValidFrom:     s.ValidFrom,
		ValidUntil:    s.ValidUntil,
		IsTemplate:    s.IsTemplate(),
	}
}

// TemplateInput captures caller provided template fields.
type TemplateInput struct {
	Name          string     `json:"name" validate:"required,max=200"`
	Type          string     `json:"type" validate:"max=100"`
	RepeatType    string     `json:"repeat_type" validate:"required,oneof=daily weekly monthly"`
	RepeatDays    []string   `json:"repeat_days" validate:"max=31,dive,required"`
	RepeatEndDate *time.Time `json:"repeat_end_date"`
	SessionDate   time.Time  `json:"session_date"`
	StartTime     string     `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime       string     `json:"end_time" validate:"omitempty,datetime=15:04"`
	ValidFrom     *time.Time `json:"valid_from"`
	ValidUntil    *time.Time `json:"valid_until"`
	CreatedBy     string     `json:"created_by" validate:"required"`
	ItemIDs       []string   `json:"item_ids" validate:"dive,required"`
	UserIDs       []string   `json:"user_ids" validate:"dive,required"`
}

// GenerateResult reports one generation run for a template.
type GenerateResult struct {
	TemplateID  string
	Created     int
	Seeded      int
	Errors      []string
	Truncated   bool
	Occurrences []Session
}

// BatchResult aggregates GenerateAll over every eligible template.
type BatchResult struct {
	Templates int
	Created   int
	Seeded    int
	Errors    []string
	Results   []GenerateResult
}

// SyncResult reports a propagation workflow. Updated counts targets whose item and
// user sets were both replaced.
type SyncResult struct {
	SourceID string
	Targets  int
	Updated  int
	Errors   []string
}

// SelectableSession pairs a selectable session with its remaining-time bucket.
type SelectableSession struct {
	Session   Session
	Remaining time.Duration
	Urgency   access.Urgency
}

func toPersistenceSession(s Session) persistence.Session {
	return persistence.Session{
		ID:              s.ID,
		Name:            s.Name,
		Type:            s.Type,
		Status:          string(s.Status),
		RepeatType:      string(s.RepeatType),
		RepeatDays:      slices.Clone(s.RepeatDays),
		RepeatEndDate:   s.RepeatEndDate,
		SessionDate:     s.SessionDate,
		ScheduledDate:   s.ScheduledDate,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		ValidFrom:       s.ValidFrom,
		ValidUntil:      s.ValidUntil,
		ParentSessionID: s.ParentSessionID,
		CreatedBy:       s.CreatedBy,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func fromPersistenceSession(s persistence.Session) Session {
	repeatType := recurrence.RepeatType(s.RepeatType)
	if repeatType == "" {
		repeatType = recurrence.OneTime
	}
	return Session{
		ID:              s.ID,
		Name:            s.Name,
		Type:            s.Type,
		Status:          scheduler.Status(s.Status),
		RepeatType:      repeatType,
		RepeatDays:      slices.Clone(s.RepeatDays),
		RepeatEndDate:   s.RepeatEndDate,
		SessionDate:     s.SessionDate,
		ScheduledDate:   s.ScheduledDate,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		ValidFrom:       s.ValidFrom,
		ValidUntil:      s.ValidUntil,
		ParentSessionID: s.ParentSessionID,
		CreatedBy:       s.CreatedBy,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func fromPersistenceSessions(rows []persistence.Session) []Session {
	out := make([]Session, len(rows))
	for i, row := range rows {
		out[i] = fromPersistenceSession(row)
	}
	return out
}
