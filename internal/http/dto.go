package http

import (
	"strings"
	"time"

	"github.com/example/session-scheduler/internal/access"
	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/recurrence"
)

type sessionDTO struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Type            string   `json:"type,omitempty"`
	Status          string   `json:"status"`
	RepeatType      string   `json:"repeat_type"`
	RepeatDays      []string `json:"repeat_days,omitempty"`
	RepeatEndDate   *string  `json:"repeat_end_date,omitempty"`
	SessionDate     string   `json:"session_date"`
	ScheduledDate   *string  `json:"scheduled_date,omitempty"`
	StartTime       string   `json:"start_time,omitempty"`
	EndTime         string   `json:"end_time,omitempty"`
	ValidFrom       *string  `json:"valid_from,omitempty"`
	ValidUntil      *string  `json:"valid_until,omitempty"`
	ParentSessionID *string  `json:"parent_session_id,omitempty"`
	IsTemplate      bool     `json:"is_recurring_template"`
	CreatedBy       string   `json:"created_by"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

func toSessionDTO(s application.Session) sessionDTO {
	return sessionDTO{
		ID:              s.ID,
		Name:            s.Name,
		Type:            s.Type,
		Status:          string(s.Status),
		RepeatType:      string(s.RepeatType),
		RepeatDays:      append([]string(nil), s.RepeatDays...),
		RepeatEndDate:   formatDatePtr(s.RepeatEndDate),
		SessionDate:     recurrence.FormatDate(s.SessionDate),
		ScheduledDate:   formatDatePtr(s.ScheduledDate),
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		ValidFrom:       formatInstantPtr(s.ValidFrom),
		ValidUntil:      formatInstantPtr(s.ValidUntil),
		ParentSessionID: s.ParentSessionID,
		IsTemplate:      s.IsTemplate(),
		CreatedBy:       s.CreatedBy,
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toSessionDTOs(sessions []application.Session) []sessionDTO {
	out := make([]sessionDTO, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionDTO(s))
	}
	return out
}

type generateDTO struct {
	TemplateID  string       `json:"template_id"`
	Created     int          `json:"created"`
	Seeded      int          `json:"seeded"`
	Errors      []string     `json:"errors"`
	Truncated   bool         `json:"truncated,omitempty"`
	Occurrences []sessionDTO `json:"occurrences,omitempty"`
}

func toGenerateDTO(r application.GenerateResult) generateDTO {
	dto := generateDTO{
		TemplateID: r.TemplateID,
		Created:    r.Created,
		Seeded:     r.Seeded,
		Errors:     nonNil(r.Errors),
		Truncated:  r.Truncated,
	}
	if len(r.Occurrences) > 0 {
		dto.Occurrences = toSessionDTOs(r.Occurrences)
	}
	return dto
}

type batchDTO struct {
	Templates int      `json:"templates"`
	Created   int      `json:"created"`
	Seeded    int      `json:"seeded"`
	Errors    []string `json:"errors"`
}

type syncDTO struct {
	SourceID string   `json:"source_id"`
	Targets  int      `json:"targets"`
	Updated  int      `json:"updated"`
	Errors   []string `json:"errors"`
}

func toSyncDTO(r application.SyncResult) syncDTO {
	return syncDTO{SourceID: r.SourceID, Targets: r.Targets, Updated: r.Updated, Errors: nonNil(r.Errors)}
}

type accessDTO struct {
	SessionID string  `json:"session_id"`
	Allowed   bool    `json:"allowed"`
	Reason    string  `json:"reason,omitempty"`
	Detail    string  `json:"detail,omitempty"`
	Boundary  *string `json:"boundary,omitempty"`
}

func toAccessDTO(sessionID string, r access.Result) accessDTO {
	return accessDTO{
		SessionID: sessionID,
		Allowed:   r.Allowed,
		Reason:    string(r.Reason),
		Detail:    r.Detail,
		Boundary:  formatInstantPtr(r.Boundary),
	}
}

type selectableDTO struct {
	Session          sessionDTO `json:"session"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	Urgency          string     `json:"urgency"`
}

type assignmentsDTO struct {
	ItemIDs []string `json:"item_ids"`
	UserIDs []string `json:"user_ids"`
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := recurrence.FormatDate(*t)
	return &v
}

func formatInstantPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(time.RFC3339)
	return &v
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// parseOptionalDate parses an optional YYYY-MM-DD field, recording a field error on failure.
func parseOptionalDate(field string, value *string, errs map[string]string) *time.Time {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	parsed, err := recurrence.ParseDate(*value)
	if err != nil {
		errs[field] = "must be a YYYY-MM-DD date"
		return nil
	}
	return &parsed
}

// parseOptionalInstant parses an optional RFC 3339 field, recording a field error on failure.
func parseOptionalInstant(field string, value *string, errs map[string]string) *time.Time {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*value))
	if err != nil {
		errs[field] = "must be an RFC 3339 timestamp"
		return nil
	}
	return &parsed
}
