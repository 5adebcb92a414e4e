package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/recurrence"
	"github.com/example/session-scheduler/internal/scheduler"
)

var (
	templateCounter   uint64
	occurrenceCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Date parses a YYYY-MM-DD civil date and panics on malformed input. It is meant for
// literal dates in tests.
func Date(value string) time.Time {
	parsed, err := recurrence.ParseDate(value)
	if err != nil {
		panic(err)
	}
	return parsed
}

// DatePtr is Date returning a pointer.
func DatePtr(value string) *time.Time {
	d := Date(value)
	return &d
}

// --------------------------- Template fixtures ---------------------------

// TemplateFixture is a deterministic recurring template together with the
// assignment sets it should carry.
type TemplateFixture struct {
	ID            string
	Name          string
	Type          string
	Status        scheduler.Status
	RepeatType    recurrence.RepeatType
	RepeatDays    []string
	RepeatEndDate *time.Time
	SessionDate   time.Time
	StartTime     string
	EndTime       string
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	CreatedBy     string
	ItemIDs       []string
	UserIDs       []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TemplateOption configures a TemplateFixture.
type TemplateOption func(*TemplateFixture)

// NewTemplateFixture returns a daily template anchored on the reference date with a
// four day run, overridden by opts.
func NewTemplateFixture(opts ...TemplateOption) TemplateFixture {
	idx := atomic.AddUint64(&templateCounter, 1)
	anchor := recurrence.DateOf(referenceTime)
	end := anchor.AddDate(0, 0, 4)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := TemplateFixture{
		ID:            fmt.Sprintf("tpl-%03d", idx),
		Name:          fmt.Sprintf("Count %03d", idx),
		Type:          "cycle_count",
		Status:        scheduler.StatusActive,
		RepeatType:    recurrence.Daily,
		RepeatEndDate: &end,
		SessionDate:   anchor,
		CreatedBy:     "planner",
		ItemIDs:       []string{"item-a", "item-b"},
		UserIDs:       []string{"user-a"},
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTemplateID overrides the generated identifier.
func WithTemplateID(id string) TemplateOption {
	return func(f *TemplateFixture) {
		f.ID = id
	}
}

// WithTemplateName overrides the template name.
func WithTemplateName(name string) TemplateOption {
	return func(f *TemplateFixture) {
		f.Name = name
	}
}

// WithTemplateStatus sets the lifecycle status.
func WithTemplateStatus(status scheduler.Status) TemplateOption {
	return func(f *TemplateFixture) {
		f.Status = status
	}
}

// WithRepeat sets the repeat type and days.
func WithRepeat(repeatType recurrence.RepeatType, days ...string) TemplateOption {
	return func(f *TemplateFixture) {
		f.RepeatType = repeatType
		f.RepeatDays = days
	}
}

// WithAnchor sets the template's own session date.
func WithAnchor(date time.Time) TemplateOption {
	return func(f *TemplateFixture) {
		f.SessionDate = recurrence.DateOf(date)
	}
}

// WithRepeatEnd sets the inclusive end of the rule; nil makes the rule open ended.
func WithRepeatEnd(end *time.Time) TemplateOption {
	return func(f *TemplateFixture) {
		f.RepeatEndDate = end
	}
}

// WithTimes sets the HH:MM window of each occurrence.
func WithTimes(start, end string) TemplateOption {
	return func(f *TemplateFixture) {
		f.StartTime = start
		f.EndTime = end
	}
}

// WithValidity sets the explicit validity window of the template.
func WithValidity(from, until *time.Time) TemplateOption {
	return func(f *TemplateFixture) {
		f.ValidFrom = from
		f.ValidUntil = until
	}
}

// WithAssignments replaces the item and user sets.
func WithAssignments(items, users []string) TemplateOption {
	return func(f *TemplateFixture) {
		f.ItemIDs = items
		f.UserIDs = users
	}
}

// Persistence converts the fixture into a storage row.
func (f TemplateFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:            f.ID,
		Name:          f.Name,
		Type:          f.Type,
		Status:        string(f.Status),
		RepeatType:    string(f.RepeatType),
		RepeatDays:    append([]string(nil), f.RepeatDays...),
		RepeatEndDate: copyTime(f.RepeatEndDate),
		SessionDate:   f.SessionDate,
		StartTime:     f.StartTime,
		EndTime:       f.EndTime,
		ValidFrom:     copyTime(f.ValidFrom),
		ValidUntil:    copyTime(f.ValidUntil),
		CreatedBy:     f.CreatedBy,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// Input converts the fixture into the payload accepted by CreateTemplate.
func (f TemplateFixture) Input() application.TemplateInput {
	return application.TemplateInput{
		Name:          f.Name,
		Type:          f.Type,
		RepeatType:    string(f.RepeatType),
		RepeatDays:    append([]string(nil), f.RepeatDays...),
		RepeatEndDate: copyTime(f.RepeatEndDate),
		SessionDate:   f.SessionDate,
		StartTime:     f.StartTime,
		EndTime:       f.EndTime,
		ValidFrom:     copyTime(f.ValidFrom),
		ValidUntil:    copyTime(f.ValidUntil),
		CreatedBy:     f.CreatedBy,
		ItemIDs:       append([]string(nil), f.ItemIDs...),
		UserIDs:       append([]string(nil), f.UserIDs...),
	}
}

// -------------------------- Occurrence fixtures --------------------------

// OccurrenceFixture is a generated child row of a template.
type OccurrenceFixture struct {
	ID            string
	ParentID      string
	Name          string
	Status        scheduler.Status
	SessionDate   time.Time
	ScheduledDate *time.Time
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	CreatedAt     time.Time
}

// OccurrenceOption configures an OccurrenceFixture.
type OccurrenceOption func(*OccurrenceFixture)

// NewOccurrenceFixture returns a draft occurrence of parentID on date.
func NewOccurrenceFixture(parentID string, date time.Time, opts ...OccurrenceOption) OccurrenceFixture {
	idx := atomic.AddUint64(&occurrenceCounter, 1)
	day := recurrence.DateOf(date)
	fixture := OccurrenceFixture{
		ID:          fmt.Sprintf("occ-%03d", idx),
		ParentID:    parentID,
		Name:        fmt.Sprintf("Occurrence %s", recurrence.FormatDate(day)),
		Status:      scheduler.StatusDraft,
		SessionDate: day,
		CreatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithOccurrenceID overrides the generated identifier.
func WithOccurrenceID(id string) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.ID = id
	}
}

// WithOccurrenceStatus sets the lifecycle status.
func WithOccurrenceStatus(status scheduler.Status) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.Status = status
	}
}

// WithScheduledDate sets the scheduled date.
func WithScheduledDate(date *time.Time) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.ScheduledDate = date
	}
}

// WithOccurrenceValidity sets the occurrence's own validity window.
func WithOccurrenceValidity(from, until *time.Time) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.ValidFrom = from
		f.ValidUntil = until
	}
}

// Persistence converts the fixture into a storage row.
func (f OccurrenceFixture) Persistence() persistence.Session {
	parent := f.ParentID
	return persistence.Session{
		ID:              f.ID,
		Name:            f.Name,
		Status:          string(f.Status),
		RepeatType:      string(recurrence.OneTime),
		SessionDate:     f.SessionDate,
		ScheduledDate:   copyTime(f.ScheduledDate),
		ValidFrom:       copyTime(f.ValidFrom),
		ValidUntil:      copyTime(f.ValidUntil),
		ParentSessionID: &parent,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
	}
}

func copyTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
