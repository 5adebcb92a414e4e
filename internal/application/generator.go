package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/recurrence"
	"github.com/example/session-scheduler/internal/scheduler"
)

// OccurrenceGenerator expands template rules into dated occurrence rows.
type OccurrenceGenerator struct {
	sessions    persistence.SessionRepository
	propagator  *AssignmentPropagator
	engine      *recurrence.Engine
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	instruments *Instruments
	flight      singleflight.Group
}

// NewOccurrenceGenerator wires a generator. A nil engine uses UTC with default limits.
func NewOccurrenceGenerator(sessions persistence.SessionRepository, propagator *AssignmentPropagator, engine *recurrence.Engine, idGenerator func() string, now func() time.Time, logger *slog.Logger, instruments *Instruments) *OccurrenceGenerator {
	if engine == nil {
		engine = recurrence.NewEngine(time.UTC, 0, 0)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &OccurrenceGenerator{
		sessions:    sessions,
		propagator:  propagator,
		engine:      engine,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
		instruments: instruments,
	}
}

// Generate creates the missing occurrences of a template within its window and seeds
// each new one from the template's current assignments.
//
// Re-running is safe: dates that already have an occurrence are skipped, so a second run
// creates nothing. Concurrent calls for the same template share one run. One-time
// sessions are a no-op. Seeding failures do not stop the run; they are reported in
// Errors and leave Seeded below Created.
func (g *OccurrenceGenerator) Generate(ctx context.Context, templateID string) (GenerateResult, error) {
	v, err, _ := g.flight.Do(templateID, func() (any, error) {
		return g.generate(ctx, templateID)
	})
	if err != nil {
		return GenerateResult{TemplateID: templateID}, err
	}
	return v.(GenerateResult), nil
}

func (g *OccurrenceGenerator) generate(ctx context.Context, templateID string) (result GenerateResult, err error) {
	ctx, span := g.instruments.start(ctx, "OccurrenceGenerator.Generate", attribute.String("template_id", templateID))
	defer func() { endSpan(span, err) }()

	logger := serviceLogger(ctx, g.logger, "OccurrenceGenerator", "Generate", "template_id", templateID)
	result = GenerateResult{TemplateID: templateID}

	row, err := g.sessions.GetSession(ctx, templateID)
	if err != nil {
		return result, storeError("get template", err)
	}
	template := fromPersistenceSession(row)

	rule, err := ruleFor(template)
	if err != nil {
		logger.Warn("template rule rejected", "error", err)
		return result, err
	}
	if !rule.Recurring() || template.IsOccurrence() {
		return result, nil
	}

	dates, truncated := g.engine.Dates(rule, g.now())
	result.Truncated = truncated
	if truncated {
		logger.Warn("occurrence cap reached", "dates", len(dates))
	}
	if len(dates) == 0 {
		return result, nil
	}

	existing, err := g.existingDates(ctx, templateID, dates[0], dates[len(dates)-1])
	if err != nil {
		return result, err
	}

	staged := make([]persistence.Session, 0, len(dates))
	for _, date := range dates {
		if _, ok := existing[recurrence.FormatDate(date)]; ok {
			continue
		}
		staged = append(staged, toPersistenceSession(g.occurrenceFor(template, date)))
	}
	if len(staged) == 0 {
		logger.Debug("no missing occurrences")
		return result, nil
	}

	inserted, err := g.sessions.InsertOccurrences(ctx, staged)
	if err != nil {
		logger.Error("insert occurrences failed", "error", err, "staged", len(staged))
		return result, storeError("insert occurrences", err)
	}
	result.Created = len(inserted)
	result.Occurrences = fromPersistenceSessions(inserted)

	g.seed(ctx, logger, templateID, &result)
	g.instruments.recordGenerate(ctx, templateID, result)

	logger.Info("occurrences generated",
		"created", result.Created,
		"seeded", result.Seeded,
		"errors", len(result.Errors),
		"truncated", result.Truncated,
	)
	return result, nil
}

func (g *OccurrenceGenerator) existingDates(ctx context.Context, templateID string, from, to time.Time) (map[string]struct{}, error) {
	rows, err := g.sessions.ListSessions(ctx, persistence.SessionFilter{
		ParentID: &templateID,
		DateFrom: &from,
		DateTo:   &to,
	})
	if err != nil {
		return nil, storeError("list occurrences", err)
	}
	dates := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		dates[recurrence.FormatDate(row.SessionDate)] = struct{}{}
	}
	return dates, nil
}

// seed copies the template's assignment sets onto every inserted occurrence.
func (g *OccurrenceGenerator) seed(ctx context.Context, logger *slog.Logger, templateID string, result *GenerateResult) {
	if g.propagator == nil {
		return
	}
	items, users, err := g.propagator.snapshot(ctx, templateID)
	if err != nil {
		logger.Error("read template assignments failed", "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("template %s: %v", templateID, err))
		return
	}
	for _, occurrence := range result.Occurrences {
		if err := g.propagator.ReplaceAssignments(ctx, occurrence.ID, items, users); err != nil {
			logger.Warn("seed occurrence failed", "session_id", occurrence.ID, "error", err, "error_kind", ErrorKind(err))
			result.Errors = append(result.Errors, fmt.Sprintf("occurrence %s (%s): %v",
				occurrence.ID, recurrence.FormatDate(occurrence.SessionDate), err))
			continue
		}
		result.Seeded++
	}
}

func (g *OccurrenceGenerator) occurrenceFor(template Session, date time.Time) Session {
	now := g.now()
	parentID := template.ID
	occurrence := Session{
		ID:              g.idGenerator(),
		Name:            occurrenceName(template.Name, date),
		Type:            template.Type,
		Status:          scheduler.StatusActive,
		RepeatType:      recurrence.OneTime,
		SessionDate:     date,
		StartTime:       template.StartTime,
		EndTime:         template.EndTime,
		ParentSessionID: &parentID,
		CreatedBy:       template.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	occurrence.ValidFrom, occurrence.ValidUntil = derivedWindow(date, template.StartTime, template.EndTime, g.engine.Location())
	return occurrence
}

// occurrenceName renders "{template} - {weekday} {date}".
func occurrenceName(templateName string, date time.Time) string {
	return fmt.Sprintf("%s - %s %s", templateName, date.Weekday(), date.Format("January 2, 2006"))
}

// derivedWindow turns the template's HH:MM times into an absolute validity window on
// date. Either time missing or the end not after the start leaves the window open.
func derivedWindow(date time.Time, start, end string, loc *time.Location) (*time.Time, *time.Time) {
	if _, err := time.Parse("15:04", start); err != nil {
		return nil, nil
	}
	if _, err := time.Parse("15:04", end); err != nil {
		return nil, nil
	}
	from := recurrence.At(date, start, loc)
	until := recurrence.At(date, end, loc)
	if !until.After(from) {
		return nil, nil
	}
	return &from, &until
}

// ruleFor parses a session's recurrence fields, reporting problems as a ValidationError.
func ruleFor(s Session) (recurrence.Rule, error) {
	rule, err := recurrence.NewRule(string(s.RepeatType), s.RepeatDays, s.SessionDate, s.RepeatEndDate)
	switch {
	case err == nil:
		return rule, nil
	case errors.Is(err, recurrence.ErrInvalidRepeatType):
		return recurrence.Rule{}, fieldError("repeat_type", err.Error())
	case errors.Is(err, recurrence.ErrInvalidRepeatDay):
		return recurrence.Rule{}, fieldError("repeat_days", err.Error())
	case errors.Is(err, recurrence.ErrInvalidWindow):
		return recurrence.Rule{}, fieldError("repeat_end_date", err.Error())
	}
	return recurrence.Rule{}, fieldError("repeat_type", err.Error())
}
