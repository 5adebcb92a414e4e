package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/session-scheduler/internal/access"
	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/recurrence"
	"github.com/example/session-scheduler/internal/scheduler"
)

// SessionServiceConfig carries the optional collaborators of a SessionService.
type SessionServiceConfig struct {
	Engine          *recurrence.Engine
	SyncPolicy      SyncPolicy
	SyncConcurrency int
	IDGenerator     func() string
	Now             func() time.Time
	Logger          *slog.Logger
	Instruments     *Instruments
}

// SessionService is the entry point for template administration, occurrence
// generation, assignment sync and write access checks.
type SessionService struct {
	sessions    persistence.SessionRepository
	assignments persistence.AssignmentRepository
	engine      *recurrence.Engine
	generator   *OccurrenceGenerator
	propagator  *AssignmentPropagator
	sync        *SyncOrchestrator
	validate    *validator.Validate
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	instruments *Instruments
}

// NewSessionService wires the service and its workflows over the given repositories.
func NewSessionService(sessions persistence.SessionRepository, assignments persistence.AssignmentRepository, cfg SessionServiceConfig) *SessionService {
	if cfg.Engine == nil {
		cfg.Engine = recurrence.NewEngine(time.UTC, 0, 0)
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = func() string { return "" }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := defaultLogger(cfg.Logger)

	propagator := NewAssignmentPropagator(assignments, logger)
	return &SessionService{
		sessions:    sessions,
		assignments: assignments,
		engine:      cfg.Engine,
		generator:   NewOccurrenceGenerator(sessions, propagator, cfg.Engine, cfg.IDGenerator, cfg.Now, logger, cfg.Instruments),
		propagator:  propagator,
		sync:        NewSyncOrchestrator(sessions, propagator, cfg.Engine, cfg.SyncPolicy, cfg.SyncConcurrency, cfg.Now, logger, cfg.Instruments),
		validate:    newValidator(),
		idGenerator: cfg.IDGenerator,
		now:         cfg.Now,
		logger:      logger,
		instruments: cfg.Instruments,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// Engine exposes the recurrence engine the service evaluates rules with.
func (s *SessionService) Engine() *recurrence.Engine {
	return s.engine
}

// GetSession loads a session by ID.
func (s *SessionService) GetSession(ctx context.Context, id string) (Session, error) {
	row, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return Session{}, storeError("get session", err)
	}
	return fromPersistenceSession(row), nil
}

// Assignments returns the item and user sets of a session.
func (s *SessionService) Assignments(ctx context.Context, id string) (items, users []string, err error) {
	return s.propagator.snapshot(ctx, id)
}

// ListOccurrences returns the occurrences generated from a template in date order.
func (s *SessionService) ListOccurrences(ctx context.Context, templateID string) ([]Session, error) {
	rows, err := s.sessions.ListSessions(ctx, persistence.SessionFilter{ParentID: &templateID})
	if err != nil {
		return nil, storeError("list occurrences", err)
	}
	return fromPersistenceSessions(rows), nil
}

// CreateTemplate validates and stores a recurring template with its assignment sets,
// then generates its occurrences. A generation failure is returned alongside the stored
// template.
func (s *SessionService) CreateTemplate(ctx context.Context, input TemplateInput) (Session, GenerateResult, error) {
	logger := serviceLogger(ctx, s.logger, "SessionService", "CreateTemplate", "name", input.Name)

	rule, vErr := s.validateTemplate(input)
	if vErr.HasErrors() {
		logger.Info("template rejected", "error_kind", "validation", "fields", vErr.FieldErrors)
		return Session{}, GenerateResult{}, vErr
	}

	now := s.now()
	template := Session{
		ID:            s.idGenerator(),
		Name:          strings.TrimSpace(input.Name),
		Type:          strings.TrimSpace(input.Type),
		Status:        scheduler.StatusActive,
		RepeatType:    rule.Type,
		RepeatDays:    rule.Days,
		RepeatEndDate: rule.Until,
		SessionDate:   rule.Anchor,
		StartTime:     input.StartTime,
		EndTime:       input.EndTime,
		ValidFrom:     input.ValidFrom,
		ValidUntil:    input.ValidUntil,
		CreatedBy:     input.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.sessions.CreateSession(ctx, toPersistenceSession(template)); err != nil {
		err = storeError("create template", err)
		logger.Error("create template failed", "error", err, "error_kind", ErrorKind(err))
		return Session{}, GenerateResult{}, err
	}
	if err := s.propagator.ReplaceAssignments(ctx, template.ID, input.ItemIDs, input.UserIDs); err != nil {
		logger.Error("store template assignments failed", "template_id", template.ID, "error", err)
		return template, GenerateResult{TemplateID: template.ID}, err
	}

	result, err := s.generator.Generate(ctx, template.ID)
	if err != nil {
		return template, result, err
	}
	logger.Info("template created", "template_id", template.ID, "created", result.Created)
	return template, result, nil
}

// UpdateTemplate rewrites a template's rule, display fields and own assignment sets,
// then generates any occurrences the new rule adds. Existing occurrences keep their
// assignments until an explicit sync.
func (s *SessionService) UpdateTemplate(ctx context.Context, id string, input TemplateInput) (Session, GenerateResult, error) {
	logger := serviceLogger(ctx, s.logger, "SessionService", "UpdateTemplate", "template_id", id)

	existing, err := s.GetSession(ctx, id)
	if err != nil {
		return Session{}, GenerateResult{}, err
	}
	if !existing.IsTemplate() {
		return Session{}, GenerateResult{}, fmt.Errorf("update %s: %w", id, ErrNotTemplate)
	}
	if input.CreatedBy == "" {
		input.CreatedBy = existing.CreatedBy
	}

	rule, vErr := s.validateTemplate(input)
	if vErr.HasErrors() {
		return Session{}, GenerateResult{}, vErr
	}

	updated := existing
	updated.Name = strings.TrimSpace(input.Name)
	updated.Type = strings.TrimSpace(input.Type)
	updated.RepeatType = rule.Type
	updated.RepeatDays = rule.Days
	updated.RepeatEndDate = rule.Until
	updated.SessionDate = rule.Anchor
	updated.StartTime = input.StartTime
	updated.EndTime = input.EndTime
	updated.ValidFrom = input.ValidFrom
	updated.ValidUntil = input.ValidUntil
	updated.UpdatedAt = s.now()

	if err := s.sessions.UpdateSession(ctx, toPersistenceSession(updated)); err != nil {
		return Session{}, GenerateResult{}, storeError("update template", err)
	}
	if err := s.propagator.ReplaceAssignments(ctx, id, input.ItemIDs, input.UserIDs); err != nil {
		return updated, GenerateResult{TemplateID: id}, err
	}

	result, err := s.generator.Generate(ctx, id)
	if err != nil {
		return updated, result, err
	}
	logger.Info("template updated", "created", result.Created)
	return updated, result, nil
}

func (s *SessionService) validateTemplate(input TemplateInput) (recurrence.Rule, *ValidationError) {
	vErr := &ValidationError{}
	if err := s.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				vErr.add(fieldName(fe), validationMessage(fe))
			}
		} else {
			vErr.add("input", err.Error())
		}
	}

	if input.SessionDate.IsZero() {
		vErr.add("session_date", "is required")
	}

	if !vErr.HasErrors() {
		template := Session{
			RepeatType:    recurrence.RepeatType(input.RepeatType),
			RepeatDays:    input.RepeatDays,
			SessionDate:   input.SessionDate,
			RepeatEndDate: input.RepeatEndDate,
		}
		rule, err := ruleFor(template)
		if err != nil {
			var ruleErr *ValidationError
			if errors.As(err, &ruleErr) {
				vErr.merge(ruleErr)
			}
		} else {
			validateSchedule(input, vErr)
			if !vErr.HasErrors() {
				return rule, vErr
			}
		}
	}
	return recurrence.Rule{}, vErr
}

func validateSchedule(input TemplateInput, vErr *ValidationError) {
	if input.StartTime != "" && input.EndTime != "" && input.EndTime <= input.StartTime {
		vErr.add("end_time", "must be after start_time")
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && input.ValidUntil.Before(*input.ValidFrom) {
		vErr.add("valid_until", "must not be before valid_from")
	}
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "datetime":
		return "must use the " + fe.Param() + " layout"
	}
	return "failed " + fe.Tag() + " validation"
}

// GenerateOccurrences runs the generator for one template.
func (s *SessionService) GenerateOccurrences(ctx context.Context, templateID string) (GenerateResult, error) {
	return s.generator.Generate(ctx, templateID)
}

// generatableStatuses are the template statuses the periodic run considers.
var generatableStatuses = []string{
	string(scheduler.StatusDraft),
	string(scheduler.StatusActive),
	string(scheduler.StatusScheduled),
	string(scheduler.StatusCompleted),
}

// GenerateAll runs the generator for every template that is not cancelled or closed.
// A failing template is recorded and the batch moves on.
func (s *SessionService) GenerateAll(ctx context.Context) (result BatchResult, err error) {
	ctx, span := s.instruments.start(ctx, "SessionService.GenerateAll")
	defer func() { endSpan(span, err) }()

	logger := serviceLogger(ctx, s.logger, "SessionService", "GenerateAll")

	templates, err := s.sessions.ListSessions(ctx, persistence.SessionFilter{
		OnlyTemplates: true,
		Statuses:      generatableStatuses,
	})
	if err != nil {
		return BatchResult{}, storeError("list templates", err)
	}

	result.Templates = len(templates)
	for _, template := range templates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		run, genErr := s.generator.Generate(ctx, template.ID)
		if genErr != nil {
			logger.Warn("template generation failed", "template_id", template.ID, "error", genErr, "error_kind", ErrorKind(genErr))
			result.Errors = append(result.Errors, fmt.Sprintf("template %s: %v", template.ID, genErr))
			continue
		}
		result.Created += run.Created
		result.Seeded += run.Seeded
		result.Errors = append(result.Errors, run.Errors...)
		result.Results = append(result.Results, run)
	}

	span.SetAttributes(attribute.Int("templates", result.Templates), attribute.Int("created", result.Created))
	logger.Info("generation batch finished",
		"templates", result.Templates,
		"created", result.Created,
		"seeded", result.Seeded,
		"errors", len(result.Errors),
	)
	return result, nil
}

// SyncSiblingsForward pushes an occurrence's assignments onto its siblings.
func (s *SessionService) SyncSiblingsForward(ctx context.Context, sessionID string) (SyncResult, error) {
	return s.sync.SyncSiblingsForward(ctx, sessionID)
}

// SyncChildrenFromTemplate pushes a template's assignments onto its occurrences.
func (s *SessionService) SyncChildrenFromTemplate(ctx context.Context, templateID string) (SyncResult, error) {
	return s.sync.SyncChildrenFromTemplate(ctx, templateID)
}

// SetAssignments replaces a session's own item and user sets. With propagate, a template
// then pushes to its occurrences and an occurrence to its siblings.
func (s *SessionService) SetAssignments(ctx context.Context, sessionID string, itemIDs, userIDs []string, propagate bool) (SyncResult, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return SyncResult{}, err
	}
	if err := s.propagator.ReplaceAssignments(ctx, sessionID, itemIDs, userIDs); err != nil {
		return SyncResult{}, err
	}
	if !propagate {
		return SyncResult{SourceID: sessionID}, nil
	}
	switch {
	case session.IsTemplate():
		return s.sync.SyncChildrenFromTemplate(ctx, sessionID)
	case session.IsOccurrence():
		return s.sync.SyncSiblingsForward(ctx, sessionID)
	}
	return SyncResult{SourceID: sessionID}, nil
}

// TransitionStatus moves a session to target following the status transition table.
// Moving to scheduled needs a scheduled date, taken from scheduledDate or the session.
func (s *SessionService) TransitionStatus(ctx context.Context, sessionID, target string, scheduledDate *time.Time) (Session, error) {
	logger := serviceLogger(ctx, s.logger, "SessionService", "TransitionStatus", "session_id", sessionID, "target", target)

	next, err := scheduler.ParseStatus(target)
	if err != nil {
		return Session{}, fieldError("status", err.Error())
	}
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if !scheduler.CanTransition(session.Status, next) {
		logger.Info("transition rejected", "from", string(session.Status))
		return Session{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, session.Status, next)
	}

	if scheduledDate != nil {
		date := recurrence.DateOf(*scheduledDate)
		session.ScheduledDate = &date
	}
	if next == scheduler.StatusScheduled && session.ScheduledDate == nil {
		return Session{}, fieldError("scheduled_date", "is required when scheduling a session")
	}

	session.Status = next
	session.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, toPersistenceSession(session)); err != nil {
		return Session{}, storeError("update status", err)
	}
	logger.Info("status changed")
	return session, nil
}

// DeleteSession hard deletes a session and its assignments. Occurrences of a deleted
// template stay behind as standalone sessions.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return storeError("delete session", err)
	}
	serviceLogger(ctx, s.logger, "SessionService", "DeleteSession", "session_id", sessionID).Info("session deleted")
	return nil
}

// ClassifyWriteAccess classifies session against the service clock.
func (s *SessionService) ClassifyWriteAccess(session *Session) access.Result {
	if session == nil {
		return access.ClassifyWriteAccess(nil, s.now())
	}
	view := session.AccessView()
	return access.ClassifyWriteAccess(&view, s.now())
}

// IsVisibleForSelection reports whether session can be listed for selection now.
func (s *SessionService) IsVisibleForSelection(session Session) bool {
	now := s.now()
	return access.IsVisibleForSelection(session.AccessView(), now, s.engine.Today(now))
}

// CheckWriteAccess loads a session and classifies it. A missing session is reported as
// a blocked result, not an error.
func (s *SessionService) CheckWriteAccess(ctx context.Context, sessionID string) (access.Result, error) {
	session, err := s.GetSession(ctx, sessionID)
	var result access.Result
	switch {
	case errors.Is(err, ErrNotFound):
		result = s.ClassifyWriteAccess(nil)
	case err != nil:
		return access.Result{}, err
	default:
		result = s.ClassifyWriteAccess(&session)
	}
	s.instruments.recordAccess(ctx, string(result.Reason))
	return result, nil
}

// RequireWriteAccess returns an *AccessBlockedError when the session rejects writes.
func (s *SessionService) RequireWriteAccess(ctx context.Context, sessionID string) error {
	result, err := s.CheckWriteAccess(ctx, sessionID)
	if err != nil {
		return err
	}
	if !result.Allowed {
		return &AccessBlockedError{SessionID: sessionID, Result: result}
	}
	return nil
}

// ListSelectable returns the non-template sessions a counter may pick right now, each
// with its remaining-time bucket.
func (s *SessionService) ListSelectable(ctx context.Context) ([]SelectableSession, error) {
	rows, err := s.sessions.ListSessions(ctx, persistence.SessionFilter{})
	if err != nil {
		return nil, storeError("list sessions", err)
	}
	now := s.now()
	today := s.engine.Today(now)

	out := make([]SelectableSession, 0, len(rows))
	for _, row := range rows {
		session := fromPersistenceSession(row)
		if !access.IsVisibleForSelection(session.AccessView(), now, today) {
			continue
		}
		remaining, urgency := access.RemainingTime(session.ValidUntil, now)
		out = append(out, SelectableSession{Session: session, Remaining: remaining, Urgency: urgency})
	}
	return out, nil
}
