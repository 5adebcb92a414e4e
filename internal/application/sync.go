package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/recurrence"
)

// DateScope selects which dated targets a sync workflow touches.
type DateScope string

const (
	// ScopeAll touches every target regardless of date.
	ScopeAll DateScope = "all"
	// ScopeAfterSource touches targets dated strictly after the source session.
	ScopeAfterSource DateScope = "after_source"
	// ScopeFromToday touches targets dated today or later.
	ScopeFromToday DateScope = "from_today"
)

// ParseDateScope converts a configuration value into a DateScope.
func ParseDateScope(value string) (DateScope, error) {
	switch scope := DateScope(strings.ToLower(strings.TrimSpace(value))); scope {
	case ScopeAll, ScopeAfterSource, ScopeFromToday:
		return scope, nil
	}
	return "", fmt.Errorf("unknown sync scope %q", value)
}

// SyncPolicy names the date filter of each propagation workflow.
type SyncPolicy struct {
	// Siblings applies when an occurrence pushes its assignments to its siblings.
	Siblings DateScope
	// Children applies when a template pushes its assignments to its occurrences.
	Children DateScope
}

// DefaultSyncPolicy edits forward from an occurrence and lets templates overwrite
// every occurrence, past ones included.
func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{Siblings: ScopeAfterSource, Children: ScopeAll}
}

// DefaultSyncConcurrency bounds parallel target updates.
const DefaultSyncConcurrency = 4

// SyncOrchestrator runs the sibling and template propagation workflows.
type SyncOrchestrator struct {
	sessions    persistence.SessionRepository
	propagator  *AssignmentPropagator
	engine      *recurrence.Engine
	policy      SyncPolicy
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
	instruments *Instruments
}

// NewSyncOrchestrator wires the orchestrator. Empty policy fields fall back to
// DefaultSyncPolicy and a non-positive concurrency to DefaultSyncConcurrency.
func NewSyncOrchestrator(sessions persistence.SessionRepository, propagator *AssignmentPropagator, engine *recurrence.Engine, policy SyncPolicy, concurrency int, now func() time.Time, logger *slog.Logger, instruments *Instruments) *SyncOrchestrator {
	defaults := DefaultSyncPolicy()
	if policy.Siblings == "" {
		policy.Siblings = defaults.Siblings
	}
	if policy.Children == "" {
		policy.Children = defaults.Children
	}
	if concurrency <= 0 {
		concurrency = DefaultSyncConcurrency
	}
	if engine == nil {
		engine = recurrence.NewEngine(time.UTC, 0, 0)
	}
	if now == nil {
		now = time.Now
	}
	return &SyncOrchestrator{
		sessions:    sessions,
		propagator:  propagator,
		engine:      engine,
		policy:      policy,
		concurrency: concurrency,
		now:         now,
		logger:      defaultLogger(logger),
		instruments: instruments,
	}
}

// Policy returns the effective policy.
func (o *SyncOrchestrator) Policy() SyncPolicy {
	return o.policy
}

// SyncSiblingsForward copies the edited occurrence's assignments onto its siblings
// selected by the sibling scope. Sessions without a parent are a no-op.
func (o *SyncOrchestrator) SyncSiblingsForward(ctx context.Context, sessionID string) (result SyncResult, err error) {
	ctx, span := o.instruments.start(ctx, "SyncOrchestrator.SyncSiblingsForward", attribute.String("session_id", sessionID))
	defer func() { endSpan(span, err) }()

	logger := serviceLogger(ctx, o.logger, "SyncOrchestrator", "SyncSiblingsForward",
		"session_id", sessionID, "scope", string(o.policy.Siblings))
	result = SyncResult{SourceID: sessionID}

	row, err := o.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return result, storeError("get session", err)
	}
	if row.ParentSessionID == nil {
		logger.Debug("session has no template; nothing to sync")
		return result, nil
	}

	filter := persistence.SessionFilter{ParentID: row.ParentSessionID}
	o.applyScope(&filter, o.policy.Siblings, row.SessionDate)
	targets, err := o.sessions.ListSessions(ctx, filter)
	if err != nil {
		return result, storeError("list siblings", err)
	}
	targets = excludeID(targets, sessionID)

	result, err = o.propagate(ctx, logger, sessionID, targets)
	o.instruments.recordSync(ctx, "siblings", result)
	return result, err
}

// SyncChildrenFromTemplate copies the template's assignments onto its occurrences
// selected by the children scope.
func (o *SyncOrchestrator) SyncChildrenFromTemplate(ctx context.Context, templateID string) (result SyncResult, err error) {
	ctx, span := o.instruments.start(ctx, "SyncOrchestrator.SyncChildrenFromTemplate", attribute.String("template_id", templateID))
	defer func() { endSpan(span, err) }()

	logger := serviceLogger(ctx, o.logger, "SyncOrchestrator", "SyncChildrenFromTemplate",
		"template_id", templateID, "scope", string(o.policy.Children))
	result = SyncResult{SourceID: templateID}

	row, err := o.sessions.GetSession(ctx, templateID)
	if err != nil {
		return result, storeError("get template", err)
	}

	filter := persistence.SessionFilter{ParentID: &templateID}
	o.applyScope(&filter, o.policy.Children, row.SessionDate)
	targets, err := o.sessions.ListSessions(ctx, filter)
	if err != nil {
		return result, storeError("list children", err)
	}

	result, err = o.propagate(ctx, logger, templateID, targets)
	o.instruments.recordSync(ctx, "children", result)
	return result, err
}

func (o *SyncOrchestrator) applyScope(filter *persistence.SessionFilter, scope DateScope, sourceDate time.Time) {
	switch scope {
	case ScopeAfterSource:
		after := recurrence.DateOf(sourceDate)
		filter.DateAfter = &after
	case ScopeFromToday:
		today := o.engine.Today(o.now())
		filter.DateFrom = &today
	}
}

// propagate replaces the assignments of every target with the source's sets. Targets
// run in parallel up to the concurrency limit; a failing target never cancels the rest.
func (o *SyncOrchestrator) propagate(ctx context.Context, logger *slog.Logger, sourceID string, targets []persistence.Session) (SyncResult, error) {
	result := SyncResult{SourceID: sourceID, Targets: len(targets)}
	if len(targets) == 0 {
		logger.Debug("no sync targets")
		return result, nil
	}

	items, users, err := o.propagator.snapshot(ctx, sourceID)
	if err != nil {
		return result, err
	}

	failures := make([]error, len(targets))
	var (
		mu      sync.Mutex
		updated int
	)

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failures[i] = err
				return nil
			}
			if err := o.propagator.ReplaceAssignments(ctx, target.ID, items, users); err != nil {
				failures[i] = err
				return nil
			}
			mu.Lock()
			updated++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result.Updated = updated
	for i, failure := range failures {
		if failure != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("session %s: %v", targets[i].ID, failure))
		}
	}

	level := slog.LevelInfo
	if len(result.Errors) > 0 {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "sync finished", "targets", result.Targets, "updated", result.Updated, "errors", len(result.Errors))
	return result, nil
}

func excludeID(rows []persistence.Session, id string) []persistence.Session {
	out := rows[:0]
	for _, row := range rows {
		if row.ID != id {
			out = append(out, row)
		}
	}
	return out
}
