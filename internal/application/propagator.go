package application

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/example/session-scheduler/internal/persistence"
)

// AssignmentPropagator overwrites the item and user sets of target sessions.
type AssignmentPropagator struct {
	assignments persistence.AssignmentRepository
	locks       *keyedMutex
	logger      *slog.Logger
}

// NewAssignmentPropagator wires the propagator to an assignment repository.
func NewAssignmentPropagator(assignments persistence.AssignmentRepository, logger *slog.Logger) *AssignmentPropagator {
	return &AssignmentPropagator{
		assignments: assignments,
		locks:       newKeyedMutex(),
		logger:      defaultLogger(logger),
	}
}

// ReplaceAssignments makes the target's item set exactly itemIDs and its user set
// exactly userIDs. The two sets are replaced independently: a failure on items does not
// stop the users from being replaced, and both failures are returned joined. Calls for
// the same target are serialized; calls for different targets run concurrently.
func (p *AssignmentPropagator) ReplaceAssignments(ctx context.Context, targetID string, itemIDs, userIDs []string) error {
	release := p.locks.Lock(targetID)
	defer release()

	logger := serviceLogger(ctx, p.logger, "AssignmentPropagator", "ReplaceAssignments", "session_id", targetID)

	var errs []error
	if err := p.assignments.ReplaceItems(ctx, targetID, normalizeIDs(itemIDs)); err != nil {
		logger.Warn("replace items failed", "error", err)
		errs = append(errs, storeError("replace items", err))
	}
	if err := p.assignments.ReplaceUsers(ctx, targetID, normalizeIDs(userIDs)); err != nil {
		logger.Warn("replace users failed", "error", err)
		errs = append(errs, storeError("replace users", err))
	}
	return errors.Join(errs...)
}

// snapshot reads the current item and user sets of a session.
func (p *AssignmentPropagator) snapshot(ctx context.Context, sessionID string) (items, users []string, err error) {
	items, err = p.assignments.ListItemIDs(ctx, sessionID)
	if err != nil {
		return nil, nil, storeError("list items", err)
	}
	users, err = p.assignments.ListUserIDs(ctx, sessionID)
	if err != nil {
		return nil, nil, storeError("list users", err)
	}
	return items, users, nil
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
