package persistence

import "context"

// SessionRepository stores session rows.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	// InsertOccurrences stores the given rows in one batch. Rows colliding with an existing
	// (parent_session_id, session_date) pair are skipped; only the inserted rows are returned.
	InsertOccurrences(ctx context.Context, sessions []Session) ([]Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	// ListSessions returns matching rows ordered by session_date then id.
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	UpdateSession(ctx context.Context, session Session) error
	// DeleteSession removes the row and its assignments. Children are detached, not removed.
	DeleteSession(ctx context.Context, id string) error
}

// AssignmentRepository stores the item and user sets attached to sessions.
type AssignmentRepository interface {
	ListItemIDs(ctx context.Context, sessionID string) ([]string, error)
	ListUserIDs(ctx context.Context, sessionID string) ([]string, error)
	// ReplaceItems atomically swaps the item set of a session for ids.
	ReplaceItems(ctx context.Context, sessionID string, ids []string) error
	// ReplaceUsers atomically swaps the user set of a session for ids.
	ReplaceUsers(ctx context.Context, sessionID string, ids []string) error
}

// Store bundles the repositories a backend provides.
type Store interface {
	SessionRepository
	AssignmentRepository
	Close() error
}
