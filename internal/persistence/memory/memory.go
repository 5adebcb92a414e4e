// Package memory implements the persistence repositories with in-process maps. It backs
// unit tests and the "memory" storage driver.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/session-scheduler/internal/persistence"
)

type occurrenceKey struct {
	parentID string
	date     string
}

// Storage is a map backed persistence.Store. It applies the same uniqueness and cascade
// rules as the SQL schema.
type Storage struct {
	mu       sync.RWMutex
	sessions map[string]persistence.Session
	items    map[string][]string
	users    map[string][]string
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		sessions: make(map[string]persistence.Session),
		items:    make(map[string][]string),
		users:    make(map[string][]string),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- SessionRepository implementation ---

// CreateSession stores a new session.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInsertLocked(session); err != nil {
		return err
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// InsertOccurrences stores rows that do not collide with an existing occurrence.
func (s *Storage) InsertOccurrences(ctx context.Context, sessions []persistence.Session) ([]persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := s.occurrenceKeysLocked()
	inserted := make([]persistence.Session, 0, len(sessions))
	for _, session := range sessions {
		if _, exists := s.sessions[session.ID]; exists {
			return nil, persistence.ErrDuplicate
		}
		if session.ParentSessionID != nil {
			key := keyOf(session)
			if _, dup := taken[key]; dup {
				continue
			}
			taken[key] = struct{}{}
		}
		inserted = append(inserted, cloneSession(session))
	}
	for _, session := range inserted {
		s.sessions[session.ID] = cloneSession(session)
	}
	return inserted, nil
}

// GetSession retrieves a session by ID.
func (s *Storage) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// ListSessions returns sessions matching filter ordered by session date then ID.
func (s *Storage) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]persistence.Session, 0)
	for _, session := range s.sessions {
		if matchesFilter(session, filter) {
			result = append(result, cloneSession(session))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SessionDate.Equal(result[j].SessionDate) {
			return result[i].ID < result[j].ID
		}
		return result[i].SessionDate.Before(result[j].SessionDate)
	})
	return result, nil
}

// UpdateSession replaces an existing session row.
func (s *Storage) UpdateSession(ctx context.Context, session persistence.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[session.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if session.ParentSessionID != nil && keyOf(existing) != keyOf(session) {
		if _, dup := s.occurrenceKeysLocked()[keyOf(session)]; dup {
			return persistence.ErrDuplicate
		}
	}
	session.CreatedAt = existing.CreatedAt
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// DeleteSession removes a session and its assignments and detaches its children.
func (s *Storage) DeleteSession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.items, id)
	delete(s.users, id)

	for childID, child := range s.sessions {
		if child.ParentSessionID != nil && *child.ParentSessionID == id {
			child.ParentSessionID = nil
			s.sessions[childID] = child
		}
	}
	return nil
}

// --- AssignmentRepository implementation ---

// ListItemIDs returns the sorted item IDs assigned to a session.
func (s *Storage) ListItemIDs(ctx context.Context, sessionID string) ([]string, error) {
	return s.list(ctx, s.items, sessionID)
}

// ListUserIDs returns the sorted user IDs assigned to a session.
func (s *Storage) ListUserIDs(ctx context.Context, sessionID string) ([]string, error) {
	return s.list(ctx, s.users, sessionID)
}

// ReplaceItems swaps the item set of a session.
func (s *Storage) ReplaceItems(ctx context.Context, sessionID string, ids []string) error {
	return s.replace(ctx, s.items, sessionID, ids)
}

// ReplaceUsers swaps the user set of a session.
func (s *Storage) ReplaceUsers(ctx context.Context, sessionID string, ids []string) error {
	return s.replace(ctx, s.users, sessionID, ids)
}

func (s *Storage) list(ctx context.Context, table map[string][]string, sessionID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, persistence.ErrNotFound
	}
	return slices.Clone(table[sessionID]), nil
}

func (s *Storage) replace(ctx context.Context, table map[string][]string, sessionID string, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return persistence.ErrNotFound
	}
	set := uniqueSorted(ids)
	if len(set) == 0 {
		delete(table, sessionID)
		return nil
	}
	table[sessionID] = set
	return nil
}

func (s *Storage) checkInsertLocked(session persistence.Session) error {
	if _, ok := s.sessions[session.ID]; ok {
		return persistence.ErrDuplicate
	}
	if session.ParentSessionID != nil {
		if _, dup := s.occurrenceKeysLocked()[keyOf(session)]; dup {
			return persistence.ErrDuplicate
		}
	}
	return nil
}

func (s *Storage) occurrenceKeysLocked() map[occurrenceKey]struct{} {
	keys := make(map[occurrenceKey]struct{}, len(s.sessions))
	for _, session := range s.sessions {
		if session.ParentSessionID != nil {
			keys[keyOf(session)] = struct{}{}
		}
	}
	return keys
}

func keyOf(session persistence.Session) occurrenceKey {
	parent := ""
	if session.ParentSessionID != nil {
		parent = *session.ParentSessionID
	}
	return occurrenceKey{parentID: parent, date: session.SessionDate.UTC().Format(time.DateOnly)}
}

func matchesFilter(session persistence.Session, filter persistence.SessionFilter) bool {
	if filter.ParentID != nil {
		if session.ParentSessionID == nil || *session.ParentSessionID != *filter.ParentID {
			return false
		}
	}
	if filter.OnlyTemplates {
		if session.ParentSessionID != nil || session.RepeatType == "" || session.RepeatType == "one_time" {
			return false
		}
	}
	if filter.DateAfter != nil && !session.SessionDate.After(*filter.DateAfter) {
		return false
	}
	if filter.DateFrom != nil && session.SessionDate.Before(*filter.DateFrom) {
		return false
	}
	if filter.DateTo != nil && session.SessionDate.After(*filter.DateTo) {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, session.Status) {
		return false
	}
	return true
}

func uniqueSorted(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func cloneSession(session persistence.Session) persistence.Session {
	clone := session
	clone.RepeatDays = slices.Clone(session.RepeatDays)
	clone.RepeatEndDate = cloneTime(session.RepeatEndDate)
	clone.ScheduledDate = cloneTime(session.ScheduledDate)
	clone.ValidFrom = cloneTime(session.ValidFrom)
	clone.ValidUntil = cloneTime(session.ValidUntil)
	if session.ParentSessionID != nil {
		parent := *session.ParentSessionID
		clone.ParentSessionID = &parent
	}
	return clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

var _ persistence.Store = (*Storage)(nil)
