package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/persistence/memory"
	"github.com/example/session-scheduler/internal/recurrence"
	"github.com/example/session-scheduler/internal/scheduler"
)

var errInjected = errors.New("injected failure")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) AdvanceDays(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, days)
}

func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := recurrence.ParseDate(value)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

func datePtr(t *testing.T, value string) *time.Time {
	t.Helper()
	d := mustDate(t, value)
	return &d
}

// storeTemplate writes a template row and its assignment sets straight into the store.
func storeTemplate(t *testing.T, store *memory.Storage, template persistence.Session, items, users []string) {
	t.Helper()
	ctx := context.Background()
	if template.Status == "" {
		template.Status = string(scheduler.StatusActive)
	}
	if err := store.CreateSession(ctx, template); err != nil {
		t.Fatalf("create template: %v", err)
	}
	if err := store.ReplaceItems(ctx, template.ID, items); err != nil {
		t.Fatalf("replace items: %v", err)
	}
	if err := store.ReplaceUsers(ctx, template.ID, users); err != nil {
		t.Fatalf("replace users: %v", err)
	}
}

func storeOccurrence(t *testing.T, store *memory.Storage, id, parentID, date string) {
	t.Helper()
	parent := parentID
	row := persistence.Session{
		ID:              id,
		Name:            id,
		Status:          string(scheduler.StatusActive),
		RepeatType:      string(recurrence.OneTime),
		SessionDate:     mustDate(t, date),
		ParentSessionID: &parent,
	}
	if err := store.CreateSession(context.Background(), row); err != nil {
		t.Fatalf("create occurrence %s: %v", id, err)
	}
}

func assignmentsOf(t *testing.T, store *memory.Storage, id string) (items, users []string) {
	t.Helper()
	ctx := context.Background()
	items, err := store.ListItemIDs(ctx, id)
	if err != nil {
		t.Fatalf("list items of %s: %v", id, err)
	}
	users, err = store.ListUserIDs(ctx, id)
	if err != nil {
		t.Fatalf("list users of %s: %v", id, err)
	}
	return items, users
}

// failingAssignments wraps a store and fails replaces for selected sessions.
type failingAssignments struct {
	*memory.Storage
	failItems map[string]bool
	failUsers map[string]bool
}

func (f *failingAssignments) ReplaceItems(ctx context.Context, sessionID string, ids []string) error {
	if f.failItems[sessionID] {
		return errInjected
	}
	return f.Storage.ReplaceItems(ctx, sessionID, ids)
}

func (f *failingAssignments) ReplaceUsers(ctx context.Context, sessionID string, ids []string) error {
	if f.failUsers[sessionID] {
		return errInjected
	}
	return f.Storage.ReplaceUsers(ctx, sessionID, ids)
}

// failingSessions wraps a store and fails the selected repository calls.
type failingSessions struct {
	*memory.Storage
	listErr   error
	insertErr error
}

func (f *failingSessions) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Storage.ListSessions(ctx, filter)
}

func (f *failingSessions) InsertOccurrences(ctx context.Context, rows []persistence.Session) ([]persistence.Session, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	return f.Storage.InsertOccurrences(ctx, rows)
}
