package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/session-scheduler/internal/persistence"
)

func TestOpenMigratesAndEnforcesUniqueOccurrences(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scheduler.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	day := time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)
	template := persistence.Session{ID: "tpl", Name: "Count", Status: "active", RepeatType: "daily", SessionDate: day}
	if err := store.CreateSession(ctx, template); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	parent := "tpl"
	child := persistence.Session{ID: "c1", Name: "Count", Status: "draft", RepeatType: "one_time", SessionDate: day.AddDate(0, 0, 1), ParentSessionID: &parent}
	if err := store.CreateSession(ctx, child); err != nil {
		t.Fatalf("CreateSession child failed: %v", err)
	}
	clash := child
	clash.ID = "c2"
	if err := store.CreateSession(ctx, clash); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for repeated occurrence date, got %v", err)
	}

	orphan := child
	orphan.ID = "c3"
	missing := "ghost"
	orphan.ParentSessionID = &missing
	orphan.SessionDate = day.AddDate(0, 0, 2)
	if err := store.CreateSession(ctx, orphan); err == nil {
		t.Fatal("expected a foreign key failure for an unknown parent")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scheduler.db")
	if err := Run(path, "up"); err != nil {
		t.Fatalf("first up failed: %v", err)
	}
	if err := Run(path, "up"); err != nil {
		t.Fatalf("second up should be a no-op, got %v", err)
	}
	if err := Run(path, "down"); err != nil {
		t.Fatalf("down failed: %v", err)
	}
	if err := Run(path, "sideways"); err == nil {
		t.Fatal("expected an error for an unknown direction")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open("  "); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}
