package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/example/session-scheduler/internal/persistence"
)

var errUnique = errors.New("unique constraint")

func TestRebind(t *testing.T) {
	t.Parallel()

	query := "UPDATE sessions SET name = ? WHERE id = ? AND status IN (?, ?)"
	numbered := New(nil, Dialect{Name: "postgres", NumberedPlaceholders: true})
	if got, want := numbered.rebind(query), "UPDATE sessions SET name = $1 WHERE id = $2 AND status IN ($3, $4)"; got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}
	plain := New(nil, Dialect{Name: "sqlite"})
	if got := plain.rebind(query); got != query {
		t.Fatalf("sqlite queries must be left alone, got %q", got)
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	store := New(nil, Dialect{IsUniqueViolation: func(err error) bool { return errors.Is(err, errUnique) }})

	if err := store.mapError(fmt.Errorf("scan: %w", sql.ErrNoRows)); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.mapError(fmt.Errorf("insert: %w", errUnique)); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	other := errors.New("boom")
	if err := store.mapError(other); err != other {
		t.Fatalf("unrelated errors must pass through, got %v", err)
	}
	if store.mapError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}
