package persistence_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/persistence/memory"
	"github.com/example/session-scheduler/internal/scheduler"
	"github.com/example/session-scheduler/internal/testfixtures"
)

type backend struct {
	name string
	open func(t *testing.T) persistence.Store
}

var backends = []backend{
	{name: "memory", open: func(t *testing.T) persistence.Store { return memory.New() }},
	{name: "sqlite", open: func(t *testing.T) persistence.Store { return testfixtures.NewSQLiteHarness(t).Store }},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, store persistence.Store)) {
	t.Helper()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()
			fn(t, b.open(t))
		})
	}
}

func ids(rows []persistence.Session) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.ID
	}
	return out
}

func TestSessionRepository_CRUD(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		from := testfixtures.ReferenceTime()
		until := from.Add(8 * time.Hour)
		fixture := testfixtures.NewTemplateFixture(
			testfixtures.WithTemplateID("tpl-crud"),
			testfixtures.WithRepeat("weekly", "monday", "thursday"),
			testfixtures.WithTimes("09:00", "17:30"),
			testfixtures.WithValidity(&from, &until),
		)
		row := fixture.Persistence()

		if err := store.CreateSession(ctx, row); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if err := store.CreateSession(ctx, row); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate on second insert, got %v", err)
		}

		fetched, err := store.GetSession(ctx, row.ID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if fetched.Name != row.Name || fetched.RepeatType != "weekly" || fetched.StartTime != "09:00" {
			t.Fatalf("unexpected session: %#v", fetched)
		}
		if !slices.Equal(fetched.RepeatDays, []string{"monday", "thursday"}) {
			t.Fatalf("repeat days did not round trip: %v", fetched.RepeatDays)
		}
		if fetched.ValidUntil == nil || !fetched.ValidUntil.Equal(until) {
			t.Fatalf("valid_until did not round trip: %v", fetched.ValidUntil)
		}
		if fetched.RepeatEndDate == nil || !fetched.RepeatEndDate.Equal(*row.RepeatEndDate) {
			t.Fatalf("repeat_end_date did not round trip: %v", fetched.RepeatEndDate)
		}
		if !fetched.SessionDate.Equal(row.SessionDate) {
			t.Fatalf("session_date = %v, want %v", fetched.SessionDate, row.SessionDate)
		}

		row.Status = string(scheduler.StatusClosed)
		row.ValidUntil = nil
		row.UpdatedAt = row.UpdatedAt.Add(time.Hour)
		if err := store.UpdateSession(ctx, row); err != nil {
			t.Fatalf("UpdateSession failed: %v", err)
		}
		fetched, err = store.GetSession(ctx, row.ID)
		if err != nil {
			t.Fatalf("GetSession after update failed: %v", err)
		}
		if fetched.Status != "closed" || fetched.ValidUntil != nil {
			t.Fatalf("update not applied: %#v", fetched)
		}
		if !fetched.CreatedAt.Equal(row.CreatedAt) {
			t.Fatalf("created_at changed on update: %v", fetched.CreatedAt)
		}

		missing := row
		missing.ID = "nope"
		if err := store.UpdateSession(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound updating missing row, got %v", err)
		}
		if _, err := store.GetSession(ctx, "nope"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSessionRepository_InsertOccurrencesSkipsExistingDates(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		template := testfixtures.SeedTemplate(t, store, testfixtures.NewTemplateFixture(testfixtures.WithTemplateID("tpl-ins")))

		first := []persistence.Session{
			testfixtures.NewOccurrenceFixture(template.ID, testfixtures.Date("2024-01-03"), testfixtures.WithOccurrenceID("a-1")).Persistence(),
			testfixtures.NewOccurrenceFixture(template.ID, testfixtures.Date("2024-01-04"), testfixtures.WithOccurrenceID("a-2")).Persistence(),
		}
		inserted, err := store.InsertOccurrences(ctx, first)
		if err != nil {
			t.Fatalf("InsertOccurrences failed: %v", err)
		}
		if len(inserted) != 2 {
			t.Fatalf("expected 2 inserted, got %d", len(inserted))
		}

		second := []persistence.Session{
			testfixtures.NewOccurrenceFixture(template.ID, testfixtures.Date("2024-01-04"), testfixtures.WithOccurrenceID("b-1")).Persistence(),
			testfixtures.NewOccurrenceFixture(template.ID, testfixtures.Date("2024-01-05"), testfixtures.WithOccurrenceID("b-2")).Persistence(),
		}
		inserted, err = store.InsertOccurrences(ctx, second)
		if err != nil {
			t.Fatalf("second InsertOccurrences failed: %v", err)
		}
		if got := ids(inserted); !slices.Equal(got, []string{"b-2"}) {
			t.Fatalf("expected only b-2 inserted, got %v", got)
		}

		parent := template.ID
		children, err := store.ListSessions(ctx, persistence.SessionFilter{ParentID: &parent})
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if got := ids(children); !slices.Equal(got, []string{"a-1", "a-2", "b-2"}) {
			t.Fatalf("unexpected children %v", got)
		}

		if inserted, err := store.InsertOccurrences(ctx, nil); err != nil || len(inserted) != 0 {
			t.Fatalf("empty batch returned %v, %v", inserted, err)
		}
	})
}

func TestSessionRepository_ListFilters(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		template := testfixtures.SeedTemplate(t, store, testfixtures.NewTemplateFixture(testfixtures.WithTemplateID("tpl-list")))
		testfixtures.SeedTemplate(t, store, testfixtures.NewTemplateFixture(
			testfixtures.WithTemplateID("one-off"),
			testfixtures.WithRepeat("one_time"),
		))
		for i, day := range []string{"2024-01-03", "2024-01-04", "2024-01-05"} {
			status := scheduler.StatusDraft
			if i == 2 {
				status = scheduler.StatusCompleted
			}
			testfixtures.SeedOccurrence(t, store, testfixtures.NewOccurrenceFixture(template.ID, testfixtures.Date(day),
				testfixtures.WithOccurrenceID("c-"+day), testfixtures.WithOccurrenceStatus(status)))
		}
		parent := template.ID

		cases := []struct {
			name   string
			filter persistence.SessionFilter
			want   []string
		}{
			{"templates only", persistence.SessionFilter{OnlyTemplates: true}, []string{"tpl-list"}},
			{"strictly after", persistence.SessionFilter{ParentID: &parent, DateAfter: testfixtures.DatePtr("2024-01-03")}, []string{"c-2024-01-04", "c-2024-01-05"}},
			{"inclusive range", persistence.SessionFilter{ParentID: &parent, DateFrom: testfixtures.DatePtr("2024-01-04"), DateTo: testfixtures.DatePtr("2024-01-04")}, []string{"c-2024-01-04"}},
			{"status", persistence.SessionFilter{ParentID: &parent, Statuses: []string{"completed"}}, []string{"c-2024-01-05"}},
		}
		for _, tc := range cases {
			got, err := store.ListSessions(ctx, tc.filter)
			if err != nil {
				t.Fatalf("%s: ListSessions failed: %v", tc.name, err)
			}
			if !slices.Equal(ids(got), tc.want) {
				t.Fatalf("%s: got %v, want %v", tc.name, ids(got), tc.want)
			}
		}
	})
}

func TestAssignmentRepository(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		template := testfixtures.SeedTemplate(t, store, testfixtures.NewTemplateFixture(
			testfixtures.WithTemplateID("tpl-asg"),
			testfixtures.WithAssignments([]string{"sku-2", "sku-1", "sku-2", ""}, []string{"u-1"}),
		))

		items, err := store.ListItemIDs(ctx, template.ID)
		if err != nil {
			t.Fatalf("ListItemIDs failed: %v", err)
		}
		if !slices.Equal(items, []string{"sku-1", "sku-2"}) {
			t.Fatalf("expected deduplicated sorted items, got %v", items)
		}

		if err := store.ReplaceUsers(ctx, template.ID, nil); err != nil {
			t.Fatalf("ReplaceUsers failed: %v", err)
		}
		users, err := store.ListUserIDs(ctx, template.ID)
		if err != nil {
			t.Fatalf("ListUserIDs failed: %v", err)
		}
		if len(users) != 0 {
			t.Fatalf("expected empty user set, got %v", users)
		}

		if err := store.ReplaceItems(ctx, "missing", []string{"x"}); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
		}
		if _, err := store.ListItemIDs(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound listing unknown session, got %v", err)
		}
	})
}

func TestSessionRepository_DeleteDetachesChildren(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		template := testfixtures.SeedTemplate(t, store, testfixtures.NewTemplateFixture(testfixtures.WithTemplateID("tpl-del")))
		child := testfixtures.SeedOccurrence(t, store, testfixtures.NewOccurrenceFixture(template.ID, testfixtures.Date("2024-01-03"),
			testfixtures.WithOccurrenceID("child-del")))

		if err := store.DeleteSession(ctx, template.ID); err != nil {
			t.Fatalf("DeleteSession failed: %v", err)
		}
		if _, err := store.GetSession(ctx, template.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected template gone, got %v", err)
		}
		orphan, err := store.GetSession(ctx, child.ID)
		if err != nil {
			t.Fatalf("child should survive: %v", err)
		}
		if orphan.ParentSessionID != nil {
			t.Fatalf("expected child detached, parent=%v", *orphan.ParentSessionID)
		}
		if err := store.DeleteSession(ctx, template.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestSessionRepository_ContextCancelled(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, store persistence.Store) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := store.GetSession(ctx, "anything"); err == nil {
			t.Fatal("expected an error from a cancelled context")
		}
	})
}
