package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/recurrence"
)

// ServiceFactory assists tests with constructing session services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
	HorizonDays int
	Policy      application.SyncPolicy
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults: the reference clock, "occ"
// identifiers, UTC and a discarded log.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("occ"),
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("occ")
	}
	if factory.Logger == nil {
		factory.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation pins the recurrence engine to loc.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// WithHorizonDays sets the look-ahead used for open-ended rules.
func WithHorizonDays(days int) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.HorizonDays = days
	}
}

// WithSyncPolicy sets the default date scopes for sync fan-out.
func WithSyncPolicy(policy application.SyncPolicy) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Policy = policy
	}
}

// Engine returns the recurrence engine the factory's services use.
func (f *ServiceFactory) Engine() *recurrence.Engine {
	return recurrence.NewEngine(f.Location, f.HorizonDays, 0)
}

// NewSessionService wires a SessionService over store with the factory's clock and
// identifiers.
func (f *ServiceFactory) NewSessionService(store persistence.Store) *application.SessionService {
	return application.NewSessionService(store, store, application.SessionServiceConfig{
		Engine:      f.Engine(),
		SyncPolicy:  f.Policy,
		IDGenerator: f.IDGenerator.NextFunc(),
		Now:         f.Clock.NowFunc(),
		Logger:      f.Logger,
	})
}

// SeedTemplate writes fixture and its assignment sets directly into store, bypassing
// validation and generation.
func SeedTemplate(tb testing.TB, store persistence.Store, fixture TemplateFixture) persistence.Session {
	tb.Helper()
	ctx := context.Background()
	row := fixture.Persistence()
	if err := store.CreateSession(ctx, row); err != nil {
		tb.Fatalf("seed template %s: %v", row.ID, err)
	}
	if err := store.ReplaceItems(ctx, row.ID, fixture.ItemIDs); err != nil {
		tb.Fatalf("seed items for %s: %v", row.ID, err)
	}
	if err := store.ReplaceUsers(ctx, row.ID, fixture.UserIDs); err != nil {
		tb.Fatalf("seed users for %s: %v", row.ID, err)
	}
	return row
}

// SeedOccurrence writes a single occurrence row directly into store.
func SeedOccurrence(tb testing.TB, store persistence.Store, fixture OccurrenceFixture) persistence.Session {
	tb.Helper()
	row := fixture.Persistence()
	if err := store.CreateSession(context.Background(), row); err != nil {
		tb.Fatalf("seed occurrence %s: %v", row.ID, err)
	}
	return row
}
