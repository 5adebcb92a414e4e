// Package jobs runs the periodic occurrence generation trigger on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/session-scheduler/internal/application"
)

// BatchGenerator is the part of SessionService the job drives.
type BatchGenerator interface {
	GenerateAll(ctx context.Context) (application.BatchResult, error)
}

// Generation generates occurrences for every eligible template, one bounded run at a time.
type Generation struct {
	generator BatchGenerator
	timeout   time.Duration
	logger    *slog.Logger
}

// NewGeneration builds the job. A non-positive timeout defaults to five minutes.
func NewGeneration(generator BatchGenerator, timeout time.Duration, logger *slog.Logger) *Generation {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generation{generator: generator, timeout: timeout, logger: logger.With("job", "generate_all")}
}

// Run performs one batch. Errors are logged, never returned: the next tick retries.
func (g *Generation) Run(ctx context.Context) application.BatchResult {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	result, err := g.generator.GenerateAll(ctx)
	attrs := []any{
		"templates", result.Templates,
		"created", result.Created,
		"seeded", result.Seeded,
		"errors", len(result.Errors),
		"duration", time.Since(started),
	}
	switch {
	case err != nil:
		g.logger.Error("generation run failed", append(attrs, "error", err, "error_kind", application.ErrorKind(err))...)
	case len(result.Errors) > 0:
		g.logger.Warn("generation run finished with errors", append(attrs, "first_error", result.Errors[0])...)
	default:
		g.logger.Info("generation run finished", attrs...)
	}
	return result
}

// Schedule registers the job on a new cron scheduler evaluating spec in loc. Overlapping
// ticks are skipped and panics are recovered. The caller starts and stops the returned
// scheduler.
func Schedule(ctx context.Context, job *Generation, spec string, loc *time.Location) (*cron.Cron, error) {
	if loc == nil {
		loc = time.UTC
	}
	logger := cronLogger{logger: job.logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() { job.Run(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule generation %q: %w", spec, err)
	}
	return c, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
