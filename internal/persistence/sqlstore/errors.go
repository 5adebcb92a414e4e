package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/session-scheduler/internal/persistence"
)

// mapError translates driver errors into persistence sentinels.
func (s *Store) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	}
	return err
}

// RetryConfig configures retry behaviour for transient database errors.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the retry configuration used by New.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := s.retry.InitialDelay

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * s.retry.BackoffFactor)
				if delay > s.retry.MaxDelay {
					delay = s.retry.MaxDelay
				}
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = s.mapError(err)
		if s.dialect.IsTransient == nil || !s.dialect.IsTransient(err) {
			return lastErr
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", s.retry.MaxRetries, lastErr)
}
