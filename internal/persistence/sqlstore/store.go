// Package sqlstore implements the persistence repositories on database/sql. The SQLite
// and Postgres backends share it and differ only in their Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/session-scheduler/internal/persistence"
)

// Dialect captures the differences between supported SQL engines.
type Dialect struct {
	Name string
	// NumberedPlaceholders rewrites ? placeholders to $1, $2, ...
	NumberedPlaceholders bool
	// IsUniqueViolation reports whether err is a unique or primary key violation.
	IsUniqueViolation func(error) bool
	// IsTransient reports whether err is worth retrying.
	IsTransient func(error) bool
}

// Store is a persistence.Store over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	retry   RetryConfig
}

// New wraps db. The caller keeps ownership of db until Close is called on the Store.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, retry: DefaultRetryConfig()}
}

// WithRetryConfig overrides the retry behaviour for transient errors.
func (s *Store) WithRetryConfig(cfg RetryConfig) *Store {
	s.retry = cfg
	return s
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the dialect the store was built with.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type txFunc func(tx *sql.Tx) error

// withTx runs fn in a transaction and retries the whole transaction on transient errors.
func (s *Store) withTx(ctx context.Context, fn txFunc) error {
	return s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
		}()

		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if !s.dialect.NumberedPlaceholders {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ persistence.Store = (*Store)(nil)
