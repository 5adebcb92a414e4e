package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/example/session-scheduler/internal/persistence"
)

type assignmentTable struct {
	name   string
	column string
}

var (
	itemsTable = assignmentTable{name: "session_items", column: "item_id"}
	usersTable = assignmentTable{name: "session_users", column: "user_id"}
)

// ListItemIDs returns the item IDs assigned to a session in ascending order.
func (s *Store) ListItemIDs(ctx context.Context, sessionID string) ([]string, error) {
	return s.listAssignments(ctx, itemsTable, sessionID)
}

// ListUserIDs returns the user IDs assigned to a session in ascending order.
func (s *Store) ListUserIDs(ctx context.Context, sessionID string) ([]string, error) {
	return s.listAssignments(ctx, usersTable, sessionID)
}

// ReplaceItems deletes and re-inserts the item set of a session in one transaction.
func (s *Store) ReplaceItems(ctx context.Context, sessionID string, ids []string) error {
	return s.replaceAssignments(ctx, itemsTable, sessionID, ids)
}

// ReplaceUsers deletes and re-inserts the user set of a session in one transaction.
func (s *Store) ReplaceUsers(ctx context.Context, sessionID string, ids []string) error {
	return s.replaceAssignments(ctx, usersTable, sessionID, ids)
}

func (s *Store) listAssignments(ctx context.Context, table assignmentTable, sessionID string) ([]string, error) {
	query := s.rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE session_id = ? ORDER BY %s`, table.column, table.name, table.column))

	var ids []string
	err := s.withRetry(ctx, func() error {
		if err := s.ensureSession(ctx, s.db, sessionID); err != nil {
			return err
		}
		rows, err := s.db.QueryContext(ctx, query, sessionID)
		if err != nil {
			return fmt.Errorf("list %s: %w", table.name, err)
		}
		defer rows.Close()

		ids = ids[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan %s: %w", table.column, err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) replaceAssignments(ctx context.Context, table assignmentTable, sessionID string, ids []string) error {
	set := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			set = append(set, id)
		}
	}
	slices.Sort(set)
	set = slices.Compact(set)

	deleteQuery := s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE session_id = ?`, table.name))
	insertQuery := s.rebind(fmt.Sprintf(`INSERT INTO %s (session_id, %s) VALUES (?, ?)`, table.name, table.column))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureSession(ctx, tx, sessionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteQuery, sessionID); err != nil {
			return fmt.Errorf("clear %s: %w", table.name, err)
		}
		for _, id := range set {
			if _, err := tx.ExecContext(ctx, insertQuery, sessionID, id); err != nil {
				return fmt.Errorf("insert %s: %w", table.name, err)
			}
		}
		return nil
	})
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) ensureSession(ctx context.Context, q queryRower, sessionID string) error {
	var one int
	err := q.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM sessions WHERE id = ?`), sessionID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.ErrNotFound
		}
		return fmt.Errorf("lookup session %s: %w", sessionID, err)
	}
	return nil
}
