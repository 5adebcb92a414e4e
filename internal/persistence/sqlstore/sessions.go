package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/session-scheduler/internal/persistence"
)

const sessionColumns = `id, name, type, status, repeat_type, repeat_days, repeat_end_date, session_date,
	scheduled_date, start_time, end_time, valid_from, valid_until, parent_session_id, created_by,
	created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateSession inserts a session row.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) error {
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}
	query := s.rebind(`INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// InsertOccurrences inserts rows in a single transaction and skips rows whose
// (parent_session_id, session_date) pair already exists.
func (s *Store) InsertOccurrences(ctx context.Context, sessions []persistence.Session) ([]persistence.Session, error) {
	if len(sessions) == 0 {
		return nil, nil
	}
	query := s.rebind(`INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (parent_session_id, session_date) DO NOTHING`)

	var inserted []persistence.Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		inserted = inserted[:0]
		for _, session := range sessions {
			ok, err := insertIgnoringConflict(ctx, tx, query, session)
			if err != nil {
				return err
			}
			if ok {
				inserted = append(inserted, session)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func insertIgnoringConflict(ctx context.Context, tx execer, query string, session persistence.Session) (bool, error) {
	args, err := sessionArgs(session)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert occurrence %s: %w", session.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert occurrence %s: rows affected: %w", session.ID, err)
	}
	return affected > 0, nil
}

// GetSession loads a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	query := s.rebind(`SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`)
	var session persistence.Session
	err := s.withRetry(ctx, func() error {
		var err error
		session, err = scanSession(s.db.QueryRowContext(ctx, query, id))
		return err
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

// ListSessions returns rows matching filter ordered by session_date then id.
func (s *Store) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ParentID != nil {
		clauses = append(clauses, "parent_session_id = ?")
		args = append(args, *filter.ParentID)
	}
	if filter.OnlyTemplates {
		clauses = append(clauses, "parent_session_id IS NULL", "repeat_type <> 'one_time'", "repeat_type <> ''")
	}
	if filter.DateAfter != nil {
		clauses = append(clauses, "session_date > ?")
		args = append(args, toDate(*filter.DateAfter))
	}
	if filter.DateFrom != nil {
		clauses = append(clauses, "session_date >= ?")
		args = append(args, toDate(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		clauses = append(clauses, "session_date <= ?")
		args = append(args, toDate(*filter.DateTo))
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
		clauses = append(clauses, "status IN ("+placeholders+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query = s.rebind(query + " ORDER BY session_date, id")

	var result []persistence.Session
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		defer rows.Close()

		result = make([]persistence.Session, 0)
		for rows.Next() {
			session, err := scanSession(rows)
			if err != nil {
				return err
			}
			result = append(result, session)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateSession rewrites every mutable column of an existing row.
func (s *Store) UpdateSession(ctx context.Context, session persistence.Session) error {
	days, err := encodeDays(session.RepeatDays)
	if err != nil {
		return err
	}
	query := s.rebind(`UPDATE sessions SET
		name = ?, type = ?, status = ?, repeat_type = ?, repeat_days = ?, repeat_end_date = ?,
		session_date = ?, scheduled_date = ?, start_time = ?, end_time = ?, valid_from = ?,
		valid_until = ?, parent_session_id = ?, created_by = ?, updated_at = ?
		WHERE id = ?`)
	return s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query,
			session.Name,
			session.Type,
			session.Status,
			session.RepeatType,
			days,
			nullDate(session.RepeatEndDate),
			toDate(session.SessionDate),
			nullDate(session.ScheduledDate),
			session.StartTime,
			session.EndTime,
			nullMillis(session.ValidFrom),
			nullMillis(session.ValidUntil),
			nullString(session.ParentSessionID),
			session.CreatedBy,
			toMillis(session.UpdatedAt),
			session.ID,
		)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update session: rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// DeleteSession removes a session with its assignment rows and detaches its children.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		statements := []string{
			`DELETE FROM session_items WHERE session_id = ?`,
			`DELETE FROM session_users WHERE session_id = ?`,
			`UPDATE sessions SET parent_session_id = NULL WHERE parent_session_id = ?`,
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, s.rebind(stmt), id); err != nil {
				return fmt.Errorf("delete session %s: %w", id, err)
			}
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete session %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete session %s: rows affected: %w", id, err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

func sessionArgs(session persistence.Session) ([]any, error) {
	days, err := encodeDays(session.RepeatDays)
	if err != nil {
		return nil, err
	}
	return []any{
		session.ID,
		session.Name,
		session.Type,
		session.Status,
		session.RepeatType,
		days,
		nullDate(session.RepeatEndDate),
		toDate(session.SessionDate),
		nullDate(session.ScheduledDate),
		session.StartTime,
		session.EndTime,
		nullMillis(session.ValidFrom),
		nullMillis(session.ValidUntil),
		nullString(session.ParentSessionID),
		session.CreatedBy,
		toMillis(session.CreatedAt),
		toMillis(session.UpdatedAt),
	}, nil
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session       persistence.Session
		days          string
		repeatEnd     sql.NullString
		sessionDate   string
		scheduledDate sql.NullString
		validFrom     sql.NullInt64
		validUntil    sql.NullInt64
		parentID      sql.NullString
		createdAt     int64
		updatedAt     int64
	)
	if err := row.Scan(
		&session.ID,
		&session.Name,
		&session.Type,
		&session.Status,
		&session.RepeatType,
		&days,
		&repeatEnd,
		&sessionDate,
		&scheduledDate,
		&session.StartTime,
		&session.EndTime,
		&validFrom,
		&validUntil,
		&parentID,
		&session.CreatedBy,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Session{}, fmt.Errorf("scan session: %w", err)
	}

	var err error
	if session.RepeatDays, err = decodeDays(days); err != nil {
		return persistence.Session{}, err
	}
	if session.RepeatEndDate, err = fromNullDate(repeatEnd); err != nil {
		return persistence.Session{}, err
	}
	if session.SessionDate, err = fromDate(sessionDate); err != nil {
		return persistence.Session{}, err
	}
	if session.ScheduledDate, err = fromNullDate(scheduledDate); err != nil {
		return persistence.Session{}, err
	}
	session.ValidFrom = fromNullMillis(validFrom)
	session.ValidUntil = fromNullMillis(validUntil)
	session.ParentSessionID = fromNullString(parentID)
	session.CreatedAt = fromMillis(createdAt)
	session.UpdatedAt = fromMillis(updatedAt)
	return session, nil
}
