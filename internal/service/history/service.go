// Package history owns the session registry and the per-session message log.
// The two are maintained independently: appending to a session that was never
// registered succeeds, and deleting a session clears both inside one
// transaction.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatrelay/internal/models"
	"chatrelay/internal/redis"

	"github.com/google/uuid"
)

// Service provides access to sessions and their histories. The redis cache is
// optional; a nil cache means every read goes to the database.
type Service struct {
	db    *sql.DB
	cache *redis.Client
}

func NewService(db *sql.DB, cache *redis.Client) (*Service, error) {
	if db == nil {
		return nil, errors.New("database handle required")
	}
	return &Service{db: db, cache: cache}, nil
}

// CreateSession registers a fresh session under a random 128-bit identifier
// and returns the record. Identifiers are never reused.
func (s *Service) CreateSession(ctx context.Context) (*models.Session, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (session_id, created_at) VALUES (?, ?)`,
		id, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &models.Session{ID: id, CreatedAt: now}, nil
}

// ListSessions returns all known session identifiers. No sessions is an
// empty slice, not an error.
func (s *Service) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM chat_sessions ORDER BY created_at ASC, session_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSession clears the session's history and removes it from the
// registry. Deleting an unknown session is a no-op, not a fault.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	s.invalidate(ctx, sessionID)
	return nil
}

// ForSession returns a handle scoped to one session's log.
func (s *Service) ForSession(sessionID string) *SessionHistory {
	return &SessionHistory{svc: s, sessionID: sessionID}
}
