package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatrelay/internal/models"
	"chatrelay/internal/redis"
)

const historyCacheTTL = 5 * time.Minute

// SessionHistory is a per-request handle onto one session's message log.
type SessionHistory struct {
	svc       *Service
	sessionID string
}

// Append adds one message to the end of the log. It succeeds whether or not
// the session is registered.
func (h *SessionHistory) Append(ctx context.Context, role models.Role, content string) (*models.Message, error) {
	now := time.Now().UTC()
	res, err := h.svc.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		h.sessionID, role, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	h.svc.invalidate(ctx, h.sessionID)
	return &models.Message{
		ID:        id,
		SessionID: h.sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}, nil
}

// Messages returns the full log in append order. An unknown session yields
// an empty slice. Ordering is on the autoincrement id: timestamps only have
// second precision and can tie.
func (h *SessionHistory) Messages(ctx context.Context) ([]models.Message, error) {
	if cached, ok := h.svc.cachedHistory(ctx, h.sessionID); ok {
		return cached, nil
	}

	rows, err := h.svc.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC`,
		h.sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	h.svc.storeHistory(ctx, h.sessionID, msgs)
	return msgs, nil
}

// Clear deletes all messages for the session. Idempotent.
func (h *SessionHistory) Clear(ctx context.Context) error {
	if _, err := h.svc.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, h.sessionID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	h.svc.invalidate(ctx, h.sessionID)
	return nil
}

func historyKey(sessionID string) string {
	return "history:" + sessionID
}

// cachedHistory serves reads from redis when available. Cache entries only
// carry role and content, which is all read-back consumers use.
func (s *Service) cachedHistory(ctx context.Context, sessionID string) ([]models.Message, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, historyKey(sessionID))
	if err != nil {
		// A cold key is the normal path; anything else falls back to the db
		// too but is worth a trace.
		if !errors.Is(err, redis.ErrCacheMiss) {
			slog.Debug("history cache read failed", "session_id", sessionID, "error", err)
		}
		return nil, false
	}
	var msgs []models.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, false
	}
	if msgs == nil {
		msgs = make([]models.Message, 0)
	}
	return msgs, true
}

func (s *Service) storeHistory(ctx context.Context, sessionID string, msgs []models.Message) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	// Best effort: a failed cache write just means the next read hits the db.
	_ = s.cache.Set(ctx, historyKey(sessionID), raw, historyCacheTTL)
}

func (s *Service) invalidate(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, historyKey(sessionID))
}
