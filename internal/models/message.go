package models

import "time"

// Role tags a message at construction time; it is never inferred later.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in a session's append-only log. Insertion order is
// conversation order; entries are never mutated after append.
type Message struct {
	ID        int64     `json:"-"`
	SessionID string    `json:"-"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"-"`
}
