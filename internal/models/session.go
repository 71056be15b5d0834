package models

import "time"

// Session is an independently addressable conversation context. The ID is an
// opaque 128-bit random identifier; a deleted ID is never reused.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}
