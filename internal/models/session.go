package models

import "time"

// Session is one chat conversation, keyed by an opaque client token.
type Session struct {
	ID           string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}
