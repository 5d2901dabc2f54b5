package memory

import (
	"context"
	"time"
)

// Category groups memory entries by origin.
type Category string

const (
	CategoryConversation Category = "conversation"
	CategoryFact         Category = "fact"
)

// DefaultTTL is how long an entry lives when no expiry is given.
const DefaultTTL = 24 * time.Hour

// MaxImportance caps the importance score of an entry.
const MaxImportance = 10.0

// Entry is a single durable memory owned by an agent type.
type Entry struct {
	ID         int64     `json:"id"`
	Owner      string    `json:"owner"`
	Category   Category  `json:"category"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	Importance float64   `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the entry has expired at t.
func (e Entry) Expired(t time.Time) bool {
	return !e.ExpiresAt.After(t)
}

// Writer persists memory entries. Implemented by Store.
type Writer interface {
	Remember(ctx context.Context, entry Entry) (Entry, error)
}
