// Package records stores the durable per-agent-type records that
// collaborators look up before serving a request.
package records

import (
	"context"
	"errors"
	"time"
)

// Record statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Sentinel errors. Store implementations wrap driver errors with these so
// callers can classify failures with errors.Is.
var (
	ErrNotFound    = errors.New("record not found")
	ErrUnavailable = errors.New("record store unavailable")
	ErrAuth        = errors.New("record store access denied")
)

// Record is one agent record.
type Record struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the keyed record store the resilience layer guards.
type Store interface {
	Ping(ctx context.Context) error
	// FindByTypeAndStatus returns ErrNotFound when no record matches.
	FindByTypeAndStatus(ctx context.Context, agentType, status string) (Record, error)
	// FindByType returns ErrNotFound when no record matches.
	FindByType(ctx context.Context, agentType string) (Record, error)
	Create(ctx context.Context, agentType, name, status string) (Record, error)
}

// PoolStats is a snapshot of a store's connection pool.
type PoolStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}

// StatsReporter is implemented by stores that can introspect their pool.
type StatsReporter interface {
	PoolStats(ctx context.Context) (PoolStats, error)
}
