package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/records"
)

// Status is the connection state reported by HealthCheck.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
	StatusRetrying     Status = "retrying"
)

// ConnectionHealth is a point-in-time view of the record store connection.
type ConnectionHealth struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
	Hints     []string  `json:"hints,omitempty"`
	// LastConnect is the status observed by the most recent Connect call.
	LastConnect Status `json:"last_connect,omitempty"`
}

// DefaultHints are returned by HealthCheck whenever the store is not connected.
func DefaultHints() []string {
	return []string{
		"Verify the database path in store.db_path exists and is writable",
		"Check that no other process holds a long-running lock on the database",
		"Confirm file permissions allow the daemon to read and write the database",
		"Run migrations so the agent_records table exists",
	}
}

// HealthCheck probes the store and reports its status. Troubleshooting hints
// are attached when the store is not connected.
func (m *Manager) HealthCheck(ctx context.Context) ConnectionHealth {
	ctx, cancel := context.WithTimeout(ctx, m.pingTimeout)
	defer cancel()

	last := m.LastHealth()
	health := ConnectionHealth{
		Status:      StatusConnected,
		Timestamp:   m.now(),
		LastConnect: last.Status,
	}

	if err := m.store.Ping(ctx); err != nil {
		health.Status = StatusError
		if classify(err) == kindTransient {
			health.Status = StatusDisconnected
		}
		health.Error = err.Error()
		health.Hints = append([]string(nil), m.hints...)
		m.logger.Warn().Err(err).Str("status", string(health.Status)).Msg("Record store health check failed")
		return health
	}

	if last.Status == StatusRetrying {
		// A Connect call is still backing off; report it rather than a clean bill.
		health.Status = StatusRetrying
		health.Error = last.Error
		health.Hints = append([]string(nil), m.hints...)
	}
	return health
}

// LastHealth returns the status recorded by the most recent Connect call.
func (m *Manager) LastHealth() ConnectionHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *Manager) setHealth(status Status, err error) {
	h := ConnectionHealth{Status: status, Timestamp: m.now()}
	if err != nil {
		h.Error = err.Error()
	}
	m.mu.Lock()
	m.last = h
	m.mu.Unlock()
}

// Stats is the best-effort pool introspection returned by ConnectionStats.
type Stats struct {
	Available bool               `json:"available"`
	Pool      *records.PoolStats `json:"pool,omitempty"`
	Health    Status             `json:"health"`
	Error     string             `json:"error,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// ErrStatsUnsupported is reported when the store cannot introspect its pool.
var ErrStatsUnsupported = errors.New("store does not expose pool statistics")

// ConnectionStats reports pool statistics. Failures, including a panicking
// store, are reported in the Error field.
func (m *Manager) ConnectionStats(ctx context.Context) (stats Stats) {
	stats = Stats{
		Health:    m.LastHealth().Status,
		Timestamp: m.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("Pool introspection panicked")
			stats.Available = false
			stats.Pool = nil
			stats.Error = fmt.Sprintf("pool introspection failed: %v", r)
		}
	}()

	reporter, ok := m.store.(records.StatsReporter)
	if !ok {
		stats.Error = ErrStatsUnsupported.Error()
		return stats
	}

	pool, err := reporter.PoolStats(ctx)
	if err != nil {
		stats.Error = err.Error()
		return stats
	}
	stats.Available = true
	stats.Pool = &pool
	return stats
}
