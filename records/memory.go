package records

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store, used when no database is configured
// and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// FindByTypeAndStatus implements Store.
func (m *MemoryStore) FindByTypeAndStatus(_ context.Context, agentType, status string) (Record, error) {
	return m.latest(func(r Record) bool { return r.Type == agentType && r.Status == status })
}

// FindByType implements Store.
func (m *MemoryStore) FindByType(_ context.Context, agentType string) (Record, error) {
	return m.latest(func(r Record) bool { return r.Type == agentType })
}

func (m *MemoryStore) latest(match func(Record) bool) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best  Record
		found bool
	)
	for _, r := range m.records {
		if !match(r) {
			continue
		}
		if !found || r.UpdatedAt.After(best.UpdatedAt) {
			best, found = r, true
		}
	}
	if !found {
		return Record{}, ErrNotFound
	}
	return best, nil
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, agentType, name, status string) (Record, error) {
	now := m.now()
	r := Record{
		ID:        uuid.NewString(),
		Type:      agentType,
		Name:      name,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.records[r.ID] = r
	m.mu.Unlock()
	return r, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

var _ Store = (*MemoryStore)(nil)
