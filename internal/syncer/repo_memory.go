package syncer

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu   sync.Mutex
	rows []SyncStatus
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (m *MemoryRepo) Append(ctx context.Context, row SyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
	return nil
}

func (m *MemoryRepo) LastSuccessful(ctx context.Context, st SyncType) (SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].SyncType == st && m.rows[i].Outcome == SyncOutcomeSuccess {
			return m.rows[i], nil
		}
	}
	return SyncStatus{}, ErrNotFound
}

func (m *MemoryRepo) List(ctx context.Context, st SyncType, limit int) ([]SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []SyncStatus
	for i := len(m.rows) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.rows[i].SyncType == st {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

// All returns every appended row in insertion order. Test helper.
func (m *MemoryRepo) All() []SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SyncStatus, len(m.rows))
	copy(out, m.rows)
	return out
}
