package heartbeat

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu   sync.Mutex
	rows []HealthCheck
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (m *MemoryRepo) Append(ctx context.Context, row HealthCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
	return nil
}

func (m *MemoryRepo) Latest(ctx context.Context) (HealthCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) == 0 {
		return HealthCheck{}, ErrNotFound
	}
	latest := m.rows[0]
	for _, r := range m.rows[1:] {
		if r.CheckedAt.After(latest.CheckedAt) {
			latest = r
		}
	}
	return latest, nil
}

func (m *MemoryRepo) List(ctx context.Context, limit, offset int) ([]HealthCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sorted := make([]HealthCheck, len(m.rows))
	copy(sorted, m.rows)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].CheckedAt.After(sorted[i].CheckedAt) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	if offset >= len(sorted) {
		return nil, nil
	}
	sorted = sorted[offset:]
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (m *MemoryRepo) CountByWindow(ctx context.Context, from, to time.Time) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ok, total int
	for _, r := range m.rows {
		if r.CheckedAt.Before(from) || !r.CheckedAt.Before(to) {
			continue
		}
		total++
		if r.StatusType == StatusTypeOK {
			ok++
		}
	}
	return ok, total, nil
}

// Count reports the number of appended rows. Test helper.
func (m *MemoryRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
