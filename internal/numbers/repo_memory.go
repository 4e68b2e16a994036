package numbers

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]PhoneNumber // keyed by id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]PhoneNumber{}}
}

// upsertLocked mirrors the Postgres conflict clause: provider-sourced
// fields refresh, department and primary stay put. Caller holds mu.
func (m *MemoryRepo) upsertLocked(row PhoneNumber) {
	for id, r := range m.rows {
		if r.Number == row.Number {
			if row.Sid != "" {
				r.Sid = row.Sid
			}
			if row.FriendlyName != "" {
				r.FriendlyName = row.FriendlyName
			}
			if row.NumberType != "" {
				r.NumberType = row.NumberType
			}
			r.IsActive = row.IsActive
			r.VoiceEnabled = row.VoiceEnabled
			r.SMSEnabled = row.SMSEnabled
			r.RecordingEnabled = row.RecordingEnabled
			r.VoiceURL = row.VoiceURL
			r.SMSURL = row.SMSURL
			r.UpdatedAt = row.UpdatedAt
			m.rows[id] = r
			return
		}
	}
	m.rows[row.ID] = row
}

func (m *MemoryRepo) Upsert(ctx context.Context, row PhoneNumber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(row)
	return nil
}

func (m *MemoryRepo) ReplaceInventory(ctx context.Context, rows []PhoneNumber, primaryNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]bool{}
	for _, row := range rows {
		m.upsertLocked(row)
		seen[row.Number] = true
	}
	now := time.Now().UTC()
	for id, r := range m.rows {
		if r.Sid != "" && !seen[r.Number] && r.IsActive {
			r.IsActive = false
			r.UpdatedAt = now
		}
		r.IsPrimary = r.Number == primaryNumber
		m.rows[id] = r
	}
	return nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (PhoneNumber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return PhoneNumber{}, ErrNotFound
	}
	return row, nil
}

func (m *MemoryRepo) GetByNumber(ctx context.Context, number string) (PhoneNumber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Number == number {
			return r, nil
		}
	}
	return PhoneNumber{}, ErrNotFound
}

func (m *MemoryRepo) GetPrimary(ctx context.Context) (PhoneNumber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.IsPrimary {
			return r, nil
		}
	}
	return PhoneNumber{}, ErrNotFound
}

func (m *MemoryRepo) List(ctx context.Context) ([]PhoneNumber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PhoneNumber, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *MemoryRepo) SetPrimary(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	for k, r := range m.rows {
		if r.IsPrimary {
			r.IsPrimary = false
			r.UpdatedAt = time.Now().UTC()
			m.rows[k] = r
		}
	}
	target.IsPrimary = true
	target.UpdatedAt = time.Now().UTC()
	m.rows[id] = target
	return nil
}

func (m *MemoryRepo) Apply(ctx context.Context, id string, upd Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	if upd.FriendlyName != nil {
		row.FriendlyName = *upd.FriendlyName
	}
	if upd.DepartmentName != nil {
		row.DepartmentName = *upd.DepartmentName
	}
	if upd.IsActive != nil {
		row.IsActive = *upd.IsActive
	}
	row.UpdatedAt = time.Now().UTC()
	m.rows[id] = row
	return nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}
