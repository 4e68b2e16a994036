package callbacks

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo mirrors the Postgres upsert merge semantics in memory.
// Useful for tests; not intended for production use.
type MemoryRepo struct {
	mu    sync.Mutex
	voice map[string]VoiceCallback
	sms   map[string]SmsCallback
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		voice: make(map[string]VoiceCallback),
		sms:   make(map[string]SmsCallback),
	}
}

func (r *MemoryRepo) UpsertVoice(ctx context.Context, row VoiceCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.voice[row.CallSid]
	if !ok {
		r.voice[row.CallSid] = row
		return nil
	}

	// Progression fields only; identity and created_at stay put.
	if row.Status != "" {
		existing.Status = row.Status
	}
	if existing.StartTime == nil {
		existing.StartTime = row.StartTime
	}
	if row.EndTime != nil {
		existing.EndTime = row.EndTime
	}
	if row.Duration != nil {
		existing.Duration = row.Duration
	}
	if row.RecordingURL != nil {
		existing.RecordingURL = row.RecordingURL
	}
	if row.AnsweredBy != "" {
		existing.AnsweredBy = row.AnsweredBy
	}
	if row.Price != "" {
		existing.Price = row.Price
	}
	existing.UpdatedAt = row.UpdatedAt
	r.voice[row.CallSid] = existing
	return nil
}

func (r *MemoryRepo) UpsertSMS(ctx context.Context, row SmsCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sms[row.SmsSid]
	if !ok {
		r.sms[row.SmsSid] = row
		return nil
	}

	if row.Status != "" {
		existing.Status = row.Status
	}
	if row.DetailedStatus != "" {
		existing.DetailedStatus = row.DetailedStatus
	}
	if row.DetailedStatusCode != "" {
		existing.DetailedStatusCode = row.DetailedStatusCode
	}
	if row.SmsUnits > existing.SmsUnits {
		existing.SmsUnits = row.SmsUnits
	}
	if row.DateSent != "" {
		existing.DateSent = row.DateSent
	}
	existing.UpdatedAt = row.UpdatedAt
	r.sms[row.SmsSid] = existing
	return nil
}

func (r *MemoryRepo) GetVoice(ctx context.Context, callSid string) (VoiceCallback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.voice[callSid]
	if !ok {
		return VoiceCallback{}, ErrNotFound
	}
	return row, nil
}

func (r *MemoryRepo) GetSMS(ctx context.Context, smsSid string) (SmsCallback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.sms[smsSid]
	if !ok {
		return SmsCallback{}, ErrNotFound
	}
	return row, nil
}

func (r *MemoryRepo) ListVoiceByWindow(ctx context.Context, from, to time.Time) ([]VoiceCallback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []VoiceCallback
	for _, row := range r.voice {
		if !row.CreatedAt.Before(from) && row.CreatedAt.Before(to) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ClearRecordingURL(ctx context.Context, callSid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.voice[callSid]
	if !ok {
		return ErrNotFound
	}
	row.RecordingURL = nil
	r.voice[callSid] = row
	return nil
}

// VoiceCount reports the number of stored voice rows.
func (r *MemoryRepo) VoiceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.voice)
}

// SMSCount reports the number of stored SMS rows.
func (r *MemoryRepo) SMSCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sms)
}
