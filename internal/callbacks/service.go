package callbacks

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"callcenter-platform/internal/exotel"
)

// Service reconciles callback payloads into durable storage exactly once
// per provider event, tolerant of retries and out-of-order or partial
// deliveries. The provider redelivers webhooks on its own policy; this
// idempotency is what makes that safe.
type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, clock: time.Now}
}

// ReconcileVoice upserts one normalized voice callback. A payload without
// an identifier cannot be reconciled and is skipped silently (log only).
func (s *Service) ReconcileVoice(ctx context.Context, p VoicePayload) error {
	if s.repo == nil {
		return errors.New("callbacks: repository not configured")
	}
	if p.CallSid == "" {
		s.log.Warn("voice callback without CallSid skipped", "status", p.Status, "to", p.To)
		return nil
	}

	now := s.clock().UTC()
	row := VoiceCallback{
		CallSid:        p.CallSid,
		AccountSid:     p.AccountSid,
		PhoneNumberSid: p.PhoneNumberSid,
		Direction:      p.Direction,
		From:           p.From,
		To:             p.To,
		Status:         p.Status,
		StartTime:      parseProviderTime(p.StartTime),
		EndTime:        parseProviderTime(p.EndTime),
		Duration:       optionalString(p.Duration),
		RecordingURL:   optionalString(p.RecordingURL),
		AnsweredBy:     p.AnsweredBy,
		Price:          p.Price,
		Source:         SourceWebhook,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.repo.UpsertVoice(ctx, row)
}

// ReconcileSMS upserts one normalized SMS callback.
func (s *Service) ReconcileSMS(ctx context.Context, p SMSPayload) error {
	if s.repo == nil {
		return errors.New("callbacks: repository not configured")
	}
	if p.SmsSid == "" {
		s.log.Warn("sms callback without SmsSid skipped", "status", p.Status, "to", p.To)
		return nil
	}

	units, _ := strconv.Atoi(p.SmsUnits)
	now := s.clock().UTC()
	row := SmsCallback{
		SmsSid:             p.SmsSid,
		To:                 p.To,
		Status:             p.Status,
		DetailedStatus:     p.DetailedStatus,
		DetailedStatusCode: p.DetailedStatusCode,
		SmsUnits:           units,
		DateSent:           p.DateSent,
		Source:             SourceWebhook,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return s.repo.UpsertSMS(ctx, row)
}

// RecordInitialCall persists the immediate API response after an outbound
// call is placed, so a record exists even if the webhook never arrives.
// Implements exotel.CallbackStore.
func (s *Service) RecordInitialCall(ctx context.Context, d exotel.CallDetail) error {
	return s.upsertFromDetail(ctx, d, SourceAPI)
}

// RecordInitialSMS is the SMS counterpart of RecordInitialCall.
func (s *Service) RecordInitialSMS(ctx context.Context, d exotel.SMSDetail) error {
	if d.Sid == "" {
		return nil
	}
	now := s.clock().UTC()
	return s.repo.UpsertSMS(ctx, SmsCallback{
		SmsSid:             d.Sid,
		AccountSid:         d.AccountSid,
		To:                 d.To,
		Status:             d.Status,
		DetailedStatus:     d.DetailedStatus,
		DetailedStatusCode: d.DetailedStatusCode,
		SmsUnits:           d.SmsUnits,
		DateSent:           d.DateSent,
		Source:             SourceAPI,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
}

// ReconcileBulkCall merges one record from the bulk call-detail report,
// marking its origin for traceability when it creates the row.
func (s *Service) ReconcileBulkCall(ctx context.Context, d exotel.CallDetail) error {
	return s.upsertFromDetail(ctx, d, SourceBulkSync)
}

func (s *Service) upsertFromDetail(ctx context.Context, d exotel.CallDetail, src Source) error {
	if s.repo == nil {
		return errors.New("callbacks: repository not configured")
	}
	if d.Sid == "" {
		return nil
	}
	now := s.clock().UTC()
	return s.repo.UpsertVoice(ctx, VoiceCallback{
		CallSid:        d.Sid,
		AccountSid:     d.AccountSid,
		PhoneNumberSid: d.PhoneNumberSid,
		Direction:      d.Direction,
		From:           d.From,
		To:             d.To,
		Status:         d.Status,
		StartTime:      parseProviderTime(d.StartTime),
		EndTime:        parseProviderTime(d.EndTime),
		Duration:       d.Duration,
		RecordingURL:   optionalString(d.RecordingURL),
		AnsweredBy:     d.AnsweredBy,
		Price:          d.Price,
		Source:         src,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// VoiceBySid fetches one voice record.
func (s *Service) VoiceBySid(ctx context.Context, callSid string) (VoiceCallback, error) {
	return s.repo.GetVoice(ctx, callSid)
}

// SMSBySid fetches one SMS record.
func (s *Service) SMSBySid(ctx context.Context, smsSid string) (SmsCallback, error) {
	return s.repo.GetSMS(ctx, smsSid)
}

// ClearRecording nulls the recording reference of one call.
func (s *Service) ClearRecording(ctx context.Context, callSid string) error {
	if callSid == "" {
		return ErrNotFound
	}
	return s.repo.ClearRecordingURL(ctx, callSid)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
