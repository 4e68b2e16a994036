package callbacks

import (
	"context"
	"log/slog"
	"net/url"
	"testing"

	"callcenter-platform/internal/exotel"
)

func newTestService() (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	return NewService(repo, slog.Default()), repo
}

func TestReconcileVoice_MissingIdentifierIsNoOp(t *testing.T) {
	svc, repo := newTestService()

	p := NormalizeVoice(url.Values{"Status": {"completed"}, "To": {"222"}})
	if err := svc.ReconcileVoice(context.Background(), p); err != nil {
		t.Fatalf("missing identifier must not error, got %v", err)
	}
	if repo.VoiceCount() != 0 {
		t.Fatalf("expected no rows, got %d", repo.VoiceCount())
	}
}

func TestReconcileSMS_MissingIdentifierIsNoOp(t *testing.T) {
	svc, repo := newTestService()

	if err := svc.ReconcileSMS(context.Background(), SMSPayload{Status: "sent"}); err != nil {
		t.Fatalf("missing identifier must not error, got %v", err)
	}
	if repo.SMSCount() != 0 {
		t.Fatalf("expected no rows, got %d", repo.SMSCount())
	}
}

func TestReconcileVoice_IdempotentProgression(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	// First delivery: call in progress.
	first := url.Values{}
	first.Set("CallSid", "CA1")
	first.Set("From", "111")
	first.Set("To", "222")
	first.Set("Direction", "outbound-api")
	first.Set("Status", "in-progress")
	first.Set("StartTime", "2024-05-01 10:00:00")
	if err := svc.ReconcileVoice(ctx, NormalizeVoice(first)); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}

	row, err := repo.GetVoice(ctx, "CA1")
	if err != nil {
		t.Fatalf("expected row: %v", err)
	}
	if row.Status != "in-progress" || row.Duration != nil || row.RecordingURL != nil {
		t.Fatalf("unexpected initial row: %+v", row)
	}
	createdAt := row.CreatedAt

	// Second delivery: terminal status with duration and recording.
	second := url.Values{}
	second.Set("CallSid", "CA1")
	second.Set("Status", "completed")
	second.Set("Duration", "42")
	second.Set("EndTime", "2024-05-01 10:01:00")
	second.Set("RecordingUrl", "https://x/y.mp3")
	if err := svc.ReconcileVoice(ctx, NormalizeVoice(second)); err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}

	if repo.VoiceCount() != 1 {
		t.Fatalf("expected exactly one row for CA1, got %d", repo.VoiceCount())
	}
	row, _ = repo.GetVoice(ctx, "CA1")
	if row.Status != "completed" {
		t.Fatalf("expected completed, got %q", row.Status)
	}
	if row.Duration == nil || *row.Duration != "42" {
		t.Fatalf("expected duration 42, got %v", row.Duration)
	}
	if row.RecordingURL == nil || *row.RecordingURL != "https://x/y.mp3" {
		t.Fatalf("expected recording url, got %v", row.RecordingURL)
	}
	// Identity and creation data never change across deliveries.
	if row.From != "111" || row.To != "222" || !row.CreatedAt.Equal(createdAt) {
		t.Fatalf("identity fields changed: %+v", row)
	}
	if row.StartTime == nil || row.EndTime == nil {
		t.Fatalf("expected both timestamps, got %+v", row)
	}
}

func TestReconcileVoice_OutOfOrderPartialDelivery(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	// Terminal webhook arrives first.
	full := url.Values{}
	full.Set("CallSid", "CA2")
	full.Set("Status", "completed")
	full.Set("Duration", "10")
	full.Set("RecordingUrl", "https://r")
	_ = svc.ReconcileVoice(ctx, NormalizeVoice(full))

	// A late partial delivery must not blank already-populated fields.
	partial := url.Values{}
	partial.Set("CallSid", "CA2")
	partial.Set("Status", "completed")
	_ = svc.ReconcileVoice(ctx, NormalizeVoice(partial))

	row, _ := repo.GetVoice(ctx, "CA2")
	if row.Duration == nil || *row.Duration != "10" {
		t.Fatalf("partial delivery blanked duration: %+v", row)
	}
	if row.RecordingURL == nil {
		t.Fatalf("partial delivery blanked recording url: %+v", row)
	}
}

func TestReconcileSMS_Idempotent(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	p := SMSPayload{SmsSid: "SM1", To: "222", Status: "sent"}
	_ = svc.ReconcileSMS(ctx, p)
	p.Status = "delivered"
	p.DetailedStatus = "DELIVERED_TO_HANDSET"
	p.DateSent = "2024-05-01 10:00:05"
	_ = svc.ReconcileSMS(ctx, p)

	if repo.SMSCount() != 1 {
		t.Fatalf("expected one row, got %d", repo.SMSCount())
	}
	row, _ := repo.GetSMS(ctx, "SM1")
	if row.Status != "delivered" || row.DetailedStatus != "DELIVERED_TO_HANDSET" {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestRecordInitialCall_CreatesRowBeforeWebhook(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	err := svc.RecordInitialCall(ctx, exotel.CallDetail{
		Sid:       "CA3",
		From:      "111",
		To:        "222",
		Status:    "queued",
		Direction: "outbound-api",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row, err := repo.GetVoice(ctx, "CA3")
	if err != nil {
		t.Fatalf("expected row: %v", err)
	}
	if row.Source != SourceAPI || row.Status != "queued" {
		t.Fatalf("unexpected row: %+v", row)
	}

	// The webhook then advances the same row.
	wh := url.Values{}
	wh.Set("CallSid", "CA3")
	wh.Set("Status", "completed")
	_ = svc.ReconcileVoice(ctx, NormalizeVoice(wh))
	row, _ = repo.GetVoice(ctx, "CA3")
	if row.Status != "completed" || repo.VoiceCount() != 1 {
		t.Fatalf("webhook must update the initial row, got %+v (count %d)", row, repo.VoiceCount())
	}
}

func TestReconcileBulkCall_TagsOrigin(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_ = svc.ReconcileBulkCall(ctx, exotel.CallDetail{Sid: "CA4", Status: "completed"})
	row, err := repo.GetVoice(ctx, "CA4")
	if err != nil {
		t.Fatalf("expected row: %v", err)
	}
	if row.Source != SourceBulkSync {
		t.Fatalf("expected bulk_sync origin, got %q", row.Source)
	}
}

func TestClearRecording(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	full := url.Values{}
	full.Set("CallSid", "CA5")
	full.Set("Status", "completed")
	full.Set("RecordingUrl", "https://r")
	_ = svc.ReconcileVoice(ctx, NormalizeVoice(full))

	if err := svc.ClearRecording(ctx, "CA5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row, _ := repo.GetVoice(ctx, "CA5")
	if row.RecordingURL != nil {
		t.Fatalf("expected cleared recording url, got %v", *row.RecordingURL)
	}
	if row.Status != "completed" {
		t.Fatalf("clear recording must not touch other fields")
	}

	if err := svc.ClearRecording(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
