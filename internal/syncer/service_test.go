package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"callcenter-platform/internal/exotel"
)

type stubLister struct {
	mu      sync.Mutex
	records []exotel.CallDetail
	err     error
	windows [][2]time.Time
	block   chan struct{}
}

func (l *stubLister) ListCalls(ctx context.Context, from, to time.Time) ([]exotel.CallDetail, error) {
	l.mu.Lock()
	l.windows = append(l.windows, [2]time.Time{from, to})
	l.mu.Unlock()
	if l.block != nil {
		<-l.block
	}
	return l.records, l.err
}

type stubReconciler struct {
	mu     sync.Mutex
	sids   []string
	failOn map[string]bool
}

func (r *stubReconciler) ReconcileBulkCall(ctx context.Context, d exotel.CallDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[d.Sid] {
		return errors.New("constraint violation")
	}
	r.sids = append(r.sids, d.Sid)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSyncCalls_FirstRunUses24hLookback(t *testing.T) {
	repo := NewMemoryRepo()
	lister := &stubLister{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	svc := NewService(repo, lister, &stubReconciler{}, slog.Default())
	svc.clock = fixedClock(now)

	row, err := svc.SyncCalls(context.Background())
	if err != nil {
		t.Fatalf("SyncCalls: %v", err)
	}
	if len(lister.windows) != 1 {
		t.Fatalf("expected one fetch, got %d", len(lister.windows))
	}
	if got := lister.windows[0][0]; !got.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("expected 24h lookback, got from=%v", got)
	}
	if row.Outcome != SyncOutcomeSuccess || !row.LastSyncTime.Equal(now) {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestSyncCalls_WatermarkAdvancesOnlyOnSuccess(t *testing.T) {
	repo := NewMemoryRepo()
	lister := &stubLister{}
	svc := NewService(repo, lister, &stubReconciler{}, slog.Default())

	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = fixedClock(t1)
	if _, err := svc.SyncCalls(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Second run fails; watermark must not move.
	lister.err = errors.New("provider down")
	t2 := t1.Add(15 * time.Minute)
	svc.clock = fixedClock(t2)
	if _, err := svc.SyncCalls(context.Background()); err == nil {
		t.Fatalf("expected fetch error to propagate")
	}

	// Third run succeeds; its window starts at the FIRST run's end, so the
	// failed window is re-covered.
	lister.err = nil
	t3 := t1.Add(30 * time.Minute)
	svc.clock = fixedClock(t3)
	if _, err := svc.SyncCalls(context.Background()); err != nil {
		t.Fatalf("third run: %v", err)
	}

	last := lister.windows[len(lister.windows)-1]
	if !last[0].Equal(t1) || !last[1].Equal(t3) {
		t.Fatalf("expected window [%v, %v], got [%v, %v]", t1, t3, last[0], last[1])
	}

	rows := repo.All()
	if len(rows) != 3 {
		t.Fatalf("every run must append a status row, got %d", len(rows))
	}
	if rows[1].Outcome != SyncOutcomeFailed || rows[1].ErrorMessage == "" {
		t.Fatalf("expected failed row with error, got %+v", rows[1])
	}
}

func TestSyncCalls_PerRecordFailureTolerated(t *testing.T) {
	repo := NewMemoryRepo()
	lister := &stubLister{records: []exotel.CallDetail{
		{Sid: "CA1", Status: "completed"},
		{Sid: "CA2", Status: "completed"},
		{Sid: "CA3", Status: "failed"},
	}}
	recon := &stubReconciler{failOn: map[string]bool{"CA2": true}}

	svc := NewService(repo, lister, recon, slog.Default())
	row, err := svc.SyncCalls(context.Background())
	if err != nil {
		t.Fatalf("one bad record must not fail the run: %v", err)
	}
	if row.Outcome != SyncOutcomeSuccess || row.RecordsSynced != 2 || row.RecordsFailed != 1 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if len(recon.sids) != 2 {
		t.Fatalf("records after the bad one must still be processed, got %v", recon.sids)
	}
}

func TestSyncCalls_OverlappingRunSkipped(t *testing.T) {
	repo := NewMemoryRepo()
	lister := &stubLister{block: make(chan struct{})}
	svc := NewService(repo, lister, &stubReconciler{}, slog.Default())

	done := make(chan error, 1)
	go func() {
		_, err := svc.SyncCalls(context.Background())
		done <- err
	}()

	// Wait for the first run to reach the provider fetch.
	deadline := time.Now().Add(2 * time.Second)
	for {
		lister.mu.Lock()
		started := len(lister.windows) > 0
		lister.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first run never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := svc.SyncCalls(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}

	close(lister.block)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The guard releases; a later run proceeds.
	if _, err := svc.SyncCalls(context.Background()); err != nil {
		t.Fatalf("post-release run: %v", err)
	}
}

func TestHistory_FiltersBySyncType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, &stubLister{}, &stubReconciler{}, slog.Default())

	if _, err := svc.SyncCalls(context.Background()); err != nil {
		t.Fatalf("SyncCalls: %v", err)
	}
	if err := svc.RecordRun(context.Background(), SyncStatus{
		SyncType: SyncTypeExoPhones,
		Outcome:  SyncOutcomeSuccess,
	}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	rows, err := svc.History(context.Background(), SyncTypeBulkCalls, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rows) != 1 || rows[0].SyncType != SyncTypeBulkCalls {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}
