package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"callcenter-platform/internal/exotel"

	"github.com/google/uuid"
)

// defaultLookback bounds the first run's window when no successful run
// exists yet.
const defaultLookback = 24 * time.Hour

// ErrSyncInProgress means a run was skipped because one is already
// executing in this process. Overlaps are skipped, never queued.
var ErrSyncInProgress = errors.New("syncer: sync already in progress")

// CallLister fetches the bulk call-detail report for a window.
// *exotel.Service satisfies it.
type CallLister interface {
	ListCalls(ctx context.Context, from, to time.Time) ([]exotel.CallDetail, error)
}

// BulkReconciler merges one bulk report record into the callback store.
// *callbacks.Service satisfies it.
type BulkReconciler interface {
	ReconcileBulkCall(ctx context.Context, d exotel.CallDetail) error
}

// Service reconciles provider-side call history into local storage. It
// backfills deliveries that webhooks missed (downtime, provider retry
// exhaustion) by periodically pulling the bulk report since the last
// successful watermark.
type Service struct {
	repo   Repository
	lister CallLister
	recon  BulkReconciler
	log    *slog.Logger
	clock  func() time.Time

	running atomic.Bool
}

func NewService(repo Repository, lister CallLister, recon BulkReconciler, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		lister: lister,
		recon:  recon,
		log:    log,
		clock:  time.Now,
	}
}

// SyncCalls runs one bulk reconciliation pass.
//
// Window: [last successful watermark, now), or [now-24h, now) when no
// successful run exists. Every run appends a SyncStatus row; only a
// successful run advances the watermark. A single bad record is logged
// and skipped, it does not fail the run.
func (s *Service) SyncCalls(ctx context.Context) (SyncStatus, error) {
	if !s.running.CompareAndSwap(false, true) {
		return SyncStatus{}, ErrSyncInProgress
	}
	defer s.running.Store(false)

	now := s.clock().UTC()
	from := now.Add(-defaultLookback)
	if last, err := s.repo.LastSuccessful(ctx, SyncTypeBulkCalls); err == nil {
		from = last.LastSyncTime
	} else if !errors.Is(err, ErrNotFound) {
		return s.finish(ctx, SyncStatus{
			SyncType:     SyncTypeBulkCalls,
			LastSyncTime: from,
			Outcome:      SyncOutcomeFailed,
			ErrorMessage: "watermark lookup: " + err.Error(),
		}, err)
	}

	s.log.Info("bulk call sync started", "from", from, "to", now)

	records, err := s.lister.ListCalls(ctx, from, now)
	if err != nil {
		return s.finish(ctx, SyncStatus{
			SyncType:     SyncTypeBulkCalls,
			LastSyncTime: from,
			Outcome:      SyncOutcomeFailed,
			ErrorMessage: err.Error(),
		}, err)
	}

	var synced, failed int
	for _, d := range records {
		if err := s.recon.ReconcileBulkCall(ctx, d); err != nil {
			failed++
			s.log.Warn("bulk record reconcile failed", "call_sid", d.Sid, "err", err)
			continue
		}
		synced++
	}

	row := SyncStatus{
		SyncType:      SyncTypeBulkCalls,
		LastSyncTime:  now,
		Outcome:       SyncOutcomeSuccess,
		RecordsSynced: synced,
		RecordsFailed: failed,
	}
	s.log.Info("bulk call sync finished", "synced", synced, "failed", failed)
	return s.finish(ctx, row, nil)
}

// RecordRun appends a SyncStatus row for a sync executed elsewhere (the
// ExoPhone directory sync reports through here).
func (s *Service) RecordRun(ctx context.Context, row SyncStatus) error {
	_, err := s.finish(ctx, row, nil)
	return err
}

// History returns recent runs for a sync type, newest first.
func (s *Service) History(ctx context.Context, st SyncType, limit int) ([]SyncStatus, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, st, limit)
}

// finish stamps and appends the run row. An append failure is reported in
// preference to runErr only when the run itself succeeded.
func (s *Service) finish(ctx context.Context, row SyncStatus, runErr error) (SyncStatus, error) {
	row.ID = uuid.NewString()
	row.CreatedAt = s.clock().UTC()
	if err := s.repo.Append(ctx, row); err != nil {
		s.log.Error("sync status append failed", "sync_type", row.SyncType, "err", err)
		if runErr == nil {
			return row, err
		}
	}
	return row, runErr
}
