package heartbeat

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"callcenter-platform/internal/exotel"
	"callcenter-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	latestCacheKey = "heartbeat:latest"
	latestCacheTTL = 2 * time.Minute
)

// HealthFetcher reports the provider's current service health.
// *exotel.Service satisfies it.
type HealthFetcher interface {
	FetchHeartbeat(ctx context.Context) (exotel.HeartbeatStatus, error)
}

// Service runs the provider health monitor and serves health reads.
type Service struct {
	repo    Repository
	fetcher HealthFetcher
	rdb     *redis.Client
	log     *slog.Logger
	clock   func() time.Time
}

func NewService(repo Repository, fetcher HealthFetcher, rdb *redis.Client, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		fetcher: fetcher,
		rdb:     rdb,
		log:     log,
		clock:   time.Now,
	}
}

// Poll performs one health check and appends the resulting row.
//
// A poll NEVER fails past this boundary: fetch errors become ERROR rows
// with the error text as payload, and even an append failure is only
// logged. The returned row is what was (or would have been) recorded.
func (s *Service) Poll(ctx context.Context) HealthCheck {
	row := HealthCheck{
		ID:        uuid.NewString(),
		CheckedAt: s.clock().UTC(),
	}

	status, err := s.fetcher.FetchHeartbeat(ctx)
	if err != nil {
		row.StatusType = StatusTypeError
		row.RawPayload = err.Error()
	} else {
		row.StatusType = classifyStatus(status.Status)
		row.IncomingAffected = status.IncomingAffected
		row.OutgoingAffected = status.OutgoingAffected
		if raw, mErr := json.Marshal(status); mErr == nil {
			row.RawPayload = string(raw)
		}
	}

	if row.StatusType != StatusTypeOK {
		// Alert path. Notification fan-out hangs off this log line today.
		s.log.Error("provider health degraded",
			"status", row.StatusType,
			"incoming_affected", row.IncomingAffected,
			"outgoing_affected", row.OutgoingAffected,
			"payload", row.RawPayload,
		)
	}

	if err := s.repo.Append(ctx, row); err != nil {
		s.log.Error("health check append failed", "err", err)
		return row
	}
	s.cacheLatest(ctx, row)
	return row
}

// Latest returns the most recent snapshot, preferring the redis cache.
func (s *Service) Latest(ctx context.Context) (HealthCheck, error) {
	if s.rdb != nil {
		if b, err := utils.CacheGet(ctx, s.rdb, latestCacheKey); err == nil && b != nil {
			var row HealthCheck
			if json.Unmarshal(b, &row) == nil {
				return row, nil
			}
		}
	}
	return s.repo.Latest(ctx)
}

// History returns snapshots newest-first.
func (s *Service) History(ctx context.Context, limit, offset int) ([]HealthCheck, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// Uptime reports the fraction of OK checks in [from, to) as a percentage.
// A window with no checks reads as 0.
func (s *Service) Uptime(ctx context.Context, from, to time.Time) (float64, error) {
	ok, total, err := s.repo.CountByWindow(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return float64(ok) / float64(total) * 100, nil
}

// cacheLatest is best effort; a cache miss only costs a DB read.
func (s *Service) cacheLatest(ctx context.Context, row HealthCheck) {
	if s.rdb == nil {
		return
	}
	b, err := json.Marshal(row)
	if err != nil {
		return
	}
	if err := utils.CacheSet(ctx, s.rdb, latestCacheKey, b, latestCacheTTL); err != nil {
		s.log.Warn("health snapshot cache write failed", "err", err)
	}
}
