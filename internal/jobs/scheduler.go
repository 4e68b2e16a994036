package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"callcenter-platform/internal/config"
	"callcenter-platform/internal/heartbeat"
	"callcenter-platform/internal/numbers"
	"callcenter-platform/internal/syncer"
	"callcenter-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const (
	heartbeatInterval = time.Minute
	directoryInterval = 6 * time.Hour
)

// Scheduler drives the background jobs: heartbeat poll, bulk call sync,
// and the number-directory sync.
//
// Two overlap guards stack: the services' own in-process flags, plus a
// Redis lock so multiple API instances don't run the same job at once.
// A lost lock means SKIP, never wait.
type Scheduler struct {
	cron  *cron.Cron
	rdb   *redis.Client
	log   *slog.Logger
	owner string
}

func NewScheduler(rdb *redis.Client, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		rdb:   rdb,
		log:   log,
		owner: uuid.NewString(),
	}
}

// Register wires the enabled jobs per config.
func (s *Scheduler) Register(cfg config.JobsConfig, hb *heartbeat.Service, sync *syncer.Service, dir *numbers.Service) error {
	if cfg.HeartbeatEnabled {
		err := s.add("heartbeat-poll", heartbeatInterval, func(ctx context.Context) error {
			hb.Poll(ctx)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if cfg.BulkSyncEnabled {
		err := s.add("bulk-call-sync", cfg.BulkSyncInterval, func(ctx context.Context) error {
			_, err := sync.SyncCalls(ctx)
			if err == syncer.ErrSyncInProgress {
				return nil
			}
			return err
		})
		if err != nil {
			return err
		}
	}

	return s.add("directory-sync", directoryInterval, dir.SyncDirectory)
}

func (s *Scheduler) add(name string, every time.Duration, fn func(ctx context.Context) error) error {
	spec := fmt.Sprintf("@every %s", every)
	_, err := s.cron.AddFunc(spec, func() {
		s.run(name, every, fn)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.log.Info("job scheduled", "job", name, "every", every)
	return nil
}

// run executes one tick under the cross-instance lock. The lock TTL is
// the interval itself, capped at 10 minutes so a crashed holder can't
// wedge a long-cadence job for hours.
func (s *Scheduler) run(name string, every time.Duration, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), every)
	defer cancel()

	if s.rdb != nil {
		ttl := every
		if ttl > 10*time.Minute {
			ttl = 10 * time.Minute
		}
		key := "jobs:lock:" + name
		ok, err := utils.AcquireJobLock(ctx, s.rdb, key, s.owner, ttl)
		if err != nil {
			// Redis trouble must not stall the schedule on a single box.
			s.log.Warn("job lock unavailable, running unlocked", "job", name, "err", err)
		} else if !ok {
			s.log.Debug("job held by another instance, skipped", "job", name)
			return
		} else {
			defer func() {
				if err := utils.ReleaseJobLock(context.Background(), s.rdb, key, s.owner); err != nil {
					s.log.Warn("job lock release failed", "job", name, "err", err)
				}
			}()
		}
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.log.Error("job failed", "job", name, "err", err, "elapsed", time.Since(start))
		return
	}
	s.log.Debug("job finished", "job", name, "elapsed", time.Since(start))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("job drain timed out")
	}
}

// Entries reports the scheduled job count. Exposed for wiring checks.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
