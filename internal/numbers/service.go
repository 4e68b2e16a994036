package numbers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"callcenter-platform/internal/exotel"
	"callcenter-platform/internal/syncer"

	"github.com/google/uuid"
)

var ErrInvalidArgument = errors.New("numbers: invalid argument")

var e164 = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// InventoryFetcher pulls the provider's virtual-number inventory.
// *exotel.Service satisfies it.
type InventoryFetcher interface {
	FetchExoPhones(ctx context.Context) ([]exotel.ExoPhone, error)
}

// RunRecorder appends a sync-run audit row. *syncer.Service satisfies it.
type RunRecorder interface {
	RecordRun(ctx context.Context, row syncer.SyncStatus) error
}

// Service owns the number directory: provider-driven sync plus manual
// administration.
type Service struct {
	repo    Repository
	fetcher InventoryFetcher
	runs    RunRecorder
	log     *slog.Logger
	clock   func() time.Time
}

func NewService(repo Repository, fetcher InventoryFetcher, runs RunRecorder, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		fetcher: fetcher,
		runs:    runs,
		log:     log,
		clock:   time.Now,
	}
}

// SyncDirectory refreshes the directory from the provider inventory.
//
// The whole snapshot lands in one transaction: every entry upserted with
// its capability flags and callback metadata, the provider's first entry
// marked primary with every other row explicitly non-primary, and
// provider-sourced rows that left the inventory deactivated (never
// deleted). Unlike the bulk call sync there is no per-record tolerance:
// any failure aborts and propagates, because a half-applied directory
// can flip the default caller id.
func (s *Service) SyncDirectory(ctx context.Context) error {
	phones, err := s.fetcher.FetchExoPhones(ctx)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("fetch inventory: %w", err))
	}

	now := s.clock().UTC()
	rows := make([]PhoneNumber, 0, len(phones))
	for _, p := range phones {
		name := p.FriendlyName
		if name == "" {
			name = p.PhoneNumber
		}
		rows = append(rows, PhoneNumber{
			ID:               uuid.NewString(),
			Sid:              p.Sid,
			Number:           p.PhoneNumber,
			FriendlyName:     name,
			IsActive:         true,
			VoiceEnabled:     p.VoiceEnabled,
			SMSEnabled:       p.SMSEnabled,
			RecordingEnabled: p.RecordingEnabled,
			NumberType:       p.NumberType,
			VoiceURL:         p.VoiceURL,
			SMSURL:           p.SMSURL,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	if len(rows) > 0 {
		if err := s.repo.ReplaceInventory(ctx, rows, rows[0].Number); err != nil {
			return s.fail(ctx, fmt.Errorf("apply inventory: %w", err))
		}
	}

	s.log.Info("directory sync finished", "numbers", len(rows))
	s.recordRun(ctx, syncer.SyncStatus{
		SyncType:      syncer.SyncTypeExoPhones,
		LastSyncTime:  now,
		Outcome:       syncer.SyncOutcomeSuccess,
		RecordsSynced: len(rows),
	})
	return nil
}

func (s *Service) fail(ctx context.Context, err error) error {
	s.log.Error("directory sync failed", "err", err)
	s.recordRun(ctx, syncer.SyncStatus{
		SyncType:     syncer.SyncTypeExoPhones,
		LastSyncTime: s.clock().UTC(),
		Outcome:      syncer.SyncOutcomeFailed,
		ErrorMessage: err.Error(),
	})
	return err
}

func (s *Service) recordRun(ctx context.Context, row syncer.SyncStatus) {
	if s.runs == nil {
		return
	}
	if err := s.runs.RecordRun(ctx, row); err != nil {
		s.log.Error("sync run record failed", "err", err)
	}
}

// Create adds a number manually, outside the provider inventory.
func (s *Service) Create(ctx context.Context, number, friendlyName, department string) (PhoneNumber, error) {
	if !e164.MatchString(number) {
		return PhoneNumber{}, fmt.Errorf("%w: number must be E.164", ErrInvalidArgument)
	}
	if _, err := s.repo.GetByNumber(ctx, number); err == nil {
		return PhoneNumber{}, ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return PhoneNumber{}, err
	}

	if friendlyName == "" {
		friendlyName = number
	}
	now := s.clock().UTC()
	row := PhoneNumber{
		ID:             uuid.NewString(),
		Number:         number,
		FriendlyName:   friendlyName,
		DepartmentName: department,
		IsActive:       true,
		VoiceEnabled:   true,
		SMSEnabled:     true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return PhoneNumber{}, err
	}
	return row, nil
}

func (s *Service) List(ctx context.Context) ([]PhoneNumber, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (PhoneNumber, error) {
	return s.repo.Get(ctx, id)
}

// Primary resolves the current default caller id.
func (s *Service) Primary(ctx context.Context) (PhoneNumber, error) {
	return s.repo.GetPrimary(ctx)
}

func (s *Service) SetPrimary(ctx context.Context, id string) error {
	return s.repo.SetPrimary(ctx, id)
}

// Modify applies an admin edit to friendly name, department or active
// flag. Clearing the friendly name is not allowed; the dashboard always
// has something to display.
func (s *Service) Modify(ctx context.Context, id string, upd Update) error {
	if upd.FriendlyName != nil && *upd.FriendlyName == "" {
		return fmt.Errorf("%w: friendly name required", ErrInvalidArgument)
	}
	if upd.FriendlyName == nil && upd.DepartmentName == nil && upd.IsActive == nil {
		return fmt.Errorf("%w: nothing to update", ErrInvalidArgument)
	}
	return s.repo.Apply(ctx, id, upd)
}

func (s *Service) Remove(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
