package numbers

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"callcenter-platform/internal/exotel"
	"callcenter-platform/internal/syncer"
)

type stubInventory struct {
	phones []exotel.ExoPhone
	err    error
}

func (f stubInventory) FetchExoPhones(ctx context.Context) ([]exotel.ExoPhone, error) {
	return f.phones, f.err
}

type runCapture struct {
	rows []syncer.SyncStatus
}

func (r *runCapture) RecordRun(ctx context.Context, row syncer.SyncStatus) error {
	r.rows = append(r.rows, row)
	return nil
}

func TestSyncDirectory_FirstEntryBecomesPrimary(t *testing.T) {
	repo := NewMemoryRepo()
	runs := &runCapture{}
	svc := NewService(repo, stubInventory{phones: []exotel.ExoPhone{
		{Sid: "XP1", PhoneNumber: "+911111111111", FriendlyName: "Support", VoiceEnabled: true},
		{Sid: "XP2", PhoneNumber: "+912222222222", FriendlyName: "Sales", SMSEnabled: true},
	}}, runs, slog.Default())

	if err := svc.SyncDirectory(context.Background()); err != nil {
		t.Fatalf("SyncDirectory: %v", err)
	}

	primary, err := repo.GetPrimary(context.Background())
	if err != nil {
		t.Fatalf("GetPrimary: %v", err)
	}
	if primary.Number != "+911111111111" {
		t.Fatalf("expected first inventory entry primary, got %s", primary.Number)
	}

	all, _ := repo.List(context.Background())
	if len(all) != 2 {
		t.Fatalf("expected 2 numbers, got %d", len(all))
	}
	for _, n := range all {
		if n.Number != primary.Number && n.IsPrimary {
			t.Fatalf("only one primary allowed: %+v", n)
		}
		if !n.IsActive {
			t.Fatalf("synced numbers must be active: %+v", n)
		}
	}

	if len(runs.rows) != 1 || runs.rows[0].Outcome != syncer.SyncOutcomeSuccess || runs.rows[0].RecordsSynced != 2 {
		t.Fatalf("unexpected run record: %+v", runs.rows)
	}
}

func TestSyncDirectory_CarriesProviderMetadata(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, stubInventory{phones: []exotel.ExoPhone{{
		Sid:          "XP1",
		PhoneNumber:  "+911111111111",
		FriendlyName: "Support",
		NumberType:   "Landline",
		VoiceEnabled: true,
		VoiceURL:     "https://my.exotel.com/exoml/start_voice/123",
		SMSURL:       "https://my.exotel.com/exoml/start_sms/123",
	}}}, nil, slog.Default())

	if err := svc.SyncDirectory(context.Background()); err != nil {
		t.Fatalf("SyncDirectory: %v", err)
	}
	row, err := repo.GetByNumber(context.Background(), "+911111111111")
	if err != nil {
		t.Fatalf("GetByNumber: %v", err)
	}
	if row.NumberType != "Landline" {
		t.Fatalf("number type dropped: %+v", row)
	}
	if row.VoiceURL != "https://my.exotel.com/exoml/start_voice/123" || row.SMSURL != "https://my.exotel.com/exoml/start_sms/123" {
		t.Fatalf("callback urls dropped: %+v", row)
	}
}

func TestSyncDirectory_PrimaryFollowsInventoryOrder(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, stubInventory{phones: []exotel.ExoPhone{
		{Sid: "XP1", PhoneNumber: "+911111111111"},
		{Sid: "XP2", PhoneNumber: "+912222222222"},
	}}, nil, slog.Default())

	if err := svc.SyncDirectory(context.Background()); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// Provider reorders; re-sync moves the primary with it.
	svc.fetcher = stubInventory{phones: []exotel.ExoPhone{
		{Sid: "XP2", PhoneNumber: "+912222222222"},
		{Sid: "XP1", PhoneNumber: "+911111111111"},
	}}
	if err := svc.SyncDirectory(context.Background()); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	primary, _ := repo.GetPrimary(context.Background())
	if primary.Number != "+912222222222" {
		t.Fatalf("expected new first entry primary, got %s", primary.Number)
	}
	all, _ := repo.List(context.Background())
	if len(all) != 2 {
		t.Fatalf("re-sync must upsert, not duplicate: got %d rows", len(all))
	}
}

func TestSyncDirectory_DeactivatesDroppedProviderNumbers(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, stubInventory{phones: []exotel.ExoPhone{
		{Sid: "XP1", PhoneNumber: "+911111111111"},
		{Sid: "XP2", PhoneNumber: "+912222222222"},
	}}, nil, slog.Default())

	if err := svc.SyncDirectory(context.Background()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	// A manually added number sits outside the provider inventory.
	if _, err := svc.Create(context.Background(), "+913333333333", "Manual", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The second number leaves the account.
	svc.fetcher = stubInventory{phones: []exotel.ExoPhone{
		{Sid: "XP1", PhoneNumber: "+911111111111"},
	}}
	if err := svc.SyncDirectory(context.Background()); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	dropped, err := repo.GetByNumber(context.Background(), "+912222222222")
	if err != nil {
		t.Fatalf("dropped number must stay in the directory: %v", err)
	}
	if dropped.IsActive {
		t.Fatalf("dropped provider number must be deactivated: %+v", dropped)
	}
	manual, _ := repo.GetByNumber(context.Background(), "+913333333333")
	if !manual.IsActive {
		t.Fatalf("manual number must survive sync untouched: %+v", manual)
	}
}

func TestSyncDirectory_KeepsDepartmentAssignment(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, stubInventory{phones: []exotel.ExoPhone{
		{Sid: "XP1", PhoneNumber: "+911111111111", FriendlyName: "Support"},
	}}, nil, slog.Default())

	if err := svc.SyncDirectory(context.Background()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	row, _ := repo.GetByNumber(context.Background(), "+911111111111")
	dept := "Customer Care"
	if err := svc.Modify(context.Background(), row.ID, Update{DepartmentName: &dept}); err != nil {
		t.Fatalf("Modify: %v", err)
	}

	if err := svc.SyncDirectory(context.Background()); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	row, _ = repo.GetByNumber(context.Background(), "+911111111111")
	if row.DepartmentName != "Customer Care" {
		t.Fatalf("sync must not overwrite local department, got %q", row.DepartmentName)
	}
}

func TestSyncDirectory_FriendlyNameFallsBackToNumber(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, stubInventory{phones: []exotel.ExoPhone{
		{PhoneNumber: "+911111111111"},
	}}, nil, slog.Default())

	if err := svc.SyncDirectory(context.Background()); err != nil {
		t.Fatalf("SyncDirectory: %v", err)
	}
	row, _ := repo.GetByNumber(context.Background(), "+911111111111")
	if row.FriendlyName != "+911111111111" {
		t.Fatalf("expected number as fallback name, got %q", row.FriendlyName)
	}
}

func TestSyncDirectory_FetchFailurePropagates(t *testing.T) {
	repo := NewMemoryRepo()
	runs := &runCapture{}
	svc := NewService(repo, stubInventory{err: errors.New("502 bad gateway")}, runs, slog.Default())

	if err := svc.SyncDirectory(context.Background()); err == nil {
		t.Fatalf("expected total failure to propagate")
	}
	if len(runs.rows) != 1 || runs.rows[0].Outcome != syncer.SyncOutcomeFailed {
		t.Fatalf("expected failed run record, got %+v", runs.rows)
	}
}

func TestSetPrimary_UnsetsOthers(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, stubInventory{}, nil, slog.Default())

	a, err := svc.Create(context.Background(), "+911111111111", "A", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := svc.Create(context.Background(), "+912222222222", "B", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.SetPrimary(context.Background(), a.ID); err != nil {
		t.Fatalf("SetPrimary a: %v", err)
	}
	if err := svc.SetPrimary(context.Background(), b.ID); err != nil {
		t.Fatalf("SetPrimary b: %v", err)
	}

	got, err := svc.Primary(context.Background())
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	if got.ID != b.ID {
		t.Fatalf("expected b primary, got %+v", got)
	}
	aRow, _ := svc.Get(context.Background(), a.ID)
	if aRow.IsPrimary {
		t.Fatalf("previous primary must be unset")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(NewMemoryRepo(), stubInventory{}, nil, slog.Default())

	if _, err := svc.Create(context.Background(), "not-a-number", "X", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	if _, err := svc.Create(context.Background(), "+911111111111", "X", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(context.Background(), "+911111111111", "Y", ""); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestModify_Validation(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, stubInventory{}, nil, slog.Default())

	row, err := svc.Create(context.Background(), "+911111111111", "X", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	empty := ""
	if err := svc.Modify(context.Background(), row.ID, Update{FriendlyName: &empty}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty name, got %v", err)
	}
	if err := svc.Modify(context.Background(), row.ID, Update{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty patch, got %v", err)
	}

	inactive := false
	if err := svc.Modify(context.Background(), row.ID, Update{IsActive: &inactive}); err != nil {
		t.Fatalf("Modify: %v", err)
	}
	got, _ := svc.Get(context.Background(), row.ID)
	if got.IsActive {
		t.Fatalf("expected deactivated row, got %+v", got)
	}
}
