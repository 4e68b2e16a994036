package syncer

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("syncer: not found")

// Repository is the append-only persistence contract for sync runs.
type Repository interface {
	Append(ctx context.Context, row SyncStatus) error

	// LastSuccessful returns the newest success row for a sync type.
	LastSuccessful(ctx context.Context, st SyncType) (SyncStatus, error)

	List(ctx context.Context, st SyncType, limit int) ([]SyncStatus, error)
}

// PostgresRepo stores sync runs in Postgres.
//
// Assumed table: sync_statuses (PK id), indexed on (sync_type, created_at).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, row SyncStatus) error {
	const q = `
INSERT INTO sync_statuses (
  id, sync_type, last_sync_time, outcome, records_synced, records_failed,
  error_message, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := r.db.ExecContext(ctx, q,
		row.ID,
		row.SyncType,
		row.LastSyncTime,
		row.Outcome,
		row.RecordsSynced,
		row.RecordsFailed,
		row.ErrorMessage,
		row.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) LastSuccessful(ctx context.Context, st SyncType) (SyncStatus, error) {
	const q = `
SELECT id, sync_type, last_sync_time, outcome, records_synced, records_failed,
       error_message, created_at
FROM sync_statuses
WHERE sync_type = $1 AND outcome = 'success'
ORDER BY created_at DESC
LIMIT 1
`
	return r.scanOne(r.db.QueryRowContext(ctx, q, st))
}

func (r *PostgresRepo) List(ctx context.Context, st SyncType, limit int) ([]SyncStatus, error) {
	const q = `
SELECT id, sync_type, last_sync_time, outcome, records_synced, records_failed,
       error_message, created_at
FROM sync_statuses
WHERE sync_type = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, st, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncStatus
	for rows.Next() {
		var row SyncStatus
		if err := rows.Scan(
			&row.ID,
			&row.SyncType,
			&row.LastSyncTime,
			&row.Outcome,
			&row.RecordsSynced,
			&row.RecordsFailed,
			&row.ErrorMessage,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) scanOne(qr *sql.Row) (SyncStatus, error) {
	var row SyncStatus
	err := qr.Scan(
		&row.ID,
		&row.SyncType,
		&row.LastSyncTime,
		&row.Outcome,
		&row.RecordsSynced,
		&row.RecordsFailed,
		&row.ErrorMessage,
		&row.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SyncStatus{}, ErrNotFound
		}
		return SyncStatus{}, err
	}
	return row, nil
}
