package heartbeat

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("heartbeat: not found")

// Repository is the append-only persistence contract for health snapshots.
type Repository interface {
	Append(ctx context.Context, row HealthCheck) error
	Latest(ctx context.Context) (HealthCheck, error)
	List(ctx context.Context, limit, offset int) ([]HealthCheck, error)

	// CountByWindow returns (okRows, totalRows) for checks inside [from, to).
	CountByWindow(ctx context.Context, from, to time.Time) (int, int, error)
}

// PostgresRepo stores health snapshots in Postgres.
//
// Assumed table: health_checks (PK id), indexed on checked_at.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, row HealthCheck) error {
	const q = `
INSERT INTO health_checks (
  id, checked_at, status_type, incoming_affected, outgoing_affected, raw_payload
) VALUES ($1,$2,$3,$4,$5,$6)
`
	_, err := r.db.ExecContext(ctx, q,
		row.ID,
		row.CheckedAt,
		row.StatusType,
		row.IncomingAffected,
		row.OutgoingAffected,
		row.RawPayload,
	)
	return err
}

func (r *PostgresRepo) Latest(ctx context.Context) (HealthCheck, error) {
	const q = `
SELECT id, checked_at, status_type, incoming_affected, outgoing_affected, raw_payload
FROM health_checks
ORDER BY checked_at DESC
LIMIT 1
`
	var row HealthCheck
	err := r.db.QueryRowContext(ctx, q).Scan(
		&row.ID,
		&row.CheckedAt,
		&row.StatusType,
		&row.IncomingAffected,
		&row.OutgoingAffected,
		&row.RawPayload,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return HealthCheck{}, ErrNotFound
		}
		return HealthCheck{}, err
	}
	return row, nil
}

func (r *PostgresRepo) List(ctx context.Context, limit, offset int) ([]HealthCheck, error) {
	const q = `
SELECT id, checked_at, status_type, incoming_affected, outgoing_affected, raw_payload
FROM health_checks
ORDER BY checked_at DESC
LIMIT $1 OFFSET $2
`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HealthCheck
	for rows.Next() {
		var row HealthCheck
		if err := rows.Scan(
			&row.ID,
			&row.CheckedAt,
			&row.StatusType,
			&row.IncomingAffected,
			&row.OutgoingAffected,
			&row.RawPayload,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CountByWindow(ctx context.Context, from, to time.Time) (int, int, error) {
	const q = `
SELECT
  COUNT(*) FILTER (WHERE status_type = 'OK'),
  COUNT(*)
FROM health_checks
WHERE checked_at >= $1 AND checked_at < $2
`
	var ok, total int
	if err := r.db.QueryRowContext(ctx, q, from, to).Scan(&ok, &total); err != nil {
		return 0, 0, err
	}
	return ok, total, nil
}
