package numbers

import (
	"context"
	"database/sql"
	"errors"

	"callcenter-platform/pkg/utils"
)

var (
	ErrNotFound  = errors.New("numbers: not found")
	ErrDuplicate = errors.New("numbers: number already exists")
)

// Repository is the persistence contract for the number directory.
type Repository interface {
	// Upsert inserts by number or refreshes the existing row's
	// provider-sourced fields. The primary flag and department name are
	// NOT touched on update; SetPrimary and Apply own those.
	Upsert(ctx context.Context, row PhoneNumber) error

	// ReplaceInventory applies one provider inventory snapshot in a
	// single transaction: upserts every row, marks primaryNumber primary
	// (clearing the flag everywhere else), and deactivates
	// provider-sourced rows absent from the snapshot. Manually created
	// rows (empty Sid) are left alone.
	ReplaceInventory(ctx context.Context, rows []PhoneNumber, primaryNumber string) error

	Get(ctx context.Context, id string) (PhoneNumber, error)
	GetByNumber(ctx context.Context, number string) (PhoneNumber, error)
	GetPrimary(ctx context.Context) (PhoneNumber, error)
	List(ctx context.Context) ([]PhoneNumber, error)

	// SetPrimary marks one number primary and clears the flag everywhere
	// else, atomically.
	SetPrimary(ctx context.Context, id string) error

	// Apply patches the admin-editable fields; nil Update fields keep
	// their current value.
	Apply(ctx context.Context, id string, upd Update) error

	Delete(ctx context.Context, id string) error
}

// PostgresRepo stores the directory in Postgres.
//
// Assumed table: phone_numbers (PK id, UNIQUE number), partial unique
// index on is_primary WHERE is_primary.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const numberColumns = `
id, sid, number, friendly_name, department_name, is_primary, is_active,
voice_enabled, sms_enabled, recording_enabled, number_type, voice_url, sms_url,
created_at, updated_at
`

const upsertNumberQuery = `
INSERT INTO phone_numbers (
  id, sid, number, friendly_name, department_name, is_primary, is_active,
  voice_enabled, sms_enabled, recording_enabled, number_type, voice_url, sms_url,
  created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (number) DO UPDATE SET
  sid               = COALESCE(NULLIF(EXCLUDED.sid, ''), phone_numbers.sid),
  friendly_name     = COALESCE(NULLIF(EXCLUDED.friendly_name, ''), phone_numbers.friendly_name),
  is_active         = EXCLUDED.is_active,
  voice_enabled     = EXCLUDED.voice_enabled,
  sms_enabled       = EXCLUDED.sms_enabled,
  recording_enabled = EXCLUDED.recording_enabled,
  number_type       = COALESCE(NULLIF(EXCLUDED.number_type, ''), phone_numbers.number_type),
  voice_url         = EXCLUDED.voice_url,
  sms_url           = EXCLUDED.sms_url,
  updated_at        = EXCLUDED.updated_at
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertNumber(ctx context.Context, ex execer, row PhoneNumber) error {
	_, err := ex.ExecContext(ctx, upsertNumberQuery,
		row.ID,
		row.Sid,
		row.Number,
		row.FriendlyName,
		row.DepartmentName,
		row.IsPrimary,
		row.IsActive,
		row.VoiceEnabled,
		row.SMSEnabled,
		row.RecordingEnabled,
		row.NumberType,
		row.VoiceURL,
		row.SMSURL,
		row.CreatedAt,
		row.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Upsert(ctx context.Context, row PhoneNumber) error {
	return upsertNumber(ctx, r.db, row)
}

func (r *PostgresRepo) ReplaceInventory(ctx context.Context, rows []PhoneNumber, primaryNumber string) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		seen := make([]string, 0, len(rows))
		for _, row := range rows {
			if err := upsertNumber(ctx, tx, row); err != nil {
				return err
			}
			seen = append(seen, row.Number)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE phone_numbers SET is_active = FALSE, updated_at = now()
			 WHERE sid <> '' AND is_active AND NOT (number = ANY($1))`, seen); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE phone_numbers SET is_primary = FALSE, updated_at = now()
			 WHERE is_primary AND number <> $1`, primaryNumber); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE phone_numbers SET is_primary = TRUE, updated_at = now()
			 WHERE number = $1`, primaryNumber)
		return err
	})
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (PhoneNumber, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+numberColumns+` FROM phone_numbers WHERE id = $1`, id))
}

func (r *PostgresRepo) GetByNumber(ctx context.Context, number string) (PhoneNumber, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+numberColumns+` FROM phone_numbers WHERE number = $1`, number))
}

func (r *PostgresRepo) GetPrimary(ctx context.Context) (PhoneNumber, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+numberColumns+` FROM phone_numbers WHERE is_primary LIMIT 1`))
}

func (r *PostgresRepo) List(ctx context.Context) ([]PhoneNumber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+numberColumns+` FROM phone_numbers ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PhoneNumber
	for rows.Next() {
		var row PhoneNumber
		if err := rows.Scan(
			&row.ID,
			&row.Sid,
			&row.Number,
			&row.FriendlyName,
			&row.DepartmentName,
			&row.IsPrimary,
			&row.IsActive,
			&row.VoiceEnabled,
			&row.SMSEnabled,
			&row.RecordingEnabled,
			&row.NumberType,
			&row.VoiceURL,
			&row.SMSURL,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) SetPrimary(ctx context.Context, id string) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE phone_numbers SET is_primary = FALSE, updated_at = now() WHERE is_primary`); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE phone_numbers SET is_primary = TRUE, updated_at = now() WHERE id = $1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *PostgresRepo) Apply(ctx context.Context, id string, upd Update) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE phone_numbers SET
		   friendly_name   = COALESCE($2, friendly_name),
		   department_name = COALESCE($3, department_name),
		   is_active       = COALESCE($4, is_active),
		   updated_at      = now()
		 WHERE id = $1`,
		id, upd.FriendlyName, upd.DepartmentName, upd.IsActive)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM phone_numbers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) scanOne(qr *sql.Row) (PhoneNumber, error) {
	var row PhoneNumber
	err := qr.Scan(
		&row.ID,
		&row.Sid,
		&row.Number,
		&row.FriendlyName,
		&row.DepartmentName,
		&row.IsPrimary,
		&row.IsActive,
		&row.VoiceEnabled,
		&row.SMSEnabled,
		&row.RecordingEnabled,
		&row.NumberType,
		&row.VoiceURL,
		&row.SMSURL,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PhoneNumber{}, ErrNotFound
		}
		return PhoneNumber{}, err
	}
	return row, nil
}
