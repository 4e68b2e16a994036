package callbacks

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("callbacks: not found")

// Repository is the persistence contract for callback records.
//
// Upserts MUST be atomic at the database level (single statement, unique
// key): concurrent first deliveries of the same sid race, and the races
// must collapse to one row. No read-then-write.
type Repository interface {
	UpsertVoice(ctx context.Context, row VoiceCallback) error
	UpsertSMS(ctx context.Context, row SmsCallback) error

	GetVoice(ctx context.Context, callSid string) (VoiceCallback, error)
	GetSMS(ctx context.Context, smsSid string) (SmsCallback, error)
	ListVoiceByWindow(ctx context.Context, from, to time.Time) ([]VoiceCallback, error)

	ClearRecordingURL(ctx context.Context, callSid string) error
}

// PostgresRepo stores callback records in Postgres.
//
// Assumed tables: voice_callbacks (PK call_sid), sms_callbacks (PK sms_sid).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// UpsertVoice inserts or merges one voice record.
//
// On conflict only progression fields move forward: a later partial
// delivery never blanks a field an earlier delivery filled, and a later
// complete delivery wins. Identity fields and created_at are untouched.
func (r *PostgresRepo) UpsertVoice(ctx context.Context, row VoiceCallback) error {
	const q = `
INSERT INTO voice_callbacks (
  call_sid, account_sid, phone_number_sid, direction, from_number, to_number,
  status, start_time, end_time, duration, recording_url, answered_by, price,
  source, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
ON CONFLICT (call_sid) DO UPDATE SET
  status        = COALESCE(NULLIF(EXCLUDED.status, ''), voice_callbacks.status),
  start_time    = COALESCE(voice_callbacks.start_time, EXCLUDED.start_time),
  end_time      = COALESCE(EXCLUDED.end_time, voice_callbacks.end_time),
  duration      = COALESCE(EXCLUDED.duration, voice_callbacks.duration),
  recording_url = COALESCE(EXCLUDED.recording_url, voice_callbacks.recording_url),
  answered_by   = COALESCE(NULLIF(EXCLUDED.answered_by, ''), voice_callbacks.answered_by),
  price         = COALESCE(NULLIF(EXCLUDED.price, ''), voice_callbacks.price),
  updated_at    = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		row.CallSid,
		row.AccountSid,
		row.PhoneNumberSid,
		row.Direction,
		row.From,
		row.To,
		row.Status,
		row.StartTime,
		row.EndTime,
		row.Duration,
		row.RecordingURL,
		row.AnsweredBy,
		row.Price,
		row.Source,
		row.CreatedAt,
		row.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) UpsertSMS(ctx context.Context, row SmsCallback) error {
	const q = `
INSERT INTO sms_callbacks (
  sms_sid, account_sid, to_number, status, detailed_status,
  detailed_status_code, sms_units, date_sent, source, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (sms_sid) DO UPDATE SET
  status               = COALESCE(NULLIF(EXCLUDED.status, ''), sms_callbacks.status),
  detailed_status      = COALESCE(NULLIF(EXCLUDED.detailed_status, ''), sms_callbacks.detailed_status),
  detailed_status_code = COALESCE(NULLIF(EXCLUDED.detailed_status_code, ''), sms_callbacks.detailed_status_code),
  sms_units            = GREATEST(EXCLUDED.sms_units, sms_callbacks.sms_units),
  date_sent            = COALESCE(NULLIF(EXCLUDED.date_sent, ''), sms_callbacks.date_sent),
  updated_at           = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		row.SmsSid,
		row.AccountSid,
		row.To,
		row.Status,
		row.DetailedStatus,
		row.DetailedStatusCode,
		row.SmsUnits,
		row.DateSent,
		row.Source,
		row.CreatedAt,
		row.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) GetVoice(ctx context.Context, callSid string) (VoiceCallback, error) {
	const q = `
SELECT call_sid, account_sid, phone_number_sid, direction, from_number, to_number,
       status, start_time, end_time, duration, recording_url, answered_by, price,
       source, created_at, updated_at
FROM voice_callbacks
WHERE call_sid = $1
`
	var row VoiceCallback
	err := r.db.QueryRowContext(ctx, q, callSid).Scan(
		&row.CallSid,
		&row.AccountSid,
		&row.PhoneNumberSid,
		&row.Direction,
		&row.From,
		&row.To,
		&row.Status,
		&row.StartTime,
		&row.EndTime,
		&row.Duration,
		&row.RecordingURL,
		&row.AnsweredBy,
		&row.Price,
		&row.Source,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VoiceCallback{}, ErrNotFound
		}
		return VoiceCallback{}, err
	}
	return row, nil
}

func (r *PostgresRepo) GetSMS(ctx context.Context, smsSid string) (SmsCallback, error) {
	const q = `
SELECT sms_sid, account_sid, to_number, status, detailed_status,
       detailed_status_code, sms_units, date_sent, source, created_at, updated_at
FROM sms_callbacks
WHERE sms_sid = $1
`
	var row SmsCallback
	err := r.db.QueryRowContext(ctx, q, smsSid).Scan(
		&row.SmsSid,
		&row.AccountSid,
		&row.To,
		&row.Status,
		&row.DetailedStatus,
		&row.DetailedStatusCode,
		&row.SmsUnits,
		&row.DateSent,
		&row.Source,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SmsCallback{}, ErrNotFound
		}
		return SmsCallback{}, err
	}
	return row, nil
}

func (r *PostgresRepo) ListVoiceByWindow(ctx context.Context, from, to time.Time) ([]VoiceCallback, error) {
	const q = `
SELECT call_sid, account_sid, phone_number_sid, direction, from_number, to_number,
       status, start_time, end_time, duration, recording_url, answered_by, price,
       source, created_at, updated_at
FROM voice_callbacks
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VoiceCallback
	for rows.Next() {
		var row VoiceCallback
		if err := rows.Scan(
			&row.CallSid,
			&row.AccountSid,
			&row.PhoneNumberSid,
			&row.Direction,
			&row.From,
			&row.To,
			&row.Status,
			&row.StartTime,
			&row.EndTime,
			&row.Duration,
			&row.RecordingURL,
			&row.AnsweredBy,
			&row.Price,
			&row.Source,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ClearRecordingURL nulls the recording reference only; the row itself is
// never deleted.
func (r *PostgresRepo) ClearRecordingURL(ctx context.Context, callSid string) error {
	const q = `UPDATE voice_callbacks SET recording_url = NULL, updated_at = now() WHERE call_sid = $1`
	res, err := r.db.ExecContext(ctx, q, callSid)
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
