package callbacks

import "time"

// VoiceCallback is the local record for one provider call.
//
// Invariants:
// - Exactly one row per CallSid (unique key).
// - Later writes may only touch progression fields (status, end time,
//   duration, price, recording URL, answered-by); identity fields and
//   CreatedAt never change after first insert.
// - Rows are never deleted; ClearRecording nulls RecordingURL only.
type VoiceCallback struct {
	CallSid        string `json:"call_sid" db:"call_sid"`
	AccountSid     string `json:"account_sid,omitempty" db:"account_sid"`
	PhoneNumberSid string `json:"phone_number_sid,omitempty" db:"phone_number_sid"`

	Direction string `json:"direction,omitempty" db:"direction"`
	From      string `json:"from" db:"from_number"`
	To        string `json:"to" db:"to_number"`

	// Status is the provider's raw status string (queued, ringing,
	// in-progress, completed, busy, no-answer, failed).
	Status string `json:"status" db:"status"`

	StartTime *time.Time `json:"start_time,omitempty" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`

	// Duration is string-encoded seconds, nullable while in flight.
	Duration *string `json:"duration,omitempty" db:"duration"`

	RecordingURL *string `json:"recording_url,omitempty" db:"recording_url"`

	// AnsweredBy is the provider's human/machine classification. Unreliable.
	AnsweredBy string `json:"answered_by,omitempty" db:"answered_by"`

	Price string `json:"price,omitempty" db:"price"`

	// Source records which path created the row: webhook, api or bulk_sync.
	Source Source `json:"source" db:"source"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SmsCallback is the local record for one provider SMS.
// Same upsert-by-unique-key lifecycle as VoiceCallback.
type SmsCallback struct {
	SmsSid     string `json:"sms_sid" db:"sms_sid"`
	AccountSid string `json:"account_sid,omitempty" db:"account_sid"`

	To     string `json:"to" db:"to_number"`
	Status string `json:"status" db:"status"`

	DetailedStatus     string `json:"detailed_status,omitempty" db:"detailed_status"`
	DetailedStatusCode string `json:"detailed_status_code,omitempty" db:"detailed_status_code"`

	SmsUnits int    `json:"sms_units,omitempty" db:"sms_units"`
	DateSent string `json:"date_sent,omitempty" db:"date_sent"`

	Source Source `json:"source" db:"source"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Source tags which ingestion path first saw (or last touched) a record.
type Source string

const (
	SourceWebhook  Source = "webhook"
	SourceAPI      Source = "api"
	SourceBulkSync Source = "bulk_sync"
)
