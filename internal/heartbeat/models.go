package heartbeat

import "time"

// HealthCheck is one append-only snapshot of provider-reported health.
//
// Invariants:
// - Rows are never updated or deleted.
// - One row per poll, success or failure: a failed poll is recorded as
//   StatusTypeError with the error message in RawPayload.
type HealthCheck struct {
	ID        string    `json:"id" db:"id"`
	CheckedAt time.Time `json:"checked_at" db:"checked_at"`

	StatusType StatusType `json:"status_type" db:"status_type"`

	IncomingAffected bool `json:"incoming_affected" db:"incoming_affected"`
	OutgoingAffected bool `json:"outgoing_affected" db:"outgoing_affected"`

	// RawPayload keeps the provider response (or the poll error) verbatim.
	RawPayload string `json:"raw_payload,omitempty" db:"raw_payload"`
}

type StatusType string

const (
	StatusTypeOK      StatusType = "OK"
	StatusTypeWarning StatusType = "WARNING"
	StatusTypeError   StatusType = "ERROR"
	StatusTypeUnknown StatusType = "UNKNOWN"
)

// classifyStatus maps the provider's raw status string to a StatusType.
func classifyStatus(raw string) StatusType {
	switch raw {
	case "OK", "ok":
		return StatusTypeOK
	case "WARNING", "warning":
		return StatusTypeWarning
	case "ERROR", "error":
		return StatusTypeError
	default:
		return StatusTypeUnknown
	}
}
