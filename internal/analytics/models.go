package analytics

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SummaryRequest requests aggregated call metrics.
//
// Numbers scopes the aggregation to calls touching any of the listed
// phone numbers. nil means unscoped; the HTTP layer only leaves it nil
// for admins. A non-nil empty set matches nothing.
type SummaryRequest struct {
	Range   TimeRange `json:"range"`
	Numbers []string  `json:"numbers,omitempty"`
}

type CallSummary struct {
	TotalCalls      int `json:"total_calls"`
	CompletedCalls  int `json:"completed_calls"`
	MissedCalls     int `json:"missed_calls"`
	FailedCalls     int `json:"failed_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	InboundCalls  int `json:"inbound_calls"`
	OutboundCalls int `json:"outbound_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`
}

type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeMissed     Outcome = "missed"
	OutcomeFailed     Outcome = "failed"
	OutcomeInProgress Outcome = "in_progress"
	OutcomeOther      Outcome = "other"
)

// ClassifyStatus buckets a raw provider status for dashboard rollups.
// The provider's vocabulary is wider than the dashboard needs: busy,
// no-answer and canceled all read as a missed call.
func ClassifyStatus(raw string) Outcome {
	switch raw {
	case "completed":
		return OutcomeCompleted
	case "busy", "no-answer", "canceled":
		return OutcomeMissed
	case "failed":
		return OutcomeFailed
	case "in-progress", "ringing", "queued":
		return OutcomeInProgress
	default:
		return OutcomeOther
	}
}
