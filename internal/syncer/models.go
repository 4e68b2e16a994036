package syncer

import "time"

type SyncType string

const (
	SyncTypeBulkCalls SyncType = "bulk_calls"
	SyncTypeExoPhones SyncType = "exophones"
)

type SyncOutcome string

const (
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomeFailed  SyncOutcome = "failed"
)

// SyncStatus is one append-only record of a reconciliation run.
//
// LastSyncTime is the window end of the run; the NEXT run's window starts
// at the most recent successful row's LastSyncTime, so a failed run never
// advances the watermark and its window is retried wholesale.
type SyncStatus struct {
	ID       string   `json:"id" db:"id"`
	SyncType SyncType `json:"sync_type" db:"sync_type"`

	LastSyncTime time.Time   `json:"last_sync_time" db:"last_sync_time"`
	Outcome      SyncOutcome `json:"outcome" db:"outcome"`

	RecordsSynced int    `json:"records_synced" db:"records_synced"`
	RecordsFailed int    `json:"records_failed" db:"records_failed"`
	ErrorMessage  string `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
