package domain

import (
	"time"
)

// Event type constants for sync run events.
const (
	EventTypeSyncStarted   = "sync.started"
	EventTypeSyncProgress  = "sync.progress"
	EventTypeSyncCompleted = "sync.completed"
	EventTypeSyncCancelled = "sync.cancelled"
)

// ProgressEvent is emitted incrementally during a reconciliation run.
type ProgressEvent struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Label   string `json:"label"`
}

// CompletionEvent is the single terminal event of a reconciliation run,
// carrying the full outcome.
type CompletionEvent struct {
	Outcome   SyncOutcome   `json:"outcome"`
	Cancelled bool          `json:"cancelled"`
	Duration  time.Duration `json:"duration_ns"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
}
