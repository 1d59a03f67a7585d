package models

import "time"

// Planned item statuses as reported by the backend.
const (
	PlannedPending  = "pending"
	PlannedExecuted = "executed"
	PlannedSkipped  = "skipped"
)

// PlannedQueueItem is one materialized execution slot in a day's queue. The
// backend's generator guarantees that no two items on the same day overlap
// in time; this code relies on that but never enforces it.
type PlannedQueueItem struct {
	ID             string     `json:"id"`
	TaskID         string     `json:"task_id"`
	Date           string     `json:"date"` // YYYY-MM-DD bucket
	Position       int        `json:"position"`
	Status         string     `json:"status"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	ScheduledEndAt time.Time  `json:"scheduled_end_at"`
	DurationSec    int        `json:"duration_sec"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ExecutionLog is one entry of the backend's execution log stream.
type ExecutionLog struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id"`
	ExecutedAt   time.Time `json:"executed_at"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
}
