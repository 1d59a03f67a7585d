package models

import "time"

// Event represents a loggable action or alert in the system. Backend call
// failures surface here as transient notices rather than rolled-back state.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g. "ordering.sync.fail", "queue.generated"
	Level     string    `json:"level"` // "info", "warn", "error"
	Message   string    `json:"message"`
	TaskID    *string   `json:"task_id,omitempty"` // nullable for system-wide events
	CreatedAt time.Time `json:"created_at"`
}
