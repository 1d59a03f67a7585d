package services

import (
	"database/sql"

	"github.com/google/uuid"

	"dotflow/internal/models"
	"dotflow/internal/websocket"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(eventType, level, message string, taskID *string) error
	GetRecentEvents(limit int) ([]models.Event, error)
}

// EventService records transient notices locally and pushes them to any
// connected front-end. Backend call failures land here instead of rolling
// back optimistic state.
type EventService struct {
	db  *sql.DB
	hub *websocket.Hub
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, hub *websocket.Hub) *EventService {
	return &EventService{db: db, hub: hub}
}

// CreateEvent logs a new event and notifies the front-end.
func (s *EventService) CreateEvent(eventType, level, message string, taskID *string) error {
	event := models.Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Level:   level,
		Message: message,
		TaskID:  taskID,
	}

	_, err := s.db.Exec(
		"INSERT INTO events (id, type, level, message, task_id) VALUES (?, ?, ?, ?, ?)",
		event.ID, event.Type, event.Level, event.Message, event.TaskID)
	if err != nil {
		return err
	}

	if level == "error" || level == "warn" {
		s.hub.Notify(websocket.ActionError, event)
	}
	return nil
}

// GetRecentEvents retrieves the most recent events.
func (s *EventService) GetRecentEvents(limit int) ([]models.Event, error) {
	rows, err := s.db.Query(
		"SELECT id, type, level, message, task_id, created_at FROM events ORDER BY created_at DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.TaskID, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
