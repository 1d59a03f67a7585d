package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"dotflow/internal/backend"
	"dotflow/internal/services"
)

// EventHandler handles HTTP requests related to client-side events.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get recent events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20)

	events, err := h.service.GetRecentEvents(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve events")
		http.Error(w, "Failed to retrieve events: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// LogsHandler proxies backend execution logs.
type LogsHandler struct {
	backend backend.API
	queue   QueueRefresher
}

// NewLogsHandler creates a new LogsHandler.
func NewLogsHandler(api backend.API, queue QueueRefresher) *LogsHandler {
	return &LogsHandler{backend: api, queue: queue}
}

// GetRecent fetches the recent execution logs. A failed execution showing
// up here means the queue item states changed too, so a queue re-read is
// scheduled alongside the response.
func (h *LogsHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)

	logs, err := h.backend.GetLogs(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to retrieve logs: "+err.Error(), http.StatusBadGateway)
		return
	}

	for _, entry := range logs {
		if !entry.Success {
			h.queue.RefreshDate(h.queue.Today())
			break
		}
	}
	writeJSON(w, http.StatusOK, logs)
}

func queryLimit(r *http.Request, fallback int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
