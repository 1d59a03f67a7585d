package handlers

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"dotflow/internal/models"
	"dotflow/internal/services"
	"dotflow/internal/timeline"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// QueueProvider is the synchronizer surface the queue endpoints consume.
type QueueProvider interface {
	ItemsForDate(date string) []models.PlannedQueueItem
	RefreshDate(date string)
	Clear(ctx context.Context, date string) error
	Today() string
}

// QueueHandler exposes the materialized execution queue and its timeline
// projection.
type QueueHandler struct {
	queue    QueueProvider
	ordering services.OrderingServiceProvider
	loc      *time.Location
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queue QueueProvider, ordering services.OrderingServiceProvider, loc *time.Location) *QueueHandler {
	return &QueueHandler{queue: queue, ordering: ordering, loc: loc}
}

// Get returns the cached queue for a date.
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	date, ok := h.date(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"items": h.queue.ItemsForDate(date),
	})
}

// Refresh forces a re-read of one date from the backend.
func (h *QueueHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	date, ok := h.date(w, r)
	if !ok {
		return
	}
	h.queue.RefreshDate(date)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Refresh scheduled"})
}

// Clear drops a date's queue on the backend and locally.
func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	date, ok := h.date(w, r)
	if !ok {
		return
	}
	if err := h.queue.Clear(r.Context(), date); err != nil {
		http.Error(w, "Failed to clear queue: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Timeline projects a date's queue into agenda boxes plus the past/future
// table split for the requested zoom level.
func (h *QueueHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	date, ok := h.date(w, r)
	if !ok {
		return
	}

	hourHeight := timeline.ZoomLevels[0]
	if raw := r.URL.Query().Get("hour_height"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid hour_height", http.StatusBadRequest)
			return
		}
		hourHeight = timeline.SnapZoom(v)
	}

	items := h.queue.ItemsForDate(date)
	now := time.Now().In(h.loc)
	rank := func(taskID string) int {
		if r, ok := h.ordering.Rank(taskID); ok {
			return r
		}
		return len(items)
	}
	past, future := timeline.Split(items, now)

	writeJSON(w, http.StatusOK, map[string]any{
		"date":   date,
		"boxes":  timeline.Stack(items, rank, hourHeight, h.loc),
		"ticks":  timeline.TicksFor(hourHeight),
		"now_y":  timeline.YForTime(now, hourHeight, h.loc),
		"past":   past,
		"future": future,
	})
}

func (h *QueueHandler) date(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := chi.URLParam(r, "date")
	if date == "today" {
		return h.queue.Today(), true
	}
	if !datePattern.MatchString(date) {
		http.Error(w, "Date must be YYYY-MM-DD", http.StatusBadRequest)
		return "", false
	}
	return date, true
}
