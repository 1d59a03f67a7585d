package handlers

import (
	"encoding/json"
	"net/http"

	"dotflow/internal/services"
)

// OrderingHandler exposes the priority ordering.
type OrderingHandler struct {
	ordering services.OrderingServiceProvider
}

// NewOrderingHandler creates a new OrderingHandler.
func NewOrderingHandler(ordering services.OrderingServiceProvider) *OrderingHandler {
	return &OrderingHandler{ordering: ordering}
}

// Get returns the current total order as task IDs, highest priority first.
func (h *OrderingHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"order": h.ordering.Snapshot()})
}

// Move swaps a task with its neighbor. Boundary moves are no-ops, not
// errors; the response says whether anything changed.
func (h *OrderingHandler) Move(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID        string `json:"id"`
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Direction != services.MoveUp && payload.Direction != services.MoveDown {
		http.Error(w, "Direction must be 'up' or 'down'", http.StatusBadRequest)
		return
	}

	moved := h.ordering.Move(payload.ID, payload.Direction)
	writeJSON(w, http.StatusOK, map[string]any{
		"moved": moved,
		"order": h.ordering.Snapshot(),
	})
}
