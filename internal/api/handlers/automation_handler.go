package handlers

import (
	"encoding/json"
	"net/http"

	"dotflow/internal/services"
)

// AutomationHandler exposes the automation master switch.
type AutomationHandler struct {
	tasks services.TaskServiceProvider
}

// NewAutomationHandler creates a new AutomationHandler.
func NewAutomationHandler(tasks services.TaskServiceProvider) *AutomationHandler {
	return &AutomationHandler{tasks: tasks}
}

// GetEnabled returns the current switch state.
func (h *AutomationHandler) GetEnabled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": h.tasks.Enabled()})
}

// SetEnabled flips the switch and syncs it upstream.
func (h *AutomationHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.tasks.SetEnabled(r.Context(), payload.Enabled); err != nil {
		http.Error(w, "Failed to update automation switch: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": payload.Enabled})
}
