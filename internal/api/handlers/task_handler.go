package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dotflow/internal/models"
	"dotflow/internal/services"
)

// QueueRefresher is the slice of the queue synchronizer handlers need to
// trigger a re-read after state-changing calls.
type QueueRefresher interface {
	RefreshDate(date string)
	Today() string
}

// TaskHandler handles HTTP requests related to automation tasks.
type TaskHandler struct {
	tasks services.TaskServiceProvider
	queue QueueRefresher
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks services.TaskServiceProvider, queue QueueRefresher) *TaskHandler {
	return &TaskHandler{tasks: tasks, queue: queue}
}

// GetAll returns every task in priority order.
func (h *TaskHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tasks.List())
}

// Get returns a single task by its ID.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, ok := h.tasks.Get(id)
	if !ok {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Create validates the task locally and saves it upstream. Validation
// failures answer 400 without a backend round-trip.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var task models.AutomationTask
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	task.NormalizeScheduleFields(task.Mode())
	if err := task.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	saved, err := h.tasks.Create(r.Context(), task)
	if err != nil {
		http.Error(w, "Failed to create task: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.queue.RefreshDate(h.queue.Today())
	writeJSON(w, http.StatusCreated, saved)
}

// Update validates the task locally and saves it upstream.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var task models.AutomationTask
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	task.ID = id
	task.NormalizeScheduleFields(task.Mode())
	if err := task.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	saved, err := h.tasks.Update(r.Context(), task)
	if err != nil {
		http.Error(w, "Failed to update task: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.queue.RefreshDate(h.queue.Today())
	writeJSON(w, http.StatusOK, saved)
}

// Delete removes a task. The deletion is optimistic; a backend failure
// already triggered a state re-fetch by the time the error lands here.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.tasks.Delete(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete task: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.queue.RefreshDate(h.queue.Today())
	w.WriteHeader(http.StatusNoContent)
}

// Execute pushes one task to its devices immediately. The device credential
// travels in the request body and is never persisted.
func (h *TaskHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload struct {
		Credential string `json:"credential"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}

	if err := h.tasks.Execute(r.Context(), id, payload.Credential); err != nil {
		http.Error(w, "Failed to execute task: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.queue.RefreshDate(h.queue.Today())
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task executed"})
}

// NextRuns returns the next eligible run instant per task, computed now.
func (h *TaskHandler) NextRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.tasks.NextRuns(time.Now())
	out := make(map[string]string, len(runs))
	for id, at := range runs {
		out[id] = at.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
