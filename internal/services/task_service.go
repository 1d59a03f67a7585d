package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"dotflow/internal/backend"
	"dotflow/internal/cache"
	"dotflow/internal/models"
	"dotflow/internal/schedule"
	"dotflow/internal/websocket"
)

// TaskServiceProvider defines the interface for task services.
type TaskServiceProvider interface {
	List() []models.AutomationTask
	Get(id string) (models.AutomationTask, bool)
	Create(ctx context.Context, task models.AutomationTask) (models.AutomationTask, error)
	Update(ctx context.Context, task models.AutomationTask) (models.AutomationTask, error)
	Delete(ctx context.Context, id string) error
	Execute(ctx context.Context, id, credential string) error

	Enabled() bool
	SetEnabled(ctx context.Context, enabled bool) error
	EnabledTaskIDs() map[string]bool
	AnyEnabled() bool

	NextRuns(now time.Time) map[string]time.Time
	Refresh(ctx context.Context) error
}

// TaskService keeps the client's view of the task set: seeded from the
// local cache at cold start, reconciled against the backend on every
// successful read, mutated optimistically on writes.
type TaskService struct {
	mu      sync.RWMutex
	tasks   map[string]models.AutomationTask
	enabled bool

	backend  backend.API
	store    *cache.Store
	ordering OrderingServiceProvider
	events   EventServiceProvider
	hub      *websocket.Hub
	loc      *time.Location
}

// NewTaskService creates a new TaskService.
func NewTaskService(api backend.API, store *cache.Store, ordering OrderingServiceProvider, events EventServiceProvider, hub *websocket.Hub, loc *time.Location) *TaskService {
	return &TaskService{
		tasks:    make(map[string]models.AutomationTask),
		backend:  api,
		store:    store,
		ordering: ordering,
		events:   events,
		hub:      hub,
		loc:      loc,
	}
}

// SeedFromCache loads the last-known snapshot so the first render does not
// wait for the backend.
func (s *TaskService) SeedFromCache() {
	tasks, ok, err := s.store.LoadTasks()
	if err != nil {
		log.Warn().Err(err).Msg("Task cache unreadable, starting cold")
	}
	if ok {
		s.mu.Lock()
		for _, t := range tasks {
			s.tasks[t.ID] = t
		}
		s.mu.Unlock()
		s.ordering.Recompute(tasks)
		log.Info().Int("tasks", len(tasks)).Msg("Seeded task list from cache")
	}
	if enabled, ok, err := s.store.LoadEnabled(); err == nil && ok {
		s.mu.Lock()
		s.enabled = enabled
		s.mu.Unlock()
	}
}

// Refresh pulls the authoritative task set and enabled flag from the
// backend, reconciling local state and the cache.
func (s *TaskService) Refresh(ctx context.Context) error {
	tasks, err := s.backend.GetTasks(ctx)
	if err != nil {
		return fmt.Errorf("fetch tasks: %w", err)
	}
	enabled, err := s.backend.GetEnabled(ctx)
	if err != nil {
		return fmt.Errorf("fetch enabled flag: %w", err)
	}

	s.mu.Lock()
	s.tasks = make(map[string]models.AutomationTask, len(tasks))
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	s.enabled = enabled
	s.mu.Unlock()

	if err := s.store.SaveTasks(tasks); err != nil {
		log.Warn().Err(err).Msg("Failed to persist task snapshot")
	}
	if err := s.store.SaveEnabled(enabled); err != nil {
		log.Warn().Err(err).Msg("Failed to persist enabled flag")
	}

	s.ordering.Recompute(tasks)
	s.hub.Notify(websocket.ActionTasksUpdated, len(tasks))
	return nil
}

// List returns all tasks in display order. Tasks the ordering has not seen
// yet come last.
func (s *TaskService) List() []models.AutomationTask {
	s.mu.RLock()
	byID := make(map[string]models.AutomationTask, len(s.tasks))
	for id, t := range s.tasks {
		byID[id] = t
	}
	s.mu.RUnlock()

	out := make([]models.AutomationTask, 0, len(byID))
	for _, id := range s.ordering.Snapshot() {
		if t, ok := byID[id]; ok {
			out = append(out, t)
			delete(byID, id)
		}
	}
	for _, t := range byID {
		out = append(out, t)
	}
	return out
}

// Get returns one task.
func (s *TaskService) Get(id string) (models.AutomationTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Create validates locally, then saves the task upstream. Validation
// failures never reach the backend.
func (s *TaskService) Create(ctx context.Context, task models.AutomationTask) (models.AutomationTask, error) {
	task.NormalizeScheduleFields(task.Mode())
	if err := task.Validate(); err != nil {
		return models.AutomationTask{}, err
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.DurationSec <= 0 {
		task.DurationSec = 5
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	saved, err := s.backend.AddTask(ctx, task)
	if err != nil {
		return models.AutomationTask{}, err
	}

	s.applyLocal(saved)
	return saved, nil
}

// Update validates locally, then saves the task upstream.
func (s *TaskService) Update(ctx context.Context, task models.AutomationTask) (models.AutomationTask, error) {
	task.NormalizeScheduleFields(task.Mode())
	if err := task.Validate(); err != nil {
		return models.AutomationTask{}, err
	}
	task.UpdatedAt = time.Now().UTC()

	saved, err := s.backend.UpdateTask(ctx, task)
	if err != nil {
		return models.AutomationTask{}, err
	}

	s.applyLocal(saved)
	return saved, nil
}

func (s *TaskService) applyLocal(task models.AutomationTask) {
	s.mu.Lock()
	s.tasks[task.ID] = task
	all := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.store.SaveTasks(all); err != nil {
		log.Warn().Err(err).Msg("Failed to persist task snapshot")
	}
	s.ordering.Recompute(all)
	s.hub.Notify(websocket.ActionTasksUpdated, len(all))
}

// Delete removes the task optimistically. On backend failure the local
// state self-heals by re-fetching the authoritative task set.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.tasks, id)
	all := s.snapshotLocked()
	s.mu.Unlock()
	s.ordering.Recompute(all)
	s.hub.Notify(websocket.ActionTasksUpdated, len(all))

	if err := s.backend.DeleteTask(ctx, id); err != nil {
		_ = s.events.CreateEvent("task.delete.fail", "error",
			"Failed to delete task, restoring backend state: "+err.Error(), &id)
		if rerr := s.Refresh(ctx); rerr != nil {
			log.Error().Err(rerr).Msg("Re-fetch after failed delete also failed")
		}
		return err
	}

	if err := s.store.SaveTasks(all); err != nil {
		log.Warn().Err(err).Msg("Failed to persist task snapshot")
	}
	return nil
}

// Execute pushes one task to its device immediately. The credential is
// passed through, never stored. Failures are recorded and reported; the
// caller refreshes the queue so skipped/failed items become visible.
func (s *TaskService) Execute(ctx context.Context, id, credential string) error {
	if _, ok := s.Get(id); !ok {
		return fmt.Errorf("unknown task %q", id)
	}
	if err := s.backend.ExecuteTask(ctx, id, credential); err != nil {
		_ = s.events.CreateEvent("task.execute.fail", "error",
			"Manual execution failed: "+err.Error(), &id)
		return err
	}
	_ = s.events.CreateEvent("task.execute", "info", "Task executed", &id)
	return nil
}

// Enabled reports the automation master switch.
func (s *TaskService) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetEnabled flips the master switch optimistically and syncs it upstream.
func (s *TaskService) SetEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	s.hub.Notify(websocket.ActionEnabledChanged, enabled)

	if err := s.backend.SetEnabled(ctx, enabled); err != nil {
		_ = s.events.CreateEvent("enabled.sync.fail", "error",
			"Failed to sync automation switch: "+err.Error(), nil)
		return err
	}
	if err := s.store.SaveEnabled(enabled); err != nil {
		log.Warn().Err(err).Msg("Failed to persist enabled flag")
	}
	return nil
}

// EnabledTaskIDs returns the set of currently enabled task ids.
func (s *TaskService) EnabledTaskIDs() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]bool)
	for id, t := range s.tasks {
		if t.Enabled {
			ids[id] = true
		}
	}
	return ids
}

// AnyEnabled reports whether at least one enabled task exists.
func (s *TaskService) AnyEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.Enabled {
			return true
		}
	}
	return false
}

// NextRuns evaluates every task's next eligible run instant for countdown
// display. Tasks that will never fire again are omitted.
func (s *TaskService) NextRuns(now time.Time) map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.tasks))
	for id, t := range s.tasks {
		t := t
		if next, ok := schedule.NextRun(&t, now, s.loc); ok {
			out[id] = next
		}
	}
	return out
}

func (s *TaskService) snapshotLocked() []models.AutomationTask {
	all := make([]models.AutomationTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		all = append(all, t)
	}
	return all
}
