package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"dotflow/internal/backend"
	"dotflow/internal/models"
	"dotflow/internal/websocket"
)

// Move directions accepted by the ordering service.
const (
	MoveUp   = "up"
	MoveDown = "down"
)

// OrderingServiceProvider defines the interface for the ordering service.
type OrderingServiceProvider interface {
	Recompute(tasks []models.AutomationTask)
	Move(id, direction string) bool
	Snapshot() []string
	Rank(id string) (int, bool)
}

// OrderingService owns the single total order over task ids. The same order
// is the display rank, the up/down control target and the priority signal
// sent upstream. One in-process writer; sync to the backend is asynchronous
// and never rolled back on failure.
type OrderingService struct {
	mu    sync.RWMutex
	order []string

	backend backend.API
	events  EventServiceProvider
	hub     *websocket.Hub
}

// NewOrderingService creates a new OrderingService.
func NewOrderingService(api backend.API, events EventServiceProvider, hub *websocket.Hub) *OrderingService {
	return &OrderingService{backend: api, events: events, hub: hub}
}

// Recompute rebuilds the order from an authoritative task set: enabled tasks
// before disabled ones, then known priority ascending with missing priority
// last, then name, then id. Deterministic for identical inputs.
func (s *OrderingService) Recompute(tasks []models.AutomationTask) {
	sorted := make([]models.AutomationTask, len(tasks))
	copy(sorted, tasks)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Enabled != b.Enabled {
			return a.Enabled
		}
		ap, aed := priorityKey(a)
		bp, bed := priorityKey(b)
		if aed != bed {
			return !aed // tasks with a known priority sort first
		}
		if ap != bp {
			return ap < bp
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})

	ids := make([]string, len(sorted))
	for i, t := range sorted {
		ids[i] = t.ID
	}

	s.mu.Lock()
	s.order = ids
	s.mu.Unlock()

	s.hub.Notify(websocket.ActionOrderingUpdated, ids)
}

func priorityKey(t models.AutomationTask) (val int, missing bool) {
	if t.Priority == nil {
		return 0, true
	}
	return *t.Priority, false
}

// Move swaps the task with its immediate neighbor. A move past either
// boundary is a no-op, not an error; the return value reports whether the
// order changed. After a successful swap the whole ordered list is synced
// upstream so no task outside the moved pair can carry a stale priority.
func (s *OrderingService) Move(id, direction string) bool {
	s.mu.Lock()
	idx := -1
	for i, tid := range s.order {
		if tid == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	swap := idx - 1
	if direction == MoveDown {
		swap = idx + 1
	}
	if swap < 0 || swap >= len(s.order) {
		s.mu.Unlock()
		return false
	}
	s.order[idx], s.order[swap] = s.order[swap], s.order[idx]
	snapshot := append([]string(nil), s.order...)
	s.mu.Unlock()

	s.hub.Notify(websocket.ActionOrderingUpdated, snapshot)
	go s.syncPriorities(snapshot)
	return true
}

// syncPriorities pushes the full ordered id list upstream. A failure is
// surfaced as an event; the local order stays as the user arranged it until
// the next successful sync or task-set recompute.
func (s *OrderingService) syncPriorities(orderedIDs []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.backend.UpdatePriorities(ctx, orderedIDs); err != nil {
		log.Error().Err(err).Msg("Priority sync failed")
		_ = s.events.CreateEvent("ordering.sync.fail", "error",
			"Failed to sync task order to backend: "+err.Error(), nil)
		return
	}
	log.Debug().Int("count", len(orderedIDs)).Msg("Priority order synced")
}

// Snapshot returns a copy of the current order.
func (s *OrderingService) Snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Rank returns the position of a task in the current order.
func (s *OrderingService) Rank(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, tid := range s.order {
		if tid == id {
			return i, true
		}
	}
	return 0, false
}
