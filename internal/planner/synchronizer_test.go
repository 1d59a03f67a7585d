package planner

import (
	"context"
	"sync"
	"testing"
	"time"

	"dotflow/internal/backend"
	"dotflow/internal/models"
	"dotflow/internal/websocket"
)

type fakeBackend struct {
	mu        sync.Mutex
	planned   map[string][]models.PlannedQueueItem
	generated []string
	genOrder  [][]string
	cleared   []string
}

var _ backend.API = (*fakeBackend)(nil)

func (f *fakeBackend) GetTasks(context.Context) ([]models.AutomationTask, error) { return nil, nil }
func (f *fakeBackend) AddTask(_ context.Context, t models.AutomationTask) (models.AutomationTask, error) {
	return t, nil
}
func (f *fakeBackend) UpdateTask(_ context.Context, t models.AutomationTask) (models.AutomationTask, error) {
	return t, nil
}
func (f *fakeBackend) DeleteTask(context.Context, string) error          { return nil }
func (f *fakeBackend) GetEnabled(context.Context) (bool, error)          { return true, nil }
func (f *fakeBackend) SetEnabled(context.Context, bool) error            { return nil }
func (f *fakeBackend) UpdatePriorities(context.Context, []string) error  { return nil }
func (f *fakeBackend) ExecuteTask(context.Context, string, string) error { return nil }
func (f *fakeBackend) GetLogs(context.Context, int) ([]models.ExecutionLog, error) {
	return nil, nil
}

func (f *fakeBackend) GetPlannedForDate(_ context.Context, date string) ([]models.PlannedQueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.planned[date], nil
}

func (f *fakeBackend) GeneratePlannedForDate(_ context.Context, date string, order []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated = append(f.generated, date)
	f.genOrder = append(f.genOrder, append([]string(nil), order...))
	return nil
}

func (f *fakeBackend) ClearPlannedForDate(_ context.Context, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, date)
	delete(f.planned, date)
	return nil
}

func (f *fakeBackend) generatedDates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.generated...)
}

type fakeTasks struct {
	enabled map[string]bool
}

func (f *fakeTasks) EnabledTaskIDs() map[string]bool { return f.enabled }
func (f *fakeTasks) AnyEnabled() bool                { return len(f.enabled) > 0 }

type fakeOrder struct{ ids []string }

func (f *fakeOrder) Snapshot() []string { return append([]string(nil), f.ids...) }

type nopEvents struct{}

func (nopEvents) CreateEvent(string, string, string, *string) error { return nil }
func (nopEvents) GetRecentEvents(int) ([]models.Event, error)       { return nil, nil }

func newTestSync(be *fakeBackend, tasks *fakeTasks) *Synchronizer {
	return NewSynchronizer(be, tasks, &fakeOrder{ids: []string{"a", "b"}}, nopEvents{},
		websocket.NewHub(), make(chan backend.GeneratedNotice), time.UTC, 5*time.Second)
}

func item(taskID, date string, at time.Time) models.PlannedQueueItem {
	return models.PlannedQueueItem{
		ID: "i-" + taskID, TaskID: taskID, Date: date,
		Status: models.PlannedPending, ScheduledAt: at, ScheduledEndAt: at.Add(5 * time.Second),
	}
}

func TestEnsureGeneratesWhenMissing(t *testing.T) {
	t.Parallel()
	be := &fakeBackend{planned: map[string][]models.PlannedQueueItem{}}
	s := newTestSync(be, &fakeTasks{enabled: map[string]bool{"a": true}})

	s.ensure("2025-03-10")

	gen := be.generatedDates()
	if len(gen) != 1 || gen[0] != "2025-03-10" {
		t.Fatalf("generated = %v, want one request for 2025-03-10", gen)
	}
	if len(be.genOrder[0]) != 2 {
		t.Fatalf("generation did not carry the full order: %v", be.genOrder[0])
	}

	// A second ensure during the grace window must not duplicate the request.
	s.ensure("2025-03-10")
	if gen := be.generatedDates(); len(gen) != 1 {
		t.Fatalf("duplicate generation request during grace window: %v", gen)
	}
}

func TestEnsureSkipsGenerationWithoutEnabledTasks(t *testing.T) {
	t.Parallel()
	be := &fakeBackend{planned: map[string][]models.PlannedQueueItem{}}
	s := newTestSync(be, &fakeTasks{enabled: map[string]bool{}})

	s.ensure("2025-03-10")
	if gen := be.generatedDates(); len(gen) != 0 {
		t.Fatalf("generated %v with no enabled tasks", gen)
	}
}

func TestEnsureStoresExistingQueue(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	be := &fakeBackend{planned: map[string][]models.PlannedQueueItem{
		"2025-03-10": {item("a", "2025-03-10", at)},
	}}
	s := newTestSync(be, &fakeTasks{enabled: map[string]bool{"a": true}})

	s.ensure("2025-03-10")
	if got := s.ItemsForDate("2025-03-10"); len(got) != 1 || got[0].TaskID != "a" {
		t.Fatalf("cached items = %+v", got)
	}
	if gen := be.generatedDates(); len(gen) != 0 {
		t.Fatalf("valid queue should not trigger generation, got %v", gen)
	}
}

func TestEnsureRegeneratesStaleQueue(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	be := &fakeBackend{planned: map[string][]models.PlannedQueueItem{
		"2025-03-10": {item("ghost", "2025-03-10", at)},
	}}
	// "ghost" is not enabled, so the existing queue is stale.
	s := newTestSync(be, &fakeTasks{enabled: map[string]bool{"a": true}})

	s.ensure("2025-03-10")
	if gen := be.generatedDates(); len(gen) != 1 {
		t.Fatalf("stale queue should regenerate once, got %v", gen)
	}
}

func TestLookAheadWaitsForFutureItems(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	today := "2025-03-10"

	// Task a ran this morning; task b holds a slot tomorrow at 08:00, but
	// today still has a future item, so no look-ahead yet.
	be := &fakeBackend{planned: map[string][]models.PlannedQueueItem{}}
	s := newTestSync(be, &fakeTasks{enabled: map[string]bool{"a": true, "b": true}})
	s.mu.Lock()
	s.today = today
	s.items[today] = []models.PlannedQueueItem{
		item("a", today, now.Add(-3*time.Hour)),
		item("a", today, now.Add(2*time.Hour)),
	}
	s.mu.Unlock()

	if d := s.decide(now); d.lookahead != "" {
		t.Fatalf("look-ahead fired while a future item remained: %q", d.lookahead)
	}

	// Once every item is in the past, look-ahead targets tomorrow.
	s.mu.Lock()
	s.items[today] = []models.PlannedQueueItem{
		item("a", today, now.Add(-3*time.Hour)),
		item("a", today, now.Add(-time.Hour)),
	}
	s.mu.Unlock()

	if d := s.decide(now); d.lookahead != "2025-03-11" {
		t.Fatalf("look-ahead = %q, want 2025-03-11", d.lookahead)
	}

	// Look-ahead is idempotent: a cached queue for tomorrow suppresses it.
	s.mu.Lock()
	s.items["2025-03-11"] = []models.PlannedQueueItem{item("b", "2025-03-11", now.Add(20 * time.Hour))}
	s.mu.Unlock()
	if d := s.decide(now); d.lookahead != "" {
		t.Fatalf("look-ahead repeated despite existing queue: %q", d.lookahead)
	}
}

func TestDecideRepollsAfterGrace(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	be := &fakeBackend{planned: map[string][]models.PlannedQueueItem{}}
	s := newTestSync(be, &fakeTasks{enabled: map[string]bool{"a": true}})
	s.mu.Lock()
	s.today = "2025-03-10"
	s.inflight["2025-03-10"] = now.Add(-6 * time.Second) // grace is 5s
	s.mu.Unlock()

	d := s.decide(now)
	if len(d.repoll) != 1 || d.repoll[0] != "2025-03-10" {
		t.Fatalf("repoll = %v, want the expired date", d.repoll)
	}
	// The window is consumed; the next tick must not re-poll again.
	if d := s.decide(now); len(d.repoll) != 0 {
		t.Fatalf("second decide re-polled again: %v", d.repoll)
	}
}

func TestStopWithoutRunDoesNotBlock(t *testing.T) {
	t.Parallel()
	be := &fakeBackend{planned: map[string][]models.PlannedQueueItem{}}
	s := newTestSync(be, &fakeTasks{enabled: map[string]bool{}})

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked with no Run loop active")
	}
}

func TestClearIsOptimistic(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	be := &fakeBackend{planned: map[string][]models.PlannedQueueItem{
		"2025-03-10": {item("a", "2025-03-10", at)},
	}}
	s := newTestSync(be, &fakeTasks{enabled: map[string]bool{"a": true}})
	s.ensure("2025-03-10")

	if err := s.Clear(context.Background(), "2025-03-10"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := s.ItemsForDate("2025-03-10"); len(got) != 0 {
		t.Fatalf("local queue not cleared: %+v", got)
	}
	if len(be.cleared) != 1 {
		t.Fatalf("backend clear not called: %v", be.cleared)
	}
}
