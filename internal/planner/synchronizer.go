// Package planner keeps the day-scoped execution queue synchronized with
// the backend under a fetch-or-generate protocol, including day-rollover
// look-ahead.
package planner

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"dotflow/internal/backend"
	"dotflow/internal/models"
	"dotflow/internal/services"
	"dotflow/internal/websocket"
)

const dateLayout = "2006-01-02"

// TaskSource is the slice of the task service the synchronizer needs.
type TaskSource interface {
	EnabledTaskIDs() map[string]bool
	AnyEnabled() bool
}

// OrderSource supplies the current priority order for generation requests.
type OrderSource interface {
	Snapshot() []string
}

// Synchronizer guarantees a valid materialized queue for "today" and
// opportunistically pre-materializes "tomorrow". It owns no queue data: the
// backend assigns the slots; this only decides when to fetch and when to
// request generation.
type Synchronizer struct {
	backend  backend.API
	tasks    TaskSource
	ordering OrderSource
	events   services.EventServiceProvider
	hub      *websocket.Hub

	loc   *time.Location
	grace time.Duration

	notices <-chan backend.GeneratedNotice

	mu       sync.Mutex
	items    map[string][]models.PlannedQueueItem
	inflight map[string]time.Time // generation request issued at
	// attempted marks dates whose one grace re-poll already ran; the
	// protocol never retries past that, it only reacts to notifications.
	attempted map[string]bool
	today     string

	cron *cron.Cron
	done chan bool
}

// NewSynchronizer creates a queue synchronizer.
func NewSynchronizer(api backend.API, tasks TaskSource, ordering OrderSource, events services.EventServiceProvider, hub *websocket.Hub, notices <-chan backend.GeneratedNotice, loc *time.Location, grace time.Duration) *Synchronizer {
	return &Synchronizer{
		backend:   api,
		tasks:     tasks,
		ordering:  ordering,
		events:    events,
		hub:       hub,
		loc:       loc,
		grace:     grace,
		notices:   notices,
		items:     make(map[string][]models.PlannedQueueItem),
		inflight:  make(map[string]time.Time),
		attempted: make(map[string]bool),
		done:      make(chan bool),
	}
}

// Run drives the synchronizer: a one-second tick for grace deadlines,
// staleness and look-ahead checks, the backend notification channel for
// immediate refresh, and a daily job that forces the rollover re-ensure.
func (s *Synchronizer) Run() {
	log.Info().Msg("Starting queue synchronizer")

	s.cron = cron.New(cron.WithLocation(s.loc))
	s.cron.AddFunc("@midnight", func() {
		log.Info().Msg("Day rollover, re-ensuring queue")
		s.rollover(time.Now())
	})
	s.cron.Start()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Materialize today's queue immediately on start.
	s.rollover(time.Now())

	for {
		select {
		case <-s.done:
			s.cron.Stop()
			log.Info().Msg("Stopping queue synchronizer")
			return
		case notice := <-s.notices:
			s.handleNotice(notice)
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

// Stop halts the synchronizer. Safe to call whether or not Run is active.
func (s *Synchronizer) Stop() {
	close(s.done)
}

func (s *Synchronizer) rollover(now time.Time) {
	date := now.In(s.loc).Format(dateLayout)

	s.mu.Lock()
	s.today = date
	// Forget everything that is not today or tomorrow.
	tomorrow := s.nextDate(date)
	for d := range s.items {
		if d != date && d != tomorrow {
			delete(s.items, d)
		}
	}
	for d := range s.attempted {
		if d != date && d != tomorrow {
			delete(s.attempted, d)
		}
	}
	s.mu.Unlock()

	go s.ensure(date)
}

// tick runs the cheap, local per-second checks. Network traffic only
// happens when a grace deadline expires, staleness is detected or the
// look-ahead condition fires.
func (s *Synchronizer) tick(now time.Time) {
	date := now.In(s.loc).Format(dateLayout)
	if date != s.Today() {
		s.rollover(now)
		return
	}

	d := s.decide(now)
	for _, date := range d.repoll {
		go s.refresh(date, true)
	}
	if d.regenerate {
		go s.requestGeneration(date)
	}
	if d.lookahead != "" {
		go s.ensure(d.lookahead)
	}
}

type decision struct {
	repoll     []string
	regenerate bool
	lookahead  string
}

// decide inspects cached state and picks the actions due at this instant:
// grace re-polls, a staleness regeneration, or the D+1 look-ahead. Pure
// against the network; all side effects stay in tick.
func (s *Synchronizer) decide(now time.Time) decision {
	date := now.In(s.loc).Format(dateLayout)

	s.mu.Lock()
	defer s.mu.Unlock()

	var d decision
	// Expired grace windows trigger the single re-poll.
	for day, at := range s.inflight {
		if now.Sub(at) >= s.grace {
			delete(s.inflight, day)
			d.repoll = append(d.repoll, day)
		}
	}

	todayItems := s.items[date]
	stale := s.isStaleLocked(todayItems)
	d.regenerate = stale && s.tasks.AnyEnabled() && !s.attempted[date] && len(s.inflight) == 0

	if len(todayItems) > 0 && !stale && s.allPast(todayItems, now) {
		next := s.nextDate(date)
		if len(s.items[next]) == 0 && !s.attempted[next] {
			if _, busy := s.inflight[next]; !busy {
				d.lookahead = next
			}
		}
	}
	return d
}

// ensure implements fetch-or-generate for one date.
func (s *Synchronizer) ensure(date string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	items, err := s.backend.GetPlannedForDate(ctx, date)
	if err != nil {
		log.Error().Err(err).Str("date", date).Msg("Failed to fetch planned queue")
		_ = s.events.CreateEvent("queue.fetch.fail", "error",
			"Failed to fetch queue for "+date+": "+err.Error(), nil)
		return
	}

	if len(items) == 0 {
		if !s.tasks.AnyEnabled() {
			return
		}
		s.requestGeneration(date)
		return
	}

	s.store(date, items)

	s.mu.Lock()
	stale := s.isStaleLocked(items)
	attempted := s.attempted[date]
	s.mu.Unlock()
	if stale && !attempted && s.tasks.AnyEnabled() {
		// Existing queue references no enabled task: regenerate.
		s.requestGeneration(date)
	}
}

// requestGeneration issues a fire-and-forget generation request carrying
// the full current ordering, then arms the grace re-poll. The backend also
// announces completion on the notification channel; whichever arrives first
// refreshes local state.
func (s *Synchronizer) requestGeneration(date string) {
	s.mu.Lock()
	if _, busy := s.inflight[date]; busy {
		s.mu.Unlock()
		return
	}
	s.inflight[date] = time.Now()
	s.attempted[date] = true
	s.mu.Unlock()

	order := s.ordering.Snapshot()
	log.Info().Str("date", date).Int("order", len(order)).Msg("Requesting queue generation")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.backend.GeneratePlannedForDate(ctx, date, order); err != nil {
		log.Error().Err(err).Str("date", date).Msg("Queue generation request failed")
		_ = s.events.CreateEvent("queue.generate.fail", "error",
			"Failed to request queue generation for "+date+": "+err.Error(), nil)
		s.mu.Lock()
		delete(s.inflight, date)
		s.mu.Unlock()
	}
}

// refresh re-reads one date. afterGrace marks the one-shot re-poll that
// follows a generation request; coming up empty then is reported as a
// timeout rather than retried.
func (s *Synchronizer) refresh(date string, afterGrace bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	items, err := s.backend.GetPlannedForDate(ctx, date)
	if err != nil {
		log.Error().Err(err).Str("date", date).Msg("Queue re-poll failed")
		return
	}
	if len(items) == 0 {
		if afterGrace {
			_ = s.events.CreateEvent("queue.generate.timeout", "warn",
				"Queue for "+date+" still missing after generation grace period", nil)
		}
		return
	}
	s.store(date, items)
}

func (s *Synchronizer) handleNotice(n backend.GeneratedNotice) {
	log.Info().Str("date", n.Date).Int("count", n.Count).Msg("Generation complete notice")
	s.mu.Lock()
	delete(s.inflight, n.Date)
	s.mu.Unlock()
	go s.refresh(n.Date, false)
}

func (s *Synchronizer) store(date string, items []models.PlannedQueueItem) {
	s.mu.Lock()
	s.items[date] = items
	delete(s.inflight, date)
	// A fresh materialization re-arms staleness regeneration for the date.
	delete(s.attempted, date)
	s.mu.Unlock()
	s.hub.Notify(websocket.ActionQueueUpdated, map[string]any{
		"date": date, "count": len(items),
	})
}

// Clear deletes a date's materialized queue. Local state clears
// optimistically as soon as the backend call succeeds.
func (s *Synchronizer) Clear(ctx context.Context, date string) error {
	if err := s.backend.ClearPlannedForDate(ctx, date); err != nil {
		_ = s.events.CreateEvent("queue.clear.fail", "error",
			"Failed to clear queue for "+date+": "+err.Error(), nil)
		return err
	}
	s.mu.Lock()
	delete(s.items, date)
	delete(s.attempted, date)
	delete(s.inflight, date)
	s.mu.Unlock()
	s.hub.Notify(websocket.ActionQueueUpdated, map[string]any{
		"date": date, "count": 0,
	})
	return nil
}

// RefreshDate forces a re-read of one date, e.g. after an execution failure
// shows up in the log stream.
func (s *Synchronizer) RefreshDate(date string) {
	s.mu.Lock()
	delete(s.attempted, date)
	s.mu.Unlock()
	go s.refresh(date, false)
}

// ItemsForDate returns the cached queue for a date.
func (s *Synchronizer) ItemsForDate(date string) []models.PlannedQueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PlannedQueueItem(nil), s.items[date]...)
}

// Today returns the current day bucket.
func (s *Synchronizer) Today() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.today
}

// isStaleLocked reports whether a non-empty queue references no currently
// enabled task. Such a queue is treated as stale and regenerated.
func (s *Synchronizer) isStaleLocked(items []models.PlannedQueueItem) bool {
	if len(items) == 0 {
		return false
	}
	enabled := s.tasks.EnabledTaskIDs()
	for _, item := range items {
		if enabled[item.TaskID] {
			return false
		}
	}
	return true
}

func (s *Synchronizer) allPast(items []models.PlannedQueueItem, now time.Time) bool {
	for _, item := range items {
		if item.ScheduledAt.After(now) {
			return false
		}
	}
	return true
}

func (s *Synchronizer) nextDate(date string) string {
	t, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, 1).Format(dateLayout)
}
