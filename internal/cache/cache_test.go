package cache

import (
	"path/filepath"
	"testing"

	"dotflow/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db)
}

func TestStoreColdStart(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if _, ok, err := s.LoadTasks(); err != nil || ok {
		t.Fatalf("LoadTasks on cold cache = ok=%v err=%v, want miss", ok, err)
	}
	if _, ok, err := s.LoadEnabled(); err != nil || ok {
		t.Fatalf("LoadEnabled on cold cache = ok=%v err=%v, want miss", ok, err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	tasks := []models.AutomationTask{
		{ID: "t1", Name: "morning brief", Type: models.TaskText, Enabled: true, IntervalSec: 600},
		{ID: "t2", Name: "photo frame", Type: models.TaskImage, Schedule: "0 9 * * *"},
	}
	if err := s.SaveTasks(tasks); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}
	got, ok, err := s.LoadTasks()
	if err != nil || !ok {
		t.Fatalf("LoadTasks = ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0].ID != "t1" || got[1].Schedule != "0 9 * * *" {
		t.Fatalf("unexpected snapshot round trip: %+v", got)
	}

	// Overwrite wins.
	if err := s.SaveTasks(tasks[:1]); err != nil {
		t.Fatalf("SaveTasks overwrite: %v", err)
	}
	got, _, _ = s.LoadTasks()
	if len(got) != 1 {
		t.Fatalf("overwrite kept %d tasks, want 1", len(got))
	}

	if err := s.SaveEnabled(true); err != nil {
		t.Fatalf("SaveEnabled: %v", err)
	}
	enabled, ok, err := s.LoadEnabled()
	if err != nil || !ok || !enabled {
		t.Fatalf("LoadEnabled = %v ok=%v err=%v, want true", enabled, ok, err)
	}
}
