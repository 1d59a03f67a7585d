package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver

	"dotflow/internal/models"
)

// Fixed storage keys for the cold-start snapshot.
const (
	keyTasks   = "tasks"
	keyEnabled = "automation_enabled"
)

// New creates a new database connection pool.
func New(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+dataSourceName+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Migrate runs the SQL statements to set up the local schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS snapshot (
		key TEXT NOT NULL PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		task_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(sqlStmt)
	return err
}

// Store persists the last-known backend state so the UI can render
// instantly on cold start. It is overwritten on every successful backend
// read and never treated as authoritative.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database in a snapshot store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) put(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO snapshot (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	return err
}

func (s *Store) get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM snapshot WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SaveTasks overwrites the cached task list.
func (s *Store) SaveTasks(tasks []models.AutomationTask) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("marshal task snapshot: %w", err)
	}
	return s.put(keyTasks, string(data))
}

// LoadTasks returns the cached task list, or ok=false when the cache is
// cold.
func (s *Store) LoadTasks() ([]models.AutomationTask, bool, error) {
	raw, ok, err := s.get(keyTasks)
	if err != nil || !ok {
		return nil, false, err
	}
	var tasks []models.AutomationTask
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return nil, false, fmt.Errorf("decode task snapshot: %w", err)
	}
	return tasks, true, nil
}

// SaveEnabled overwrites the cached automation-enabled flag.
func (s *Store) SaveEnabled(enabled bool) error {
	return s.put(keyEnabled, strconv.FormatBool(enabled))
}

// LoadEnabled returns the cached automation-enabled flag.
func (s *Store) LoadEnabled() (bool, bool, error) {
	raw, ok, err := s.get(keyEnabled)
	if err != nil || !ok {
		return false, false, err
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, err
	}
	return enabled, true, nil
}
