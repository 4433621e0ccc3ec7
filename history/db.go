package history

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSlots = `
CREATE TABLE IF NOT EXISTS slots (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER
);
`

func initDB(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSlots); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return db, nil
}

// CheckSQLite reports whether the sqlite3 driver works in this binary.
func CheckSQLite() bool {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return false
	}
	defer db.Close()

	_, err = db.Exec(schemaSlots)
	return err == nil
}

// SQLiteStore keeps the history slot in a SQLite database.
type SQLiteStore struct {
	db         *sql.DB
	key        string
	legacyPath string
	mu         sync.Mutex
	migrated   bool
}

// OpenSQLite opens (creating if needed) the database at dbPath. If legacyPath
// names a JSON history file written by FileStore, it is imported the first
// time the slot is found empty.
func OpenSQLite(dbPath, legacyPath string) (*SQLiteStore, error) {
	db, err := initDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, key: Key, legacyPath: legacyPath}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the stored entries, nil when nothing was saved yet.
func (s *SQLiteStore) Load() ([]Entry, error) {
	s.ensureMigrated()

	var value string
	err := s.db.QueryRow("SELECT value FROM slots WHERE key = ?", s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return decode([]byte(value))
}

// Save replaces the slot with entries.
func (s *SQLiteStore) Save(entries []Entry) error {
	data, err := encode(entries)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// An explicit save supersedes anything a later migration could import.
	s.migrated = true

	_, err = s.db.Exec(`INSERT INTO slots(key, value, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// UpdatedAt returns when the slot was last written, zero if never.
func (s *SQLiteStore) UpdatedAt() time.Time {
	var ts int64
	if err := s.db.QueryRow("SELECT updated_at FROM slots WHERE key = ?", s.key).Scan(&ts); err != nil {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// ensureMigrated imports the legacy JSON file once if the slot is empty.
func (s *SQLiteStore) ensureMigrated() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.migrated {
		return
	}
	s.migrated = true

	if s.legacyPath == "" {
		return
	}

	var count int
	err := s.db.QueryRow("SELECT count(*) FROM slots WHERE key = ?", s.key).Scan(&count)
	if err != nil || count > 0 {
		return
	}

	data, err := os.ReadFile(s.legacyPath)
	if err != nil {
		return
	}
	// Corrupt legacy data is left behind rather than copied in.
	if _, err := decode(data); err != nil {
		return
	}

	_, err = s.db.Exec("INSERT OR IGNORE INTO slots(key, value, updated_at) VALUES(?, ?, ?)",
		s.key, string(data), time.Now().Unix())
	if err != nil {
		log.Printf("Warning: failed to import legacy history %s: %v", s.legacyPath, err)
	}
}
