// Package metrics records command activity: Prometheus instruments for live
// monitoring and a SQLite history of every resolved command.
package metrics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ═══════════════════════════════════════════════════════════════════════════════
// HISTORY TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// HistoryEntry records a single resolved command.
type HistoryEntry struct {
	ID         int64         `json:"id"`
	SessionID  string        `json:"session_id"`
	Utterance  string        `json:"utterance"`
	Kind       string        `json:"kind"`
	PatternKey string        `json:"pattern_key,omitempty"`
	Response   string        `json:"response,omitempty"`
	Confidence float64       `json:"confidence"`
	Delay      time.Duration `json:"delay"`
	CreatedAt  time.Time     `json:"created_at"`
}

// KindCount is the number of history entries of one match kind.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// HISTORY STORE
// ═══════════════════════════════════════════════════════════════════════════════

// Store provides SQLite-backed command history.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenStore opens (or creates) the history database at path.
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore creates a history store using the provided database connection.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS command_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		utterance TEXT NOT NULL,
		kind TEXT NOT NULL,
		pattern_key TEXT,
		response TEXT,
		confidence REAL NOT NULL DEFAULT 0,
		delay_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_created_at ON command_history(created_at);
	CREATE INDEX IF NOT EXISTS idx_history_kind ON command_history(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores one entry and fills in its ID.
func (s *Store) Record(e *HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	res, err := s.db.Exec(`
		INSERT INTO command_history (session_id, utterance, kind, pattern_key, response, confidence, delay_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Utterance, e.Kind, e.PatternKey, e.Response, e.Confidence,
		e.Delay.Milliseconds(), e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}

	id, err := res.LastInsertId()
	if err == nil {
		e.ID = id
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (s *Store) Recent(limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, session_id, utterance, kind, COALESCE(pattern_key, ''), COALESCE(response, ''), confidence, delay_ms, created_at
		FROM command_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e       HistoryEntry
			delayMs int64
			created int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Utterance, &e.Kind, &e.PatternKey, &e.Response, &e.Confidence, &delayMs, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Delay = time.Duration(delayMs) * time.Millisecond
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByKind returns how many entries exist per match kind.
func (s *Store) CountByKind() ([]KindCount, error) {
	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM command_history GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}
	defer rows.Close()

	var counts []KindCount
	for rows.Next() {
		var c KindCount
		if err := rows.Scan(&c.Kind, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
