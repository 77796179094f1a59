// Package history persists conversation turns and client preferences in a
// local SQLite database. Turns are append-only per session; insertion order
// is the display order.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"voiceloop/client/internal/types"
)

var ErrInvalidSessionID = errors.New("history: session id cannot be empty")

// Preference keys.
const (
	PrefActiveSession = "active_session"
	PrefErrorReadout  = "error_readout"
)

type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens (creating if necessary) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns(session_id, seq);

	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AppendExchange appends a user turn and an assistant turn in one
// transaction, so a single exchange is never interleaved with another.
func (s *Store) AppendExchange(sessionID string, user, assistant types.Turn) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	for _, turn := range []types.Turn{user, assistant} {
		ts := turn.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if _, err := tx.Exec(
			"INSERT INTO turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)",
			sessionID, turn.Role, turn.Content, ts.Format(time.RFC3339Nano),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("append turn: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// List returns a session's turns in insertion order.
func (s *Store) List(sessionID string) ([]types.Turn, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT role, content, created_at FROM turns WHERE session_id = ? ORDER BY seq",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []types.Turn
	for rows.Next() {
		var turn types.Turn
		var createdAt string
		if err := rows.Scan(&turn.Role, &turn.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// Clear erases a session's turns. Clearing an unknown session is a no-op.
func (s *Store) Clear(sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM turns WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	return nil
}

// Replace swaps a session's stored turns for the given sequence, used when
// adopting the backend's copy of the history.
func (s *Store) Replace(sessionID string, turns []types.Turn) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM turns WHERE session_id = ?", sessionID); err != nil {
		tx.Rollback()
		return fmt.Errorf("replace delete: %w", err)
	}
	for _, turn := range turns {
		ts := turn.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if _, err := tx.Exec(
			"INSERT INTO turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)",
			sessionID, turn.Role, turn.Content, ts.Format(time.RFC3339Nano),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("replace insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// Sessions summarizes locally stored conversations, newest first.
func (s *Store) Sessions() ([]types.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT session_id, MIN(created_at), MAX(created_at), COUNT(*)
	FROM turns
	GROUP BY session_id
	ORDER BY MAX(created_at) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []types.SessionSummary
	for rows.Next() {
		var sum types.SessionSummary
		var createdAt, updatedAt string
		if err := rows.Scan(&sum.ID, &createdAt, &updatedAt, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		sum.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return summaries, nil
}

// SetPref stores a client preference under a fixed key.
func (s *Store) SetPref(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
	INSERT INTO prefs (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set pref: %w", err)
	}
	return nil
}

// Pref returns a stored preference, or def when unset.
func (s *Store) Pref(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&value)
	if err != nil {
		return def
	}
	return value
}

func (s *Store) Close() error {
	return s.db.Close()
}
