// Package sqlite is the durable Store backend. It also keeps closed transcript messages.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/harunnryd/airassist/pkg/events"
	"github.com/harunnryd/airassist/pkg/store"
	"github.com/harunnryd/airassist/pkg/transcript"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	role       TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);`

// Store is a SQLite-backed store.Store and transcript.Recorder.
type Store struct {
	store.Broadcaster

	db *sql.DB
}

// Open creates (if needed) and opens the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent callbacks.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.Notify(key, value)
	return nil
}

// Record stores a closed transcript message. Re-recording an ID updates its text.
func (s *Store) Record(m transcript.Message) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, role, text, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET text = excluded.text`,
		m.ID, string(m.Role), m.Text, m.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record message %s: %w", m.ID, err)
	}
	return nil
}

// Messages returns the most recent limit messages in insertion order. limit <= 0 returns all.
func (s *Store) Messages(limit int) ([]transcript.Message, error) {
	query := "SELECT id, role, text, created_at FROM messages ORDER BY seq"
	args := []any{}
	if limit > 0 {
		query = "SELECT id, role, text, created_at FROM (SELECT * FROM messages ORDER BY seq DESC LIMIT ?) ORDER BY seq"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []transcript.Message
	for rows.Next() {
		var (
			m       transcript.Message
			role    string
			created int64
		)
		if err := rows.Scan(&m.ID, &role, &m.Text, &created); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		m.Role = events.Role(role)
		m.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// ClearMessages deletes the transcript history but keeps provider state.
func (s *Store) ClearMessages() error {
	if _, err := s.db.Exec("DELETE FROM messages"); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.Notifier      = (*Store)(nil)
	_ transcript.Recorder = (*Store)(nil)
)
