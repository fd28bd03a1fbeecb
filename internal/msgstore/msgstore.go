// Package msgstore persists named wire-value messages in a small SQLite
// database, so decoded or hand-built payloads can be reused across runs.
package msgstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a named message does not exist.
var ErrNotFound = errors.New("message not found")

// Message is one saved wire value with its protocol binding.
type Message struct {
	Name     string
	Protocol string
	TypeName string
	Data     any
	SavedAt  time.Time
}

// Store is a message bank backed by one SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		name TEXT PRIMARY KEY,
		protocol TEXT NOT NULL,
		type_name TEXT NOT NULL,
		data JSON NOT NULL,
		saved_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save stores m, replacing any previous message of the same name.
func (s *Store) Save(m Message) error {
	if m.Name == "" {
		return fmt.Errorf("message name is required")
	}
	savedAt := m.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO messages (name, protocol, type_name, data, saved_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.Name, m.Protocol, m.TypeName, oj.JSON(m.Data), savedAt.Unix())
	if err != nil {
		return fmt.Errorf("save message %q: %w", m.Name, err)
	}
	return nil
}

// Load returns the named message.
func (s *Store) Load(name string) (*Message, error) {
	row := s.db.QueryRow(`
		SELECT name, protocol, type_name, data, saved_at FROM messages WHERE name = ?
	`, name)

	var m Message
	var data string
	var savedAt int64
	if err := row.Scan(&m.Name, &m.Protocol, &m.TypeName, &data, &savedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load message %q: %w", name, err)
	}
	value, err := oj.ParseString(data)
	if err != nil {
		return nil, fmt.Errorf("parse message %q: %w", name, err)
	}
	m.Data = value
	m.SavedAt = time.Unix(savedAt, 0)
	return &m, nil
}

// List returns all saved messages without their payloads, ordered by name.
func (s *Store) List() ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT name, protocol, type_name, saved_at FROM messages ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var savedAt int64
		if err := rows.Scan(&m.Name, &m.Protocol, &m.TypeName, &savedAt); err != nil {
			return nil, err
		}
		m.SavedAt = time.Unix(savedAt, 0)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes the named message.
func (s *Store) Delete(name string) error {
	res, err := s.db.Exec(`DELETE FROM messages WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete message %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
