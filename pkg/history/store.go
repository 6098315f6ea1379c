// Package history keeps a journal of the commands issued through the
// remote in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultLimit is the page size used when List is called without a limit.
const DefaultLimit = 100

// Entry is one journaled command.
type Entry struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	ZoneID   string    `json:"zone_id,omitempty"`
	ZoneName string    `json:"zone_name,omitempty"`
	Command  string    `json:"command"`

	// Result is executed, unsupported or invalid_target.
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Store provides SQLite persistence for the command journal.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens the journal at dbPath.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commands (
		id TEXT PRIMARY KEY,
		issued_at DATETIME NOT NULL,
		zone_id TEXT,
		zone_name TEXT,
		command TEXT NOT NULL,
		result TEXT NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_commands_issued_at ON commands(issued_at);
	CREATE INDEX IF NOT EXISTS idx_commands_zone_id ON commands(zone_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends an entry. A missing ID or time is filled in.
func (s *Store) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commands (id, issued_at, zone_id, zone_name, command, result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Time.UTC(), e.ZoneID, e.ZoneName, e.Command, e.Result, e.Error)
	return err
}

// List returns entries, most recent first. A non-empty zoneID restricts the
// result to that zone.
func (s *Store) List(ctx context.Context, zoneID string, limit, offset int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issued_at, zone_id, zone_name, command, result, error
		FROM commands
		WHERE ? = '' OR zone_id = ?
		ORDER BY issued_at DESC
		LIMIT ? OFFSET ?
	`, zoneID, zoneID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var zid, zname, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.Time, &zid, &zname, &e.Command, &e.Result, &errMsg); err != nil {
			return nil, err
		}
		e.ZoneID = zid.String
		e.ZoneName = zname.String
		e.Error = errMsg.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM commands").Scan(&count)
	return count, err
}

// Prune deletes entries older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM commands WHERE issued_at < ?", before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
