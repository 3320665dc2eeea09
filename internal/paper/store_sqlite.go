package paper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultSQLiteSlot is the slot name used when none is configured.
const DefaultSQLiteSlot = "paper"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS version_slot (
	slot       TEXT PRIMARY KEY,
	version    TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS version_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	slot        TEXT NOT NULL,
	version     TEXT NOT NULL,
	observed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_version_history_slot ON version_history(slot, id);
`

// SQLiteStore keeps the version in a SQLite database and records every
// change in a history table.
type SQLiteStore struct {
	db      *sql.DB
	slot    string
	mu      sync.Mutex
	nowFunc func() time.Time
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path, slot string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	if slot == "" {
		slot = DefaultSQLiteSlot
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteStore{db: db, slot: slot, nowFunc: time.Now}, nil
}

// Load returns the version of the slot.
func (s *SQLiteStore) Load(ctx context.Context) (string, bool, error) {
	var version string
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM version_slot WHERE slot = ?`, s.slot).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: querying slot %s: %v", ErrIO, s.slot, err)
	}
	return version, true, nil
}

// Save upserts the slot inside a transaction and appends a history row
// when the version changed.
func (s *SQLiteStore) Save(ctx context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	version = strings.TrimSpace(version)
	now := s.nowFunc().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrIO, err)
	}
	defer tx.Rollback()

	var previous string
	err = tx.QueryRowContext(ctx, `SELECT version FROM version_slot WHERE slot = ?`, s.slot).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: querying slot %s: %v", ErrIO, s.slot, err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO version_slot (slot, version, updated_at) VALUES (?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET version = excluded.version, updated_at = excluded.updated_at`,
		s.slot, version, now); err != nil {
		return fmt.Errorf("%w: writing slot %s: %v", ErrIO, s.slot, err)
	}

	if previous != version {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO version_history (slot, version, observed_at) VALUES (?, ?, ?)`,
			s.slot, version, now); err != nil {
			return fmt.Errorf("%w: writing history: %v", ErrIO, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIO, err)
	}
	return nil
}

// History returns the most recent version changes, newest first.
// A limit of zero or less returns every entry.
func (s *SQLiteStore) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := `SELECT version, observed_at FROM version_history WHERE slot = ? ORDER BY id DESC`
	args := []any{s.slot}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying history: %v", ErrIO, err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var version, observedAt string
		if err := rows.Scan(&version, &observedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning history: %v", ErrIO, err)
		}
		t, err := time.Parse(time.RFC3339Nano, observedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid history timestamp %q", ErrIO, observedAt)
		}
		entries = append(entries, HistoryEntry{Version: version, ObservedAt: t})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating history: %v", ErrIO, err)
	}
	return entries, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
