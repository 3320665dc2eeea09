// Package paper provides persistence for the last observed version.
package paper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultVersionFile is the flat file holding the last observed version.
const DefaultVersionFile = "version.txt"

// Store persists a single version string in a named slot.
type Store interface {
	// Load returns the stored version. A slot that was never written
	// returns ok == false and a nil error.
	Load(ctx context.Context) (version string, ok bool, err error)
	// Save replaces the stored version. Readers never observe a partial write.
	Save(ctx context.Context, version string) error
}

// HistoryEntry is one version change recorded by a store that keeps history.
type HistoryEntry struct {
	Version    string
	ObservedAt time.Time
}

// HistoryStore is implemented by stores that keep every version change.
type HistoryStore interface {
	Store
	History(ctx context.Context, limit int) ([]HistoryEntry, error)
}

// FileStore keeps the version in a plain text file.
type FileStore struct {
	// path is the file path where the version is persisted
	path string
	// mu serializes writes from the poller and command handlers
	mu sync.Mutex
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultVersionFile
	}
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the trimmed version from disk. A missing or empty file is
// reported as absent.
func (s *FileStore) Load(ctx context.Context) (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: reading %s: %v", ErrIO, s.path, err)
	}

	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", false, nil
	}
	return version, true, nil
}

// Save writes the version to a temporary file, then renames it over the
// slot so readers see either the old or the new value.
func (s *FileStore) Save(ctx context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: creating %s: %v", ErrIO, dir, err)
		}
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(strings.TrimSpace(version)), 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrIO, tmpPath, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		// Clean up temp file on rename failure
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming %s: %v", ErrIO, tmpPath, err)
	}

	return nil
}
