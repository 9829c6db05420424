// src/mappings/store.go
package mappings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/kaizhangyahoo/st-my-investment/src/logger"
)

// Store is the durable name→ticker map backing every resolution run.
// The on-disk form is a single flat JSON object, rewritten whole on each
// persist. A name confirmed once never needs an expensive stage again.
type Store struct {
	path string

	mu      sync.Mutex
	entries map[string]string
	loaded  bool
}

func NewStore(path string) *Store {
	return &Store{path: path, entries: make(map[string]string)}
}

// Load reads the persisted map into memory and returns a copy.
// A missing file is not an error: resolution simply starts from an empty
// cache. A present but unreadable file degrades the same way, with a
// non-nil error so the caller can surface a warning.
func (s *Store) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]string)
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.L.Info("Mapping store not found, starting with empty map", "path", s.path)
			return map[string]string{}, nil
		}
		logger.L.Warn("Mapping store unreadable, starting with empty map", "path", s.path, "error", err)
		return map[string]string{}, fmt.Errorf("reading mapping store '%s': %w", s.path, err)
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		logger.L.Warn("Mapping store malformed, starting with empty map", "path", s.path, "error", err)
		s.entries = make(map[string]string)
		return map[string]string{}, fmt.Errorf("decoding mapping store '%s': %w", s.path, err)
	}

	logger.L.Info("Mapping store loaded", "path", s.path, "entries", len(s.entries))
	return s.snapshotLocked(), nil
}

// MergeAndPersist folds newPairs into the in-memory map (later values win for
// the same key) and rewrites the durable store to the full updated map. Safe
// to call multiple times per run; each call sees the previous call's writes.
// An advisory file lock keeps concurrent runs against the same store from
// interleaving partial writes.
func (s *Store) MergeAndPersist(newPairs map[string]string) error {
	if len(newPairs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		// Persist without a prior Load must not drop existing entries.
		if data, err := os.ReadFile(s.path); err == nil {
			_ = json.Unmarshal(data, &s.entries)
		}
		s.loaded = true
	}

	for name, ticker := range newPairs {
		s.entries[name] = ticker
	}

	if err := s.persistLocked(); err != nil {
		return err
	}
	logger.L.Info("Mapping store persisted", "path", s.path, "added", len(newPairs), "total", len(s.entries))
	return nil
}

func (s *Store) persistLocked() error {
	fileLock := flock.New(s.path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("locking mapping store '%s': %w", s.path, err)
	}
	defer fileLock.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating mapping store directory '%s': %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(s.entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding mapping store: %w", err)
	}

	// Write-then-rename so a crash mid-persist never truncates the store.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing mapping store '%s': %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing mapping store '%s': %w", s.path, err)
	}
	return nil
}

// Lookup returns the ticker persisted for the exact display name, if any.
func (s *Store) Lookup(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticker, ok := s.entries[name]
	return ticker, ok
}

// Snapshot returns a copy of the current in-memory map.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) snapshotLocked() map[string]string {
	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}
