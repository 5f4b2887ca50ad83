package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store keeps the last observed duration of every test, in milliseconds,
// keyed by the test's project-relative path. It backs the history-weighted
// assignment strategy: strategies read a snapshot taken at load time while
// executors write durations through as tests finish.
type Store struct {
	path string

	mu        sync.Mutex
	durations map[string]int64
}

// Load reads the history file at path. History is an optimization, never a
// failure: a missing, unreadable or corrupt file yields an empty store and
// at most a warning.
func Load(path string) *Store {
	s := &Store{path: path, durations: make(map[string]int64)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("duration history unreadable, starting empty",
				slog.String("path", path), slog.Any("error", err))
		}
		return s
	}

	if err := json.Unmarshal(data, &s.durations); err != nil {
		slog.Warn("duration history corrupt, starting empty",
			slog.String("path", path), slog.Any("error", err))
		s.durations = make(map[string]int64)
	}
	return s
}

// Path returns the file backing this store
func (s *Store) Path() string {
	return s.path
}

// Duration returns the recorded duration of a test in milliseconds
func (s *Store) Duration(test string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	millis, ok := s.durations[test]
	return millis, ok
}

// Len returns the number of tests with recorded durations
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.durations)
}

// Update records the duration of one test and persists the whole store
// immediately. Concurrent processes updating the same file are
// last-writer-wins; losing an update costs nothing but scheduling accuracy.
func (s *Store) Update(test string, millis int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durations[test] = millis
	if err := s.save(s.path); err != nil {
		slog.Warn("duration history not persisted",
			slog.String("test", test), slog.Any("error", err))
	}
}

// SnapshotTo writes the current contents to another path. Processes reading
// the snapshot all see the same durations no matter when they start.
func (s *Store) SnapshotTo(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(path)
}

// save writes via a temp file and rename so a concurrent reader never
// observes a torn file. Callers hold s.mu.
func (s *Store) save(path string) error {
	data, err := json.MarshalIndent(s.durations, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp history: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
