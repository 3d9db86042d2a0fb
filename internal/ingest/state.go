package ingest

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
)

// StateFile tracks processed files as "<type>:<filename>" -> content
// fingerprint, so unchanged files are skipped on refresh.
type StateFile struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// LoadState reads the state file; a missing file yields empty state.
func LoadState(path string) (*StateFile, error) {
	s := &StateFile{path: path, entries: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the recorded fingerprint for a key, if any.
func (s *StateFile) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.entries[key]
	return fp, ok
}

// Set records a fingerprint and persists the file.
func (s *StateFile) Set(key, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = fingerprint
	return s.save()
}

// Delete removes a key and persists the file.
func (s *StateFile) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return s.save()
}

// Keys returns a snapshot of all recorded keys.
func (s *StateFile) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	return out
}

func (s *StateFile) save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
