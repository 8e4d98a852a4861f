package runs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bookRa/ragpipe/internal/home"
)

// Store persists run records.
type Store interface {
	Save(rec Record) error
	Load(runID string) (Record, error)
	List() ([]Record, error)
}

// FSStore writes one JSON file per run under the home runs directory.
// Writes go through a temp file and rename so readers never see a torn
// record.
type FSStore struct {
	home *home.Dir
}

// NewFSStore creates an FSStore rooted at the given home directory.
func NewFSStore(h *home.Dir) (*FSStore, error) {
	if err := os.MkdirAll(h.RunsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create runs directory: %w", err)
	}
	return &FSStore{home: h}, nil
}

// Save implements Store.
func (s *FSStore) Save(rec Record) error {
	return writeJSONAtomic(s.home.RunFile(rec.ID), rec)
}

// Load implements Store.
func (s *FSStore) Load(runID string) (Record, error) {
	var rec Record
	data, err := os.ReadFile(s.home.RunFile(runID))
	if err != nil {
		return rec, fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return rec, nil
}

// List implements Store.
func (s *FSStore) List() ([]Record, error) {
	entries, err := os.ReadDir(s.home.RunsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var out []Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			// Skip unreadable records rather than failing the listing.
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// writeJSONAtomic marshals v and writes it via temp file plus rename.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// MemoryStore keeps records in memory for tests.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: map[string]Record{}}
}

// Save implements Store.
func (s *MemoryStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = rec
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(runID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[runID]
	if !ok {
		return Record{}, fmt.Errorf("run %s not found", runID)
	}
	return rec, nil
}

// List implements Store.
func (s *MemoryStore) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec)
	}
	return out, nil
}

var (
	_ Store = (*FSStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
