package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bookRa/ragpipe/internal/home"
)

// Store persists batch state. Document jobs get their own sidecar records so
// concurrent per-document updates never contend on one file; the aggregate
// is serialized by the implementation.
type Store interface {
	SaveBatch(b *BatchJob) error
	SaveDocumentJob(batchID string, job *DocumentJob) error
	GetBatch(batchID string) (*BatchJob, error)
	ListRecent(limit int) ([]*BatchJob, error)
}

// FSStore keeps batches under <home>/batches/<batchID>/: batch.json for the
// aggregate and jobs/<docID>.json per document. All writes are temp+rename.
type FSStore struct {
	home *home.Dir

	// aggMu serializes aggregate writes. Per-document sidecars are written
	// only by the goroutine owning that document and need no lock.
	aggMu sync.Mutex
}

// NewFSStore creates an FSStore rooted at the given home directory.
func NewFSStore(h *home.Dir) (*FSStore, error) {
	if err := os.MkdirAll(h.BatchesDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create batches directory: %w", err)
	}
	return &FSStore{home: h}, nil
}

// SaveBatch implements Store. The aggregate file has a single writer at a
// time; jobs are persisted separately so the aggregate omits them on disk.
func (s *FSStore) SaveBatch(b *BatchJob) error {
	s.aggMu.Lock()
	defer s.aggMu.Unlock()

	if err := os.MkdirAll(s.home.BatchJobsDir(b.ID), 0o755); err != nil {
		return fmt.Errorf("failed to create batch directory: %w", err)
	}

	agg := b.Clone()
	agg.DocumentJobs = nil
	return writeJSONAtomic(s.home.BatchFile(b.ID), agg)
}

// SaveDocumentJob implements Store.
func (s *FSStore) SaveDocumentJob(batchID string, job *DocumentJob) error {
	if err := os.MkdirAll(s.home.BatchJobsDir(batchID), 0o755); err != nil {
		return fmt.Errorf("failed to create jobs directory: %w", err)
	}
	return writeJSONAtomic(s.home.BatchJobFile(batchID, job.DocumentID), job)
}

// GetBatch implements Store: the aggregate is rehydrated with every job
// sidecar found on disk.
func (s *FSStore) GetBatch(batchID string) (*BatchJob, error) {
	var b BatchJob
	data, err := os.ReadFile(s.home.BatchFile(batchID))
	if err != nil {
		return nil, fmt.Errorf("failed to read batch %s: %w", batchID, err)
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode batch %s: %w", batchID, err)
	}
	b.DocumentJobs = map[string]*DocumentJob{}

	entries, err := os.ReadDir(s.home.BatchJobsDir(batchID))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read jobs for batch %s: %w", batchID, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		jobData, err := os.ReadFile(filepath.Join(s.home.BatchJobsDir(batchID), e.Name()))
		if err != nil {
			continue
		}
		var job DocumentJob
		if err := json.Unmarshal(jobData, &job); err != nil {
			continue
		}
		b.DocumentJobs[job.DocumentID] = &job
	}
	return &b, nil
}

// ListRecent implements Store, returning up to limit batches newest first.
// limit <= 0 means no limit.
func (s *FSStore) ListRecent(limit int) ([]*BatchJob, error) {
	entries, err := os.ReadDir(s.home.BatchesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read batches directory: %w", err)
	}

	var out []*BatchJob
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := s.GetBatch(e.Name())
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
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

// MemoryStore keeps batches in memory for tests.
type MemoryStore struct {
	mu      sync.Mutex
	batches map[string]*BatchJob
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{batches: map[string]*BatchJob{}}
}

// SaveBatch implements Store.
func (s *MemoryStore) SaveBatch(b *BatchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.batches[b.ID]
	clone := b.Clone()
	if ok {
		// Keep sidecar jobs saved individually since the last aggregate
		// write, mirroring the filesystem layout.
		for id, j := range existing.DocumentJobs {
			if _, present := clone.DocumentJobs[id]; !present {
				clone.DocumentJobs[id] = j
			}
		}
	}
	s.batches[b.ID] = clone
	return nil
}

// SaveDocumentJob implements Store.
func (s *MemoryStore) SaveDocumentJob(batchID string, job *DocumentJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %s not found", batchID)
	}
	jc := *job
	jc.CompletedStages = append([]string(nil), job.CompletedStages...)
	b.DocumentJobs[job.DocumentID] = &jc
	return nil
}

// GetBatch implements Store.
func (s *MemoryStore) GetBatch(batchID string) (*BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch %s not found", batchID)
	}
	return b.Clone(), nil
}

// ListRecent implements Store.
func (s *MemoryStore) ListRecent(limit int) ([]*BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*BatchJob, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ Store = (*FSStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
