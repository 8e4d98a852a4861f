// Package runs tracks pipeline runs: one record per document conversion,
// with per-stage history, persisted as JSON under the home directory.
package runs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookRa/ragpipe/internal/document"
	"github.com/bookRa/ragpipe/internal/pipeline"
)

// Status of one run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is the persisted state of one pipeline run.
type Record struct {
	ID         string                 `json:"id"`
	DocumentID string                 `json:"document_id"`
	Filename   string                 `json:"filename"`
	BatchID    string                 `json:"batch_id,omitempty"`
	Status     Status                 `json:"status"`
	Stages     []pipeline.StageRecord `json:"stages,omitempty"`
	Document   *document.Document     `json:"document,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at,omitzero"`
	Error      string                 `json:"error,omitempty"`
}

// Registry creates and updates run records, writing each change through the
// store. Safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	store Store
	runs  map[string]*Record
}

// NewRegistry creates a Registry backed by the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store: store,
		runs:  map[string]*Record{},
	}
}

// Create registers a new running record for a document and persists it.
func (r *Registry) Create(documentID, filename, batchID string) (*Record, error) {
	rec := &Record{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Filename:   filename,
		BatchID:    batchID,
		Status:     StatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[rec.ID] = rec
	if err := r.store.Save(*rec); err != nil {
		return nil, err
	}
	return snapshot(rec), nil
}

// AppendStage appends one completed stage to a run, layers the document
// snapshot at that point onto the record, and persists it. doc may be nil.
func (r *Registry) AppendStage(runID string, stage pipeline.StageRecord, doc *document.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.runs[runID]
	if !ok {
		return fmt.Errorf("unknown run %s", runID)
	}
	rec.Stages = append(rec.Stages, stage)
	if doc != nil {
		rec.Document = doc.Clone()
	}
	return r.store.Save(*rec)
}

// Finish marks a run completed or failed. runErr may be nil.
func (r *Registry) Finish(runID string, runErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.runs[runID]
	if !ok {
		return fmt.Errorf("unknown run %s", runID)
	}
	rec.FinishedAt = time.Now().UTC()
	if runErr != nil {
		rec.Status = StatusFailed
		rec.Error = runErr.Error()
	} else {
		rec.Status = StatusCompleted
	}
	return r.store.Save(*rec)
}

// Get returns a copy of one run record, falling back to the store for runs
// created by earlier processes.
func (r *Registry) Get(runID string) (*Record, error) {
	r.mu.Lock()
	if rec, ok := r.runs[runID]; ok {
		out := snapshot(rec)
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	rec, err := r.store.Load(runID)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns known runs newest first, up to limit. limit <= 0 means no
// limit.
func (r *Registry) List(limit int) ([]Record, error) {
	stored, err := r.store.List()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	byID := make(map[string]Record, len(stored))
	for _, rec := range stored {
		byID[rec.ID] = rec
	}
	for id, rec := range r.runs {
		byID[id] = *snapshot(rec)
	}
	r.mu.Unlock()

	out := make([]Record, 0, len(byID))
	for _, rec := range byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func snapshot(rec *Record) *Record {
	out := *rec
	if rec.Stages != nil {
		out.Stages = append([]pipeline.StageRecord(nil), rec.Stages...)
	}
	if rec.Document != nil {
		out.Document = rec.Document.Clone()
	}
	return &out
}
