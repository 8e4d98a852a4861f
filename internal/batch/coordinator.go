package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/bookRa/ragpipe/internal/document"
	"github.com/bookRa/ragpipe/internal/pipeline"
	"github.com/bookRa/ragpipe/internal/runs"
)

// Coordinator is the top-level entry point for batch conversion. It creates
// the batch record, admits documents under the concurrency bound in FIFO
// submission order, drives each through the pipeline, and keeps the store
// current at every stage boundary.
type Coordinator struct {
	logger        *slog.Logger
	store         Store
	runner        *pipeline.Runner
	runs          *runs.Registry
	sup           *Supervisor
	maxConcurrent int64
	maxFiles      int

	// mu guards job mutations and aggregate recomputation. Model calls and
	// stage execution happen outside the lock.
	mu      sync.Mutex
	batches map[string]*BatchJob
}

// CoordinatorConfig configures a Coordinator. Store and Runner are
// required; Runs is optional and disables run records when nil.
type CoordinatorConfig struct {
	Logger *slog.Logger
	Store  Store
	Runner *pipeline.Runner
	Runs   *runs.Registry

	// Supervisor tracks per-document goroutines. A new one is created when
	// nil.
	Supervisor *Supervisor

	// MaxConcurrentDocuments bounds documents processed at once (default 4).
	MaxConcurrentDocuments int

	// MaxFiles bounds files per batch (default 20).
	MaxFiles int
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("coordinator requires a store")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("coordinator requires a pipeline runner")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sup := cfg.Supervisor
	if sup == nil {
		sup = NewSupervisor()
	}
	maxConcurrent := cfg.MaxConcurrentDocuments
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	maxFiles := cfg.MaxFiles
	if maxFiles <= 0 {
		maxFiles = 20
	}

	return &Coordinator{
		logger:        logger.With("component", "batch"),
		store:         cfg.Store,
		runner:        cfg.Runner,
		runs:          cfg.Runs,
		sup:           sup,
		maxConcurrent: int64(maxConcurrent),
		maxFiles:      maxFiles,
		batches:       map[string]*BatchJob{},
	}, nil
}

// Supervisor exposes the coordinator's task registry for shutdown.
func (c *Coordinator) Supervisor() *Supervisor {
	return c.sup
}

// admission pairs a document with its job for the processing loop.
type admission struct {
	doc *document.Document
	job *DocumentJob
}

// RunBatch validates inputs, creates the batch, processes every document,
// and returns the final batch record. Validation failures reject the whole
// submission before any state is created; per-document failures do not.
func (c *Coordinator) RunBatch(ctx context.Context, inputs []Input, strategy ErrorStrategy) (*BatchJob, error) {
	b, admissions, err := c.createBatch(inputs, strategy)
	if err != nil {
		return nil, err
	}
	c.processBatch(ctx, b, admissions)
	return c.GetBatch(b.ID)
}

// Start creates the batch and processes it in a supervised background task,
// returning the queued record immediately. Progress is observable through
// the store or a Watcher.
func (c *Coordinator) Start(ctx context.Context, inputs []Input, strategy ErrorStrategy) (*BatchJob, error) {
	b, admissions, err := c.createBatch(inputs, strategy)
	if err != nil {
		return nil, err
	}
	snap := b.Clone()
	if err := c.sup.Go("batch-"+b.ID, func() {
		c.processBatch(ctx, b, admissions)
	}); err != nil {
		return nil, err
	}
	return snap, nil
}

// GetBatch returns the current state of a batch from the store.
func (c *Coordinator) GetBatch(batchID string) (*BatchJob, error) {
	return c.store.GetBatch(batchID)
}

// createBatch validates the submission and persists the initial queued
// state: the aggregate plus one queued job per document.
func (c *Coordinator) createBatch(inputs []Input, strategy ErrorStrategy) (*BatchJob, []admission, error) {
	if err := ValidateInputs(inputs, c.maxFiles); err != nil {
		return nil, nil, err
	}
	if strategy == "" {
		strategy = StrategyContinue
	}
	if _, err := ParseErrorStrategy(string(strategy)); err != nil {
		return nil, nil, err
	}

	admissions := make([]admission, 0, len(inputs))
	docJobs := make([]*DocumentJob, 0, len(inputs))
	for _, in := range inputs {
		filename := in.Filename
		if filename == "" {
			filename = filepath.Base(in.Path)
		}
		var size int64
		if info, err := os.Stat(in.Path); err == nil {
			size = info.Size()
		}
		doc := document.New(uuid.NewString(), filename, in.Path, size)
		job := &DocumentJob{
			DocumentID: doc.ID,
			Filename:   filename,
			Status:     StatusQueued,
			CreatedAt:  time.Now().UTC(),
		}
		admissions = append(admissions, admission{doc: doc, job: job})
		docJobs = append(docJobs, job)
	}

	b := NewBatchJob(uuid.NewString(), strategy, docJobs)
	b.UpdateStatus()

	if err := c.store.SaveBatch(b); err != nil {
		return nil, nil, fmt.Errorf("failed to persist batch: %w", err)
	}
	for _, a := range admissions {
		if err := c.store.SaveDocumentJob(b.ID, a.job); err != nil {
			return nil, nil, fmt.Errorf("failed to persist job %s: %w", a.doc.ID, err)
		}
	}

	c.mu.Lock()
	c.batches[b.ID] = b
	c.mu.Unlock()

	c.logger.Info("batch created",
		"batch_id", b.ID, "documents", b.TotalDocuments, "strategy", strategy)
	return b, admissions, nil
}

// processBatch admits documents FIFO under the concurrency bound and waits
// for all of them, then persists the final aggregate. Document goroutines
// are covered by the batch-level supervision: this function returns only
// after every one of them has finished.
func (c *Coordinator) processBatch(ctx context.Context, b *BatchJob, admissions []admission) {
	sem := semaphore.NewWeighted(c.maxConcurrent)
	var wg sync.WaitGroup

	for _, a := range admissions {
		if err := sem.Acquire(ctx, 1); err != nil {
			c.failJob(b, a.job, fmt.Errorf("batch cancelled before admission: %w", err))
			continue
		}
		wg.Add(1)
		a := a
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			c.processDocument(ctx, b, a)
		}()
	}

	wg.Wait()
	c.persistAggregate(b)
	c.logger.Info("batch finished",
		"batch_id", b.ID, "status", b.Status,
		"completed", b.CompletedDocuments, "failed", b.FailedDocuments)
}

// processDocument drives one document through the pipeline. Any error marks
// only this job failed; siblings are never cancelled or blocked.
func (c *Coordinator) processDocument(ctx context.Context, b *BatchJob, a admission) {
	runID := ""
	if c.runs != nil {
		if rec, err := c.runs.Create(a.doc.ID, a.doc.Filename, b.ID); err == nil {
			runID = rec.ID
		} else {
			c.logger.Warn("failed to create run record", "document_id", a.doc.ID, "error", err)
		}
	}

	c.mu.Lock()
	a.job.Start(runID)
	c.persistJobLocked(b, a.job)
	c.mu.Unlock()

	progress := func(stage pipeline.StageRecord, doc *document.Document) {
		c.mu.Lock()
		a.job.MarkStage(stage.Name)
		c.persistJobLocked(b, a.job)
		c.mu.Unlock()
		if c.runs != nil && runID != "" {
			if err := c.runs.AppendStage(runID, stage, doc); err != nil {
				c.logger.Warn("failed to record stage", "run_id", runID, "error", err)
			}
		}
	}

	_, _, err := c.runner.Run(ctx, a.doc, progress)
	if err != nil {
		c.logger.Warn("document failed",
			"batch_id", b.ID, "document_id", a.doc.ID, "error", err)
		c.failJob(b, a.job, err)
		if c.runs != nil && runID != "" {
			_ = c.runs.Finish(runID, err)
		}
		return
	}

	c.mu.Lock()
	a.job.Complete()
	c.persistJobLocked(b, a.job)
	c.mu.Unlock()
	if c.runs != nil && runID != "" {
		_ = c.runs.Finish(runID, nil)
	}
}

func (c *Coordinator) failJob(b *BatchJob, job *DocumentJob, err error) {
	c.mu.Lock()
	job.Fail(err.Error())
	c.persistJobLocked(b, job)
	c.mu.Unlock()
}

// persistJobLocked writes the job sidecar and the recomputed aggregate.
// Callers hold c.mu.
func (c *Coordinator) persistJobLocked(b *BatchJob, job *DocumentJob) {
	if err := c.store.SaveDocumentJob(b.ID, job); err != nil {
		c.logger.Error("failed to persist job",
			"batch_id", b.ID, "document_id", job.DocumentID, "error", err)
	}
	b.UpdateStatus()
	if err := c.store.SaveBatch(b); err != nil {
		c.logger.Error("failed to persist batch", "batch_id", b.ID, "error", err)
	}
}

func (c *Coordinator) persistAggregate(b *BatchJob) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b.UpdateStatus()
	if err := c.store.SaveBatch(b); err != nil {
		c.logger.Error("failed to persist batch", "batch_id", b.ID, "error", err)
	}
}
