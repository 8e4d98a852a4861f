// Package batch coordinates multi-document conversion runs: admission under
// a document-level concurrency bound, per-document jobs with durable state,
// and aggregate status derived purely from the job set.
package batch

import (
	"fmt"
	"time"
)

// Status of a document job or batch.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPartial    Status = "partial"
)

// ErrorStrategy governs how individual document failures affect the batch.
type ErrorStrategy string

const (
	// StrategyContinue keeps processing sibling documents after a failure.
	StrategyContinue ErrorStrategy = "continue"

	// StrategyFailAll flips the aggregate to failed on the first document
	// failure. In-flight siblings still run to completion and their results
	// persist; no cancellation exists once a document has started.
	StrategyFailAll ErrorStrategy = "fail_all"
)

// ParseErrorStrategy validates a strategy string, defaulting to continue.
func ParseErrorStrategy(s string) (ErrorStrategy, error) {
	switch ErrorStrategy(s) {
	case "":
		return StrategyContinue, nil
	case StrategyContinue, StrategyFailAll:
		return ErrorStrategy(s), nil
	default:
		return "", fmt.Errorf("unknown error strategy %q", s)
	}
}

// DocumentJob tracks one document through the batch. Status transitions are
// monotonic: queued, processing, then completed or failed, which are final.
type DocumentJob struct {
	DocumentID      string    `json:"document_id"`
	Filename        string    `json:"filename"`
	Status          Status    `json:"status"`
	CurrentStage    string    `json:"current_stage,omitempty"`
	CompletedStages []string  `json:"completed_stages,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	RunID           string    `json:"run_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	StartedAt       time.Time `json:"started_at,omitzero"`
	CompletedAt     time.Time `json:"completed_at,omitzero"`
}

// IsFinished reports whether the job reached a terminal status.
func (j *DocumentJob) IsFinished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Start marks the job processing. A no-op on terminal jobs.
func (j *DocumentJob) Start(runID string) {
	if j.IsFinished() {
		return
	}
	j.Status = StatusProcessing
	j.RunID = runID
	j.StartedAt = time.Now().UTC()
}

// MarkStage records the stage now running and appends the previous stage to
// the completed list. Completed stages are append-only and de-duplicated.
func (j *DocumentJob) MarkStage(stage string) {
	if j.IsFinished() {
		return
	}
	if j.CurrentStage != "" {
		j.appendCompleted(j.CurrentStage)
	}
	j.CurrentStage = stage
}

// Complete marks the job completed. Terminal; later calls are no-ops.
func (j *DocumentJob) Complete() {
	if j.IsFinished() {
		return
	}
	if j.CurrentStage != "" {
		j.appendCompleted(j.CurrentStage)
		j.CurrentStage = ""
	}
	j.Status = StatusCompleted
	j.CompletedAt = time.Now().UTC()
}

// Fail marks the job failed with the given message. Terminal.
func (j *DocumentJob) Fail(msg string) {
	if j.IsFinished() {
		return
	}
	j.Status = StatusFailed
	j.ErrorMessage = msg
	j.CompletedAt = time.Now().UTC()
}

func (j *DocumentJob) appendCompleted(stage string) {
	for _, s := range j.CompletedStages {
		if s == stage {
			return
		}
	}
	j.CompletedStages = append(j.CompletedStages, stage)
}

// BatchJob is the aggregate record for one batch. Document jobs are keyed by
// document id; counts and status are derived, never hand-set.
type BatchJob struct {
	ID                 string                  `json:"id"`
	Status             Status                  `json:"status"`
	ErrorStrategy      ErrorStrategy           `json:"error_strategy"`
	TotalDocuments     int                     `json:"total_documents"`
	CompletedDocuments int                     `json:"completed_documents"`
	FailedDocuments    int                     `json:"failed_documents"`
	DocumentJobs       map[string]*DocumentJob `json:"document_jobs"`
	CreatedAt          time.Time               `json:"created_at"`
	StartedAt          time.Time               `json:"started_at,omitzero"`
	CompletedAt        time.Time               `json:"completed_at,omitzero"`
}

// NewBatchJob creates a batch with one queued job per input.
func NewBatchJob(id string, strategy ErrorStrategy, docs []*DocumentJob) *BatchJob {
	now := time.Now().UTC()
	b := &BatchJob{
		ID:             id,
		Status:         StatusQueued,
		ErrorStrategy:  strategy,
		TotalDocuments: len(docs),
		DocumentJobs:   make(map[string]*DocumentJob, len(docs)),
		CreatedAt:      now,
	}
	for _, d := range docs {
		b.DocumentJobs[d.DocumentID] = d
	}
	return b
}

// UpdateStatus recomputes counts and aggregate status from the job set.
func (b *BatchJob) UpdateStatus() {
	completed, failed := 0, 0
	for _, j := range b.DocumentJobs {
		switch j.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		}
	}
	b.CompletedDocuments = completed
	b.FailedDocuments = failed
	b.Status = DeriveStatus(b.DocumentJobs, b.ErrorStrategy)

	if b.StartedAt.IsZero() && b.Status != StatusQueued {
		b.StartedAt = time.Now().UTC()
	}
	if b.IsFinished() && b.CompletedAt.IsZero() {
		b.CompletedAt = time.Now().UTC()
	}
}

// IsFinished reports whether the batch reached a terminal status.
func (b *BatchJob) IsFinished() bool {
	switch b.Status {
	case StatusCompleted, StatusFailed, StatusPartial:
		return true
	}
	return false
}

// ProgressPercentage is the share of documents in a terminal state. It is
// monotonically non-decreasing because terminal job states are final.
func (b *BatchJob) ProgressPercentage() float64 {
	if b.TotalDocuments == 0 {
		return 0
	}
	done := b.CompletedDocuments + b.FailedDocuments
	return float64(done) / float64(b.TotalDocuments) * 100
}

// Clone returns a deep copy of the batch record.
func (b *BatchJob) Clone() *BatchJob {
	out := *b
	out.DocumentJobs = make(map[string]*DocumentJob, len(b.DocumentJobs))
	for id, j := range b.DocumentJobs {
		jc := *j
		jc.CompletedStages = append([]string(nil), j.CompletedStages...)
		out.DocumentJobs[id] = &jc
	}
	return &out
}

// DeriveStatus computes the aggregate status from the document job states
// and the error strategy. Pure and idempotent.
//
// When every job is terminal: no failures means completed, no successes
// means failed, a mix means partial. While in flight: queued until any job
// leaves queued, processing after. fail_all forces failed as soon as any
// job has failed.
func DeriveStatus(jobs map[string]*DocumentJob, strategy ErrorStrategy) Status {
	total := len(jobs)
	completed, failed, started := 0, 0, 0
	for _, j := range jobs {
		switch j.Status {
		case StatusCompleted:
			completed++
			started++
		case StatusFailed:
			failed++
			started++
		case StatusProcessing:
			started++
		}
	}

	if strategy == StrategyFailAll && failed > 0 {
		return StatusFailed
	}

	if total > 0 && completed+failed == total {
		switch {
		case failed == 0:
			return StatusCompleted
		case completed == 0:
			return StatusFailed
		default:
			return StatusPartial
		}
	}

	if started > 0 {
		return StatusProcessing
	}
	return StatusQueued
}
