package batch

import (
	"context"
	"time"
)

// EventType classifies a progress event.
type EventType string

const (
	EventBatchStarted        EventType = "batch_started"
	EventDocumentStageUpdate EventType = "document_stage_update"
	EventDocumentCompleted   EventType = "document_completed"
	EventDocumentFailed      EventType = "document_failed"
	EventBatchCompleted      EventType = "batch_completed"
)

// Event is one observed change in a batch's state.
type Event struct {
	Type       EventType `json:"type"`
	BatchID    string    `json:"batch_id"`
	DocumentID string    `json:"document_id,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Status     Status    `json:"status,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Watcher polls the store for one batch and emits an event per observed
// change. It is a pure reader; writers never block on it.
type Watcher struct {
	store    Store
	batchID  string
	interval time.Duration
}

// NewWatcher creates a Watcher polling at the given interval (default
// 250ms).
func NewWatcher(store Store, batchID string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Watcher{store: store, batchID: batchID, interval: interval}
}

// Watch emits events until the batch finishes or the context is cancelled,
// then closes the channel. The first successful poll of a started batch
// emits batch_started.
func (w *Watcher) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		var prev *BatchJob
		for {
			cur, err := w.store.GetBatch(w.batchID)
			if err == nil {
				for _, ev := range diffBatch(prev, cur) {
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
				if cur.IsFinished() {
					return
				}
				prev = cur
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return ch
}

// diffBatch compares two snapshots and returns the events that occurred
// between them, document events before the batch terminal event.
func diffBatch(prev, cur *BatchJob) []Event {
	now := time.Now().UTC()
	var out []Event

	started := cur.Status != StatusQueued
	prevStarted := prev != nil && prev.Status != StatusQueued
	if started && !prevStarted {
		out = append(out, Event{
			Type:      EventBatchStarted,
			BatchID:   cur.ID,
			Status:    cur.Status,
			Timestamp: now,
		})
	}

	for id, job := range cur.DocumentJobs {
		var old *DocumentJob
		if prev != nil {
			old = prev.DocumentJobs[id]
		}

		if job.CurrentStage != "" && (old == nil || old.CurrentStage != job.CurrentStage) {
			out = append(out, Event{
				Type:       EventDocumentStageUpdate,
				BatchID:    cur.ID,
				DocumentID: id,
				Filename:   job.Filename,
				Stage:      job.CurrentStage,
				Status:     job.Status,
				Timestamp:  now,
			})
		}

		if job.IsFinished() && (old == nil || !old.IsFinished()) {
			typ := EventDocumentCompleted
			if job.Status == StatusFailed {
				typ = EventDocumentFailed
			}
			out = append(out, Event{
				Type:       typ,
				BatchID:    cur.ID,
				DocumentID: id,
				Filename:   job.Filename,
				Status:     job.Status,
				Error:      job.ErrorMessage,
				Timestamp:  now,
			})
		}
	}

	if cur.IsFinished() && (prev == nil || !prev.IsFinished()) {
		out = append(out, Event{
			Type:      EventBatchCompleted,
			BatchID:   cur.ID,
			Status:    cur.Status,
			Timestamp: now,
		})
	}
	return out
}
