package batch

import (
	"context"
	"testing"
	"time"
)

func TestWatcher_EmitsLifecycleEvents(t *testing.T) {
	store := NewMemoryStore()
	b := sampleBatch("batch-1")
	if err := store.SaveBatch(b); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w := NewWatcher(store, "batch-1", 10*time.Millisecond)
	events := w.Watch(ctx)

	// Drive the batch through its lifecycle while the watcher polls.
	go func() {
		time.Sleep(20 * time.Millisecond)
		b.DocumentJobs["doc-1"].Start("run-1")
		b.DocumentJobs["doc-1"].MarkStage("parse")
		b.UpdateStatus()
		_ = store.SaveDocumentJob(b.ID, b.DocumentJobs["doc-1"])
		_ = store.SaveBatch(b)

		time.Sleep(60 * time.Millisecond)
		b.DocumentJobs["doc-1"].Complete()
		b.DocumentJobs["doc-2"].Start("run-2")
		b.DocumentJobs["doc-2"].Fail("ingest exploded")
		b.UpdateStatus()
		_ = store.SaveDocumentJob(b.ID, b.DocumentJobs["doc-1"])
		_ = store.SaveDocumentJob(b.ID, b.DocumentJobs["doc-2"])
		_ = store.SaveBatch(b)
	}()

	seen := map[EventType]int{}
	for ev := range events {
		if ev.BatchID != "batch-1" {
			t.Errorf("event for wrong batch: %+v", ev)
		}
		seen[ev.Type]++
	}

	if seen[EventBatchStarted] != 1 {
		t.Errorf("batch_started seen %d times, want 1", seen[EventBatchStarted])
	}
	if seen[EventDocumentStageUpdate] == 0 {
		t.Error("no stage update events observed")
	}
	if seen[EventDocumentCompleted] != 1 {
		t.Errorf("document_completed seen %d times, want 1", seen[EventDocumentCompleted])
	}
	if seen[EventDocumentFailed] != 1 {
		t.Errorf("document_failed seen %d times, want 1", seen[EventDocumentFailed])
	}
	if seen[EventBatchCompleted] != 1 {
		t.Errorf("batch_completed seen %d times, want 1", seen[EventBatchCompleted])
	}
}

func TestWatcher_ClosesOnCancel(t *testing.T) {
	store := NewMemoryStore()
	b := sampleBatch("batch-1")
	if err := store.SaveBatch(b); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(store, "batch-1", 10*time.Millisecond)
	events := w.Watch(ctx)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not close after cancellation")
		}
	}
}

func TestDiffBatch_TerminalEventOrdering(t *testing.T) {
	b := sampleBatch("batch-1")
	b.DocumentJobs["doc-1"].Complete()
	b.DocumentJobs["doc-2"].Complete()
	b.UpdateStatus()

	events := diffBatch(nil, b)
	if len(events) == 0 {
		t.Fatal("no events from terminal snapshot")
	}
	last := events[len(events)-1]
	if last.Type != EventBatchCompleted {
		t.Errorf("last event = %s, want batch_completed", last.Type)
	}
	if last.Status != StatusCompleted {
		t.Errorf("terminal status = %q, want completed", last.Status)
	}
}
