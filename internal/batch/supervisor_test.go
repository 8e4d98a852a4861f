package batch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSupervisor_ShutdownWaitsForTasks(t *testing.T) {
	sup := NewSupervisor()
	var finished atomic.Bool

	release := make(chan struct{})
	if err := sup.Go("slow-task", func() {
		<-release
		finished.Store(true)
	}); err != nil {
		t.Fatalf("Go: %v", err)
	}

	if active := sup.Active(); len(active) != 1 || active[0] != "slow-task" {
		t.Errorf("active = %v, want [slow-task]", active)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sup.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !finished.Load() {
		t.Error("shutdown returned before the task finished")
	}
	if active := sup.Active(); len(active) != 0 {
		t.Errorf("active after shutdown = %v, want empty", active)
	}
}

func TestSupervisor_RejectsAfterShutdown(t *testing.T) {
	sup := NewSupervisor()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sup.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if err := sup.Go("late", func() {}); err == nil {
		t.Error("expected rejection after shutdown")
	}
}

func TestSupervisor_RejectsDuplicateNames(t *testing.T) {
	sup := NewSupervisor()
	release := make(chan struct{})
	defer close(release)

	if err := sup.Go("task", func() { <-release }); err != nil {
		t.Fatalf("Go: %v", err)
	}
	if err := sup.Go("task", func() {}); err == nil {
		t.Error("expected duplicate name rejection")
	}
}

func TestSupervisor_ShutdownTimeout(t *testing.T) {
	sup := NewSupervisor()
	release := make(chan struct{})
	defer close(release)

	if err := sup.Go("stuck", func() { <-release }); err != nil {
		t.Fatalf("Go: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sup.Shutdown(ctx); err == nil {
		t.Error("expected context error from timed-out shutdown")
	}
}
