package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Supervisor tracks every goroutine the coordinator spawns so shutdown can
// wait for in-flight documents instead of abandoning them.
type Supervisor struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	active   map[string]time.Time
	shutdown bool
}

// NewSupervisor creates an empty Supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{active: map[string]time.Time{}}
}

// Go runs fn in a supervised goroutine named name. Returns an error after
// Shutdown has begun.
func (s *Supervisor) Go(name string, fn func()) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return fmt.Errorf("supervisor is shutting down, rejecting %s", name)
	}
	if _, exists := s.active[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("task %s is already running", name)
	}
	s.active[name] = time.Now().UTC()
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.active, name)
			s.mu.Unlock()
			s.wg.Done()
		}()
		fn()
	}()
	return nil
}

// Active returns the names of running tasks, sorted.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.active))
	for name := range s.active {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Shutdown stops accepting new tasks and waits for running ones. Returns
// the context error if it expires first; tasks keep running in that case.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown wait: %w", ctx.Err())
	}
}
