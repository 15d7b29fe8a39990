// Package scheduler runs a function on a fixed interval until stopped.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Task is one running periodic job.
type Task struct {
	cancel context.CancelFunc
	loop   chan struct{}
	done   chan struct{}
	ticks  sync.WaitGroup
	once   sync.Once
}

// Every calls fn once per interval, starting one interval from now. Each call
// gets its own goroutine so a slow call never delays the next tick; calls may
// overlap. fn's context is cancelled by Stop or when ctx ends.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, loop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(t.loop)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				t.ticks.Add(1)
				go func() {
					defer t.ticks.Done()
					fn(ctx)
				}()
			}
		}
	}()
	go func() {
		<-t.loop
		t.ticks.Wait()
		close(t.done)
	}()
	return t
}

// Stop cancels in-flight calls and returns once no new tick can fire.
// It does not wait for in-flight calls; use Wait for that.
func (t *Task) Stop() {
	t.once.Do(t.cancel)
	<-t.loop
}

// Wait blocks until every call started by the task has returned.
func (t *Task) Wait() {
	<-t.done
}

// Done is closed once the task has stopped and every call has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Scheduler owns at most one Task at a time.
type Scheduler struct {
	fn func(context.Context)

	mu   sync.Mutex
	task *Task
}

func New(fn func(context.Context)) *Scheduler {
	return &Scheduler{fn: fn}
}

// Start begins ticking at interval. It is a no-op while already running.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil {
		return false
	}
	s.task = Every(ctx, interval, s.fn)
	return true
}

// Stop stops the running task, if any, and returns it so callers can Wait.
func (s *Scheduler) Stop() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.task
	if t == nil {
		return nil
	}
	s.task = nil
	t.Stop()
	return t
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task != nil
}
