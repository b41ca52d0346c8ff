package testutil

import (
	"context"
	"sync"

	"github.com/7and1/famouspeople.id-sub000/pkg/deferred"
)

// RecordingScheduler queues deferred tasks until the test runs them, so a
// test can assert exactly what was scheduled before anything executes.
type RecordingScheduler struct {
	mu    sync.Mutex
	names []string
	tasks []queuedTask
}

type queuedTask struct {
	ctx  context.Context
	task deferred.Task
}

// Schedule implements deferred.Scheduler.
func (s *RecordingScheduler) Schedule(ctx context.Context, name string, task deferred.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.tasks = append(s.tasks, queuedTask{ctx: context.WithoutCancel(ctx), task: task})
}

// Names returns the names of every task scheduled so far.
func (s *RecordingScheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

// Count returns how many tasks named name were scheduled.
func (s *RecordingScheduler) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, got := range s.names {
		if got == name {
			n++
		}
	}
	return n
}

// Pending returns the number of tasks not yet run.
func (s *RecordingScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// RunAll runs queued tasks in order, including tasks they schedule.
func (s *RecordingScheduler) RunAll() {
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.mu.Unlock()
			return
		}
		next := s.tasks[0]
		s.tasks = s.tasks[1:]
		s.mu.Unlock()

		next.task(next.ctx)
	}
}
