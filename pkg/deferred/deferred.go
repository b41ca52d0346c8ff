// Package deferred runs work after a response has been returned.
//
// Store writes and background revalidation are handed to a Scheduler so
// that store latency never adds to response latency. Two implementations
// exist:
//
//   - Pool runs tasks on background goroutines and keeps them alive until
//     they finish, even though the request that scheduled them is gone.
//     Shutdown drains in-flight tasks before the process exits.
//   - Inline runs the task before Schedule returns. This is the fallback
//     for hosts without a background execution model: correct, but the
//     write latency lands on the request.
//
// Tasks never see the scheduling request's cancellation. They receive a
// context detached from it and bounded by the scheduler's task timeout.
package deferred

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTaskTimeout bounds a single deferred task.
const DefaultTaskTimeout = 10 * time.Second

// Task is a unit of deferred work.
type Task func(ctx context.Context)

// Scheduler schedules tasks to run independently of the caller's response.
type Scheduler interface {
	// Schedule arranges for task to run to completion. name labels the
	// task in logs.
	Schedule(ctx context.Context, name string, task Task)
}

// Inline is a Scheduler that runs every task synchronously.
type Inline struct {
	// Timeout bounds each task. Zero means DefaultTaskTimeout.
	Timeout time.Duration

	// Logger receives panics recovered from tasks.
	Logger zerolog.Logger
}

// NewInline creates a synchronous scheduler.
func NewInline(logger zerolog.Logger) *Inline {
	return &Inline{Timeout: DefaultTaskTimeout, Logger: logger}
}

// Schedule implements Scheduler.
func (s *Inline) Schedule(ctx context.Context, name string, task Task) {
	run(ctx, name, s.Timeout, s.Logger, task)
	tasksTotal.WithLabelValues("inline").Inc()
}

// run executes task on a detached, time-bounded context and converts a
// panic into a log line.
func run(parent context.Context, name string, timeout time.Duration, logger zerolog.Logger, task Task) {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			tasksTotal.WithLabelValues("panic").Inc()
			logger.Error().
				Str("task", name).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Deferred task panicked")
		}
	}()

	task(ctx)
}
