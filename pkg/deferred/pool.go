package deferred

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_deferred_tasks_total",
		Help: "Deferred tasks by execution outcome",
	}, []string{"result"}) // "async", "inline", "saturated", "panic"

	tasksInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edge_deferred_tasks_inflight",
		Help: "Deferred tasks currently running in the background",
	})
)

// PoolConfig holds Pool configuration.
type PoolConfig struct {
	// MaxConcurrency is the maximum number of tasks running in the background.
	MaxConcurrency int

	// TaskTimeout bounds each task.
	TaskTimeout time.Duration
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConcurrency: 64,
		TaskTimeout:    DefaultTaskTimeout,
	}
}

// Pool is a Scheduler that runs tasks on background goroutines.
//
// When all slots are busy, or after Shutdown, Schedule runs the task inline
// instead of queueing it: the caller pays the latency, but the work is not
// lost.
type Pool struct {
	config PoolConfig
	logger zerolog.Logger

	slots  chan struct{}
	wg     sync.WaitGroup
	mu     sync.RWMutex // guards closed against wg.Add racing Shutdown
	closed bool
}

// NewPool creates a background scheduler.
func NewPool(config PoolConfig, logger zerolog.Logger) *Pool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 64
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = DefaultTaskTimeout
	}
	return &Pool{
		config: config,
		logger: logger,
		slots:  make(chan struct{}, config.MaxConcurrency),
	}
}

// Schedule implements Scheduler.
func (p *Pool) Schedule(ctx context.Context, name string, task Task) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		run(ctx, name, p.config.TaskTimeout, p.logger, task)
		tasksTotal.WithLabelValues("inline").Inc()
		return
	}

	select {
	case p.slots <- struct{}{}:
	default:
		p.mu.RUnlock()
		p.logger.Debug().
			Str("task", name).
			Int("max_concurrency", p.config.MaxConcurrency).
			Msg("Deferred pool saturated, running task inline")
		run(ctx, name, p.config.TaskTimeout, p.logger, task)
		tasksTotal.WithLabelValues("saturated").Inc()
		return
	}

	p.wg.Add(1)
	p.mu.RUnlock()
	tasksInflight.Inc()
	go func() {
		defer func() {
			<-p.slots
			tasksInflight.Dec()
			p.wg.Done()
		}()
		run(ctx, name, p.config.TaskTimeout, p.logger, task)
		tasksTotal.WithLabelValues("async").Inc()
	}()
}

// Shutdown stops accepting background work and waits for in-flight tasks.
// Tasks scheduled after Shutdown run inline.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info().Msg("Deferred pool drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain deferred pool: %w", ctx.Err())
	}
}
