package messagepipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrPoolStopped is returned by Submit after Stop, and completes any task that
// was still queued when the pool stopped.
var ErrPoolStopped = errors.New("messagepipeline: worker pool stopped")

// Task is a unit of work run by a WorkerPool.
type Task func(ctx context.Context) error

// WorkerPoolConfig holds configuration for a WorkerPool.
type WorkerPoolConfig struct {
	NumWorkers int
	QueueSize  int
}

// NewWorkerPoolDefaults provides a config with sensible defaults.
func NewWorkerPoolDefaults() WorkerPoolConfig {
	return WorkerPoolConfig{
		NumWorkers: 5,
		QueueSize:  100,
	}
}

type job struct {
	task   Task
	future *Future
}

// WorkerPool runs submitted tasks on a fixed number of goroutines, completing
// each task's Future with the error it returns.
type WorkerPool struct {
	numWorkers int
	jobs       chan job
	stopping   chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	closed     bool
	logger     zerolog.Logger
	wg         sync.WaitGroup
}

// NewWorkerPool creates a new WorkerPool. Call Start before submitting work.
func NewWorkerPool(cfg WorkerPoolConfig, logger zerolog.Logger) *WorkerPool {
	defaults := NewWorkerPoolDefaults()
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = defaults.NumWorkers
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	return &WorkerPool{
		numWorkers: cfg.NumWorkers,
		jobs:       make(chan job, cfg.QueueSize),
		stopping:   make(chan struct{}),
		logger:     logger.With().Str("component", "WorkerPool").Logger(),
	}
}

// Start spawns the workers. They run until Stop is called or ctx is cancelled.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info().Int("worker_count", p.numWorkers).Msg("Starting workers...")
	p.wg.Add(p.numWorkers)
	for i := 0; i < p.numWorkers; i++ {
		go p.worker(ctx, i)
	}
}

// Submit queues task and returns its Future. It blocks while the queue is full,
// until ctx is done or the pool stops.
func (p *WorkerPool) Submit(ctx context.Context, task Task) (*Future, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolStopped
	}

	j := job{task: task, future: NewFuture()}
	select {
	case p.jobs <- j:
		return j.future, nil
	case <-p.stopping:
		return nil, ErrPoolStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop stops accepting tasks and waits for the workers to finish what is queued.
// Tasks still queued when ctx expires are completed with ErrPoolStopped.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.logger.Info().Msg("Stopping workers...")
	p.stopOnce.Do(func() {
		close(p.stopping)
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})

	workerDone := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(workerDone)
	}()

	select {
	case <-workerDone:
		p.logger.Info().Msg("All workers completed gracefully.")
	case <-ctx.Done():
		p.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for workers to finish.")
		p.abandon()
		return ctx.Err()
	}
	p.abandon()
	return nil
}

func (p *WorkerPool) abandon() {
	for j := range p.jobs {
		j.future.Complete(ErrPoolStopped)
	}
}

func (p *WorkerPool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()
	p.logger.Debug().Int("worker_id", workerID).Msg("Worker started.")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Int("worker_id", workerID).Msg("Worker shutting down due to context cancellation.")
			return
		case j, ok := <-p.jobs:
			if !ok {
				p.logger.Debug().Int("worker_id", workerID).Msg("Queue closed, worker exiting.")
				return
			}
			j.future.Complete(p.run(ctx, j.task, workerID))
		}
	}
}

func (p *WorkerPool) run(ctx context.Context, task Task, workerID int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Int("worker_id", workerID).Interface("panic", r).Msg("Task panicked.")
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}
