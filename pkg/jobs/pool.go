package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job represents one unit of work handed to a Pool.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Enqueued time.Time
}

// Result pairs a job with its handler outcome.
type Result[T any] struct {
	Job    Job
	Value  T
	Err    error
	Worker int
}

// Handler processes a job.
type Handler[T any] func(context.Context, Job) (T, error)

// PoolConfig configures worker pool behaviour.
type PoolConfig struct {
	Workers int
	Logger  *zap.Logger
}

// Pool runs a finite batch of jobs on a fixed number of goroutines. At most
// Workers handlers are executing at any instant.
type Pool[T any] struct {
	name    string
	handler Handler[T]
	workers int
	logger  *zap.Logger
}

// NewPool builds a pool with the provided handler.
func NewPool[T any](name string, handler Handler[T], cfg PoolConfig) *Pool[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pool[T]{
		name:    name,
		handler: handler,
		workers: cfg.Workers,
		logger:  cfg.Logger,
	}
}

// Workers reports the concurrency cap.
func (p *Pool[T]) Workers() int {
	return p.workers
}

// Run feeds jobs to the workers and blocks until every worker has exited.
// Each worker keeps its own result slice; slices are merged after the join so
// no result is ever appended concurrently. Jobs that could not be handed out
// because ctx ended are reported with ctx.Err().
func (p *Pool[T]) Run(ctx context.Context, batch []Job) []Result[T] {
	if len(batch) == 0 {
		return nil
	}
	started := time.Now()

	workers := p.workers
	if workers > len(batch) {
		workers = len(batch)
	}

	queue := make(chan Job)
	perWorker := make([][]Result[T], workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			local := make([]Result[T], 0, len(batch)/workers+1)
			for job := range queue {
				value, err := p.handle(ctx, job)
				local = append(local, Result[T]{Job: job, Value: value, Err: err, Worker: workerID})
			}
			perWorker[workerID] = local
		}(i)
	}

	var unfed []Result[T]
feed:
	for i, job := range batch {
		if job.Enqueued.IsZero() {
			job.Enqueued = time.Now().UTC()
		}
		select {
		case <-ctx.Done():
			for _, rest := range batch[i:] {
				unfed = append(unfed, Result[T]{Job: rest, Err: ctx.Err(), Worker: -1})
			}
			break feed
		case queue <- job:
		}
	}
	close(queue)
	wg.Wait()

	results := make([]Result[T], 0, len(batch))
	for _, local := range perWorker {
		results = append(results, local...)
	}
	results = append(results, unfed...)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	p.logger.Debug("pool batch finished",
		zap.String("pool", p.name),
		zap.Int("jobs", len(batch)),
		zap.Int("workers", workers),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(started)),
	)
	return results
}

func (p *Pool[T]) handle(ctx context.Context, job Job) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", zap.String("pool", p.name), zap.String("job_id", job.ID), zap.Any("panic", r))
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return p.handler(ctx, job)
}
