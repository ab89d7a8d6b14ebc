package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
)

// Handler processes claimed jobs of one type. Handlers must be idempotent:
// the sender retries deliveries and the queue re-runs retryable failures.
type Handler interface {
	Type() enums.JobType
	Handle(ctx context.Context, job *models.QueueJob) error
}

// PoolOptions configures a worker pool over one queue.
type PoolOptions struct {
	Queue        *Queue
	Handlers     []Handler
	Workers      int
	PollInterval time.Duration
	// PruneInterval bounds how often retention runs; zero disables pruning.
	PruneInterval time.Duration
}

// Pool runs a bounded set of workers claiming jobs for the registered
// handler types. Each worker processes one job at a time on its own DB
// handle.
type Pool struct {
	queue         *Queue
	handlers      map[enums.JobType]Handler
	types         []enums.JobType
	workers       int
	pollInterval  time.Duration
	pruneInterval time.Duration
}

// NewPool validates the handler set and builds a pool.
func NewPool(opts PoolOptions) (*Pool, error) {
	if opts.Queue == nil {
		return nil, errors.New("queue required")
	}
	if len(opts.Handlers) == 0 {
		return nil, errors.New("at least one handler required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}

	handlers := make(map[enums.JobType]Handler, len(opts.Handlers))
	types := make([]enums.JobType, 0, len(opts.Handlers))
	for _, h := range opts.Handlers {
		if h == nil {
			continue
		}
		if _, exists := handlers[h.Type()]; exists {
			return nil, fmt.Errorf("duplicate handler for job type %s", h.Type())
		}
		handlers[h.Type()] = h
		types = append(types, h.Type())
	}

	return &Pool{
		queue:         opts.Queue,
		handlers:      handlers,
		types:         types,
		workers:       workers,
		pollInterval:  pollInterval,
		pruneInterval: opts.PruneInterval,
	}, nil
}

// Run starts the workers and blocks until the context is canceled.
func (p *Pool) Run(ctx context.Context) error {
	logg := p.queue.Logger()

	done := make(chan struct{})
	for i := 0; i < p.workers; i++ {
		go func(worker int) {
			defer func() { done <- struct{}{} }()
			p.workLoop(ctx, worker)
		}(i)
	}

	if p.pruneInterval > 0 {
		go p.pruneLoop(ctx)
	}

	for i := 0; i < p.workers; i++ {
		<-done
	}
	logg.Info(ctx, "queue pool stopped")
	return ctx.Err()
}

func (p *Pool) workLoop(ctx context.Context, worker int) {
	logg := p.queue.Logger()
	workerCtx := logg.WithField(ctx, "queue_worker", worker)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.ClaimNext(ctx, p.types...)
		if err != nil {
			logg.Error(workerCtx, "claim failed", err)
			p.sleep(ctx)
			continue
		}
		if job == nil {
			p.sleep(ctx)
			continue
		}
		p.process(workerCtx, job)
	}
}

func (p *Pool) process(ctx context.Context, job *models.QueueJob) {
	logg := p.queue.Logger()
	jobCtx := logg.WithJob(ctx, job.ID)

	handler, ok := p.handlers[job.Type]
	if !ok {
		// Claimed types always have handlers; guard anyway.
		_ = p.queue.Fail(jobCtx, job, fmt.Errorf("no handler for type %s", job.Type))
		return
	}

	start := time.Now()
	err := handler.Handle(jobCtx, job)
	p.queue.ObserveDuration(job.Type, time.Since(start))

	if err != nil {
		logg.Error(jobCtx, "job failed", err)
		if failErr := p.queue.Fail(jobCtx, job, err); failErr != nil {
			logg.Error(jobCtx, "recording job failure failed", failErr)
		}
		return
	}
	if err := p.queue.Complete(jobCtx, job); err != nil {
		logg.Error(jobCtx, "recording job completion failed", err)
	}
}

func (p *Pool) pruneLoop(ctx context.Context) {
	logg := p.queue.Logger()
	ticker := time.NewTicker(p.pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.queue.Prune(ctx); err != nil {
				logg.Error(ctx, "queue prune failed", err)
			}
		}
	}
}

func (p *Pool) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.pollInterval):
	}
}
