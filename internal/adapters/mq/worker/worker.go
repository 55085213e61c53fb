// Package worker runs queued simulation jobs and hands their results to a sink.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// ErrNoResult is reported when a simulator returns a result for another job.
var ErrNoResult = errors.New("simulator returned no result for job")

// Simulator runs one campaign simulation.
type Simulator interface {
	Simulate(ctx context.Context, job model.SimulationJob) model.SimulationResult
}

// Sink receives finished results.
type Sink interface {
	Deliver(ctx context.Context, res model.SimulationResult)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.SimulationJob
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of a Queue.
type InMemoryWorker struct {
	queue Queue
	sim   Simulator
	sink  Sink
	name  string

	active *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, sim Simulator, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		sim:      sim,
		sink:     sink,
		name:     "worker",
		active:   new(atomic.Int64),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process simulates one job and delivers its result, errors included.
func (w *InMemoryWorker) process(ctx context.Context, job model.SimulationJob) error {
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
	}()

	res := w.sim.Simulate(ctx, job)
	if res.JobID != job.ID {
		res = model.SimulationResult{JobID: job.ID, Policy: job.Policy, Err: ErrNoResult.Error()}
	}
	res.Batch = job.Batch
	w.sink.Deliver(ctx, res)

	if res.Err != "" {
		metrics.RecordWorkerError()
		return fmt.Errorf("job %s (%s): %s", job.ID, job.Policy, res.Err)
	}
	w.logger.Debug(ctx, "job done",
		logger.String("jobID", job.ID),
		logger.Int("ticks", res.Ticks),
		logger.Bool("fulfilled", res.Fulfilled),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses one worker
// per CPU since simulations are CPU bound.
func NewPool(workerCount int, q Queue, sim Simulator, sink Sink, log logger.Logger) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	if log == nil {
		log = logger.Nop()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  log.Named("worker-pool"),
	}
	for i := range workerCount {
		p.workers[i] = NewInMemoryWorker(q, sim, sink,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(log),
			withActiveCounter(&p.active),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of workers currently running a job.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for every worker to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
