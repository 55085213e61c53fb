// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/okian/pacer/internal/adapters/mq/queue"
	workerpool "github.com/okian/pacer/internal/adapters/mq/worker"
	"github.com/okian/pacer/internal/adapters/repository"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/policy"
	"github.com/okian/pacer/internal/domain/simulator"
	"github.com/okian/pacer/internal/domain/solver"
	"github.com/okian/pacer/internal/simulation"
	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
)

const (
	defaultQueueSize      = 10_000
	defaultStoreSize      = 10_000
	defaultMaxSimulations = 1_000
	stopTimeout           = 30 * time.Second
)

// batch collects the results of one simulation request.
type batch struct {
	results chan model.SimulationResult
}

// Service implements the API dependencies for the pacing engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	queue    jobqueue.Queue
	pool     *workerpool.Pool
	executor *simulation.Executor

	batchMu sync.Mutex
	batches map[string]*batch

	// Configuration
	policyCfg      policy.Config
	simulatorCfg   simulator.Config
	workerCount    int
	queueSize      int
	storeSize      int
	maxSimulations int

	// State
	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of simulation workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the simulation job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithStoreSize bounds the number of campaigns whose policies are kept.
func WithStoreSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.storeSize = size
		}
	}
}

// WithMaxSimulations caps the campaigns of one simulation request.
func WithMaxSimulations(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSimulations = n
		}
	}
}

// WithPolicyConfig sets the settings every new policy is built with.
func WithPolicyConfig(cfg policy.Config) Option {
	return func(s *Service) { s.policyCfg = cfg }
}

// WithSimulatorConfig sets the settings of simulated campaigns.
func WithSimulatorConfig(cfg simulator.Config) Option {
	return func(s *Service) { s.simulatorCfg = cfg }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		policyCfg:      policy.DefaultConfig(),
		simulatorCfg:   simulator.DefaultConfig(),
		workerCount:    runtime.NumCPU(),
		queueSize:      defaultQueueSize,
		storeSize:      defaultStoreSize,
		maxSimulations: defaultMaxSimulations,
		batches:        make(map[string]*batch),
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.policyCfg.Validate(); err != nil {
		return fmt.Errorf("policy settings: %w", err)
	}
	if err := s.simulatorCfg.Validate(); err != nil {
		return fmt.Errorf("simulator settings: %w", err)
	}

	s.logger.Info(ctx, "starting pacing service...")

	s.store = repository.NewPolicyStore(
		repository.WithMaxCampaigns(s.storeSize),
		repository.WithLogger(s.logger),
	)
	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.executor = simulation.NewExecutor(s.policyCfg, s.simulatorCfg, simulation.WithLogger(s.logger))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.executor, s, s.logger)
	s.pool.Start(ctx)

	s.stopCh = make(chan struct{})
	s.started = true
	s.logger.Info(ctx, "pacing service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("storeSize", s.storeSize),
	)
	return nil
}

// Stop gracefully shuts down the service. Pending simulation requests fail
// with ErrStopped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping pacing service...")
	close(s.stopCh)
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not stop cleanly", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "pacing service stopped")
}

// components returns the running components or ErrNotStarted.
func (s *Service) components() (repository.Store, jobqueue.Queue, chan struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, nil, ErrNotStarted
	}
	return s.store, s.queue, s.stopCh, nil
}

// Decide evaluates one tick of a campaign. With a campaign id the policy
// instance is kept between calls, terminal ones included, and calls are
// serialised; without one a fresh policy is used. Idle campaigns leave the
// store through LRU eviction.
func (s *Service) Decide(ctx context.Context, kind policy.Kind, campaignID string, st model.CampaignState) (model.Decision, error) {
	store, _, _, err := s.components()
	if err != nil {
		return model.Decision{}, err
	}
	if _, err := policy.ParseKind(string(kind)); err != nil {
		return model.Decision{}, err
	}

	start := time.Now()
	create := func() (policy.Policy, error) {
		return policy.New(kind, s.policyCfg, policy.WithLogger(s.logger))
	}

	var d model.Decision
	decide := func(p policy.Policy) error {
		var err error
		d, err = p.Decide(ctx, st)
		return err
	}

	if campaignID == "" {
		var p policy.Policy
		if p, err = create(); err == nil {
			err = decide(p)
		}
	} else {
		err = store.With(ctx, campaignID, kind, create, decide)
	}

	if err != nil {
		metrics.RecordDecisionError(string(kind), errors.Is(err, solver.ErrInfeasible))
		s.logger.Warn(ctx, "decision failed",
			logger.String("policy", string(kind)),
			logger.String("campaignID", campaignID),
			logger.Error(err),
		)
		return model.Decision{}, err
	}
	metrics.RecordDecision(string(kind), d.Finished, d.NumCandidatesNeeded, d.CallbackMinutes, time.Since(start))
	return d, nil
}

// Simulate runs a batch of random campaigns through the worker pool and
// returns their aggregated statistics.
func (s *Service) Simulate(ctx context.Context, req simulation.BatchRequest) (simulation.Stats, error) {
	_, queue, stopCh, err := s.components()
	if err != nil {
		return simulation.Stats{}, err
	}
	if _, err := policy.ParseKind(req.Policy); err != nil {
		return simulation.Stats{}, err
	}
	if req.Campaigns <= 0 || req.Campaigns > s.maxSimulations {
		return simulation.Stats{}, fmt.Errorf("%w: campaigns must be in [1, %d], got %d",
			simulation.ErrInvalidBatch, s.maxSimulations, req.Campaigns)
	}

	start := time.Now()
	id := uuid.NewString()
	b := &batch{results: make(chan model.SimulationResult, req.Campaigns)}
	s.register(id, b)
	defer s.unregister(id)

	for _, job := range req.Jobs(id) {
		if err := queue.Enqueue(ctx, job); err != nil {
			return simulation.Stats{}, fmt.Errorf("enqueue job %s of batch %s: %w", job.ID, id, err)
		}
	}
	s.logger.Debug(ctx, "simulation batch queued",
		logger.String("batch", id),
		logger.String("policy", req.Policy),
		logger.Int("campaigns", req.Campaigns),
	)

	results := make([]model.SimulationResult, 0, req.Campaigns)
	for len(results) < req.Campaigns {
		select {
		case res := <-b.results:
			results = append(results, res)
		case <-stopCh:
			return simulation.Stats{}, ErrStopped
		case <-ctx.Done():
			return simulation.Stats{}, ctx.Err()
		}
	}

	stats := simulation.Aggregate(req.Policy, results)
	stats.Duration = time.Since(start)
	return stats, nil
}

// Deliver routes a worker result to the batch waiting for it. Results of
// abandoned batches are dropped.
func (s *Service) Deliver(ctx context.Context, res model.SimulationResult) {
	s.batchMu.Lock()
	b, ok := s.batches[res.Batch]
	s.batchMu.Unlock()

	if !ok {
		s.logger.Debug(ctx, "dropping result of abandoned batch",
			logger.String("batch", res.Batch),
			logger.String("jobID", res.JobID),
		)
		return
	}
	select {
	case b.results <- res:
	default:
		s.logger.Warn(ctx, "batch received more results than jobs", logger.String("batch", res.Batch))
	}
}

func (s *Service) register(id string, b *batch) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batches[id] = b
}

func (s *Service) unregister(id string) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	delete(s.batches, id)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"storeSize":      s.storeSize,
		"maxSimulations": s.maxSimulations,
	}
	if s.started {
		ctx := context.Background()
		stats["queueLength"] = s.queue.Len()
		stats["activeWorkers"] = s.pool.Active()
		stats["campaigns"] = s.store.Count(ctx)

		s.batchMu.Lock()
		stats["pendingBatches"] = len(s.batches)
		s.batchMu.Unlock()
	}
	return stats
}
