// Package simulation runs simulated campaigns end to end and aggregates
// their outcomes. It backs both the worker pool and the simulate CLI.
package simulation

import (
	"context"
	"fmt"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/policy"
	"github.com/okian/pacer/internal/domain/scenario"
	"github.com/okian/pacer/internal/domain/simulator"
	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
)

// policySeedOffset keeps the policy's random stream apart from the simulator's.
const policySeedOffset = 1

// Trajectory is one simulated campaign and every step taken in it.
type Trajectory struct {
	Result model.SimulationResult `json:"result"`
	Steps  []scenario.Step        `json:"steps"`
}

// Executor builds a random campaign and a fresh policy per job and runs the
// scenario to completion.
type Executor struct {
	policyCfg policy.Config
	simCfg    simulator.Config
	log       logger.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// NewExecutor returns an executor using the given policy and simulator settings.
func NewExecutor(pc policy.Config, sc simulator.Config, opts ...Option) *Executor {
	e := &Executor{policyCfg: pc, simCfg: sc, log: logger.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("simulation")
	return e
}

// Simulate runs job and returns only its summary.
func (e *Executor) Simulate(ctx context.Context, job model.SimulationJob) model.SimulationResult {
	return e.Run(ctx, job).Result
}

// Run simulates one campaign. Failures are reported in the result's Err so a
// batch keeps going; the steps taken before the failure are kept.
func (e *Executor) Run(ctx context.Context, job model.SimulationJob) Trajectory {
	steps, err := e.run(ctx, job)
	res := scenario.Summarize(job.ID, job.Policy, steps)
	res.Batch = job.Batch
	if err != nil {
		res.Err = err.Error()
		e.log.Warn(ctx, "simulation failed",
			logger.String("jobID", job.ID),
			logger.String("policy", job.Policy),
			logger.Error(err),
		)
	}
	metrics.RecordSimulation(job.Policy, res.Ticks, res.Fulfilled, err)
	return Trajectory{Result: res, Steps: steps}
}

func (e *Executor) run(ctx context.Context, job model.SimulationJob) ([]scenario.Step, error) {
	kind, err := policy.ParseKind(job.Policy)
	if err != nil {
		return nil, err
	}
	sim, err := simulator.NewRandom(
		simulator.WithName(job.ID),
		simulator.WithConfig(e.simCfg),
		simulator.WithSeed(job.Seed),
	)
	if err != nil {
		return nil, fmt.Errorf("building campaign: %w", err)
	}
	p, err := policy.New(kind, e.policyCfg,
		policy.WithSeed(job.Seed+policySeedOffset),
		policy.WithLogger(e.log),
	)
	if err != nil {
		return nil, fmt.Errorf("building policy: %w", err)
	}
	return scenario.New(sim, p, scenario.WithLogger(e.log)).Run(ctx)
}
