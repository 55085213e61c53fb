// Package scenario drives a policy against a simulated campaign until the
// campaign ends.
package scenario

import (
	"context"
	"fmt"
	"iter"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/policy"
	"github.com/okian/pacer/internal/domain/summary"
	"github.com/okian/pacer/pkg/logger"
)

// Environment produces campaign snapshots for a policy's decisions.
type Environment interface {
	Advance(notify, minutes int) iter.Seq[model.CampaignState]
}

// Step is one evaluated tick of a run.
type Step struct {
	State          model.CampaignState `json:"state"`
	Decision       model.Decision      `json:"decision"`
	TotalAccepted  int                 `json:"total_accepted"`
	OffersAccepted int                 `json:"offers_accepted"`
}

// Runner alternates Environment.Advance and Policy.Decide.
type Runner struct {
	env    Environment
	policy policy.Policy
	log    logger.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a runner for one campaign.
func New(env Environment, p policy.Policy, opts ...Option) *Runner {
	r := &Runner{env: env, policy: p, log: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the policy instance, with whatever it learned.
func (r *Runner) Policy() policy.Policy { return r.policy }

// Run starts with no notifications one minute in, and stops when the
// environment produces no snapshot or the decision is terminal. Steps
// recorded before a policy error are returned along with it.
func (r *Runner) Run(ctx context.Context) ([]Step, error) {
	var steps []Step
	notify, minutes := 0, 1
	for {
		if err := ctx.Err(); err != nil {
			return steps, err
		}

		advanced := false
		for st := range r.env.Advance(notify, minutes) {
			advanced = true
			d, err := r.policy.Decide(ctx, st)
			if err != nil {
				return steps, fmt.Errorf("step %d (%s): %w", len(steps), st.CorrelationID, err)
			}
			steps = append(steps, Step{
				State:          st,
				Decision:       d,
				TotalAccepted:  summary.AcceptedNotifications(st.ImpactedCandidates),
				OffersAccepted: summary.Impact{}.TotalAcceptedOffers(st.ImpactedCandidates).Value,
			})
			if d.Finished {
				r.log.Debug(ctx, "campaign finished",
					logger.String("correlationId", st.CorrelationID),
					logger.Int("steps", len(steps)))
				return steps, nil
			}
			notify, minutes = d.NumCandidatesNeeded, d.CallbackMinutes
		}
		if !advanced {
			r.log.Debug(ctx, "environment stopped advancing",
				logger.Int("steps", len(steps)),
				logger.Int("minutes", minutes))
			return steps, nil
		}
	}
}

// Summarize condenses a run into a SimulationResult. A campaign without
// vacancies is never fulfilled.
func Summarize(jobID, policyName string, steps []Step) model.SimulationResult {
	res := model.SimulationResult{JobID: jobID, Policy: policyName, Ticks: len(steps)}
	if len(steps) == 0 {
		return res
	}
	last := steps[len(steps)-1]
	res.Notified = len(last.State.ImpactedCandidates)
	res.Accepted = last.TotalAccepted
	res.OffersAccepted = last.OffersAccepted
	res.Vacancies = last.State.NumVacancies
	res.Fulfilled = res.Vacancies > 0 && res.OffersAccepted >= res.Vacancies
	return res
}
