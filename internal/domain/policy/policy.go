// Package policy decides, at each evaluation tick of a campaign, whether it
// is finished, how many candidates to notify and when to evaluate again.
//
// Three strategies share the Policy contract: Pacing follows a fixed-shape
// schedule, Bayesian learns the acceptance rate online, and Stochastic solves
// a sampled integer program while learning response-time frequencies.
// A Policy instance belongs to one campaign and must not be called
// concurrently.
package policy

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/posterior"
	"github.com/okian/pacer/internal/domain/solver"
	"github.com/okian/pacer/internal/domain/summary"
	"github.com/okian/pacer/pkg/logger"
)

// Kind names a policy strategy.
type Kind string

// Known policy kinds.
const (
	KindPacing     Kind = "pacing"
	KindBayesian   Kind = "bayesian"
	KindStochastic Kind = "stochastic"
)

// Kinds lists every policy kind.
var Kinds = []Kind{KindPacing, KindBayesian, KindStochastic}

// ParseKind resolves a policy name.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

// Policy decides what to do at one evaluation tick.
type Policy interface {
	// Decide evaluates state and may update the policy's learning state.
	Decide(ctx context.Context, state model.CampaignState) (model.Decision, error)
	// Name returns the policy kind.
	Name() string
}

// Config groups the settings of every strategy.
type Config struct {
	Pacing     PacingConfig     `koanf:"pacing"`
	Bayesian   BayesianConfig   `koanf:"bayesian"`
	Stochastic StochasticConfig `koanf:"stochastic"`
}

// DefaultConfig returns the tuned defaults of every strategy.
func DefaultConfig() Config {
	return Config{
		Pacing:     DefaultPacingConfig(),
		Bayesian:   DefaultBayesianConfig(),
		Stochastic: DefaultStochasticConfig(),
	}
}

// Validate checks every strategy's settings.
func (c Config) Validate() error {
	if err := c.Pacing.Validate(); err != nil {
		return err
	}
	if err := c.Bayesian.Validate(); err != nil {
		return err
	}
	return c.Stochastic.Validate()
}

// New builds a fresh policy instance of the given kind.
func New(kind Kind, cfg Config, opts ...Option) (Policy, error) {
	switch kind {
	case KindPacing:
		return NewPacing(cfg.Pacing, opts...)
	case KindBayesian:
		return NewBayesian(cfg.Bayesian, opts...)
	case KindStochastic:
		return NewStochastic(cfg.Stochastic, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, kind)
	}
}

type settings struct {
	log     logger.Logger
	seed    uint64
	seeded  bool
	solver  solver.Solver
	summary summary.Summarizer
}

// Option applies a configuration option to a policy.
type Option func(*settings)

// WithLogger sets the policy logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSeed makes every random draw of the policy reproducible.
func WithSeed(seed uint64) Option {
	return func(s *settings) {
		s.seed = seed
		s.seeded = true
	}
}

// WithSolver replaces the integer program solver.
func WithSolver(sv solver.Solver) Option {
	return func(s *settings) {
		if sv != nil {
			s.solver = sv
		}
	}
}

// WithSummarizer replaces the event statistics helper.
func WithSummarizer(sm summary.Summarizer) Option {
	return func(s *settings) {
		if sm != nil {
			s.summary = sm
		}
	}
}

func newSettings(name string, opts []Option) settings {
	s := settings{
		log:     logger.Nop(),
		solver:  solver.Enumerator{},
		summary: summary.Impact{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	if !s.seeded {
		s.seed = rand.Uint64()
	}
	s.log = s.log.Named(name)
	return s
}

// terminated reports whether the campaign is over: deadline reached,
// vacancies fulfilled, or pool exhausted.
func terminated(sm summary.Summarizer, st *model.CampaignState) bool {
	if !st.Now.Before(st.Deadline) {
		return true
	}
	if st.NumVacancies-sm.TotalAcceptedOffers(st.ImpactedCandidates).Value <= 0 {
		return true
	}
	return st.NumRemainingInPool <= 0
}

// learnAcceptance feeds the tick's acceptance rate to the posterior when
// anyone accepted.
func learnAcceptance(sm summary.Summarizer, m *posterior.Model, events []model.ImpactEvent) error {
	rate := sm.FirstAcceptedRate(events)
	if rate.Value <= 0 {
		return nil
	}
	return m.Update(float64(rate.Value))
}
