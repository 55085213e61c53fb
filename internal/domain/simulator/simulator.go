// Package simulator models the environment a pacing policy acts on: a
// candidate pool that is notified in batches and answers over time.
package simulator

import (
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/okian/pacer/internal/domain/model"
)

// Config holds the parameters of the environment model.
type Config struct {
	// AcceptWeight and RejectWeight are the per-draw probabilities of a
	// notification resolving; the rest stays pending.
	AcceptWeight float64 `koanf:"accept_weight"`
	RejectWeight float64 `koanf:"reject_weight"`
	// OfferAcceptProb is the chance an accepted notification becomes an offer.
	OfferAcceptProb float64 `koanf:"offer_accept_probability"`
	// Response times of resolved notifications follow Weibull(shape, scale).
	WeibullShape float64 `koanf:"weibull_shape"`
	WeibullScale float64 `koanf:"weibull_scale"`
}

// DefaultConfig returns the reference environment.
func DefaultConfig() Config {
	return Config{
		AcceptWeight:    0.1,
		RejectWeight:    0.1,
		OfferAcceptProb: 0.6,
		WeibullShape:    2.4,
		WeibullScale:    10.5,
	}
}

// Validate checks the environment parameters.
func (c Config) Validate() error {
	switch {
	case c.AcceptWeight < 0 || c.RejectWeight < 0 || c.AcceptWeight+c.RejectWeight > 1:
		return fmt.Errorf("%w: accept %v and reject %v weights must be non-negative and sum to at most 1",
			ErrInvalidConfig, c.AcceptWeight, c.RejectWeight)
	case c.WeibullShape <= 0 || c.WeibullScale <= 0:
		return fmt.Errorf("%w: weibull shape %v and scale %v must be positive",
			ErrInvalidConfig, c.WeibullShape, c.WeibullScale)
	}
	_, err := NewTransitionMatrix(c.OfferAcceptProb)
	return err
}

// Campaign is the opening state of a simulated campaign.
type Campaign struct {
	Start     time.Time
	Deadline  time.Time
	Vacancies int
	Pool      int
}

func (c Campaign) validate() error {
	switch {
	case c.Start.IsZero() || c.Deadline.IsZero():
		return fmt.Errorf("%w: missing start or deadline", ErrInvalidCampaign)
	case c.Vacancies < 0 || c.Pool < 0:
		return fmt.Errorf("%w: negative vacancies %d or pool %d", ErrInvalidCampaign, c.Vacancies, c.Pool)
	}
	return nil
}

type options struct {
	name   string
	cfg    Config
	seed   uint64
	seeded bool
}

// Option configures a Simulator.
type Option func(*options)

// WithName sets the name used in snapshot correlation ids.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithConfig replaces the environment parameters.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithSeed makes every draw of the simulator reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.seeded = true
	}
}

// Simulator evolves one campaign. It is not safe for concurrent use.
type Simulator struct {
	name    string
	counter int

	pool      int
	vacancies int
	now       time.Time
	deadline  time.Time
	events    []model.ImpactEvent

	matrix   TransitionMatrix
	status   distuv.Categorical
	outcomes map[model.NotificationStatus]distuv.Categorical
	response distuv.Weibull
}

// New starts a simulator from an explicit campaign.
func New(c Campaign, opts ...Option) (*Simulator, error) {
	o, rng := buildOptions(opts)
	if err := c.validate(); err != nil {
		return nil, err
	}
	return newSimulator(c, o, rng)
}

// Random campaign generation parameters.
const (
	poolMu1, poolMu2           = 200, 50
	vacanciesMu1, vacanciesMu2 = 9, 2
	maxWindowDays              = 20
)

// NewRandom starts a simulator from a random campaign: the pool and the
// vacancies are Skellam draws clamped at zero, the start falls in 2022 and
// the deadline up to twenty days later.
func NewRandom(opts ...Option) (*Simulator, error) {
	o, rng := buildOptions(opts)
	start := time.Date(2022, time.Month(1+rng.IntN(11)), 1+rng.IntN(27), 0, 0, 0, 0, time.UTC)
	window := rng.Float64() * float64(1+rng.IntN(maxWindowDays-1)) * float64(24*time.Hour)
	c := Campaign{
		Start:     start,
		Deadline:  start.Add(time.Duration(window)),
		Vacancies: skellam(rng, vacanciesMu1, vacanciesMu2),
		Pool:      skellam(rng, poolMu1, poolMu2),
	}
	return newSimulator(c, o, rng)
}

func buildOptions(opts []Option) (options, *rand.Rand) {
	o := options{name: "1", cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.seeded {
		o.seed = rand.Uint64()
	}
	return o, rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))
}

// skellam draws the difference of two Poisson variates, clamped at zero.
func skellam(rng *rand.Rand, mu1, mu2 float64) int {
	a := distuv.Poisson{Lambda: mu1, Src: rng}.Rand()
	b := distuv.Poisson{Lambda: mu2, Src: rng}.Rand()
	return max(0, int(a-b))
}

func newSimulator(c Campaign, o options, rng *rand.Rand) (*Simulator, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	matrix, err := NewTransitionMatrix(o.cfg.OfferAcceptProb)
	if err != nil {
		return nil, err
	}

	outcomes := make(map[model.NotificationStatus]distuv.Categorical, len(model.NotificationStatuses))
	for _, st := range model.NotificationStatuses {
		row := matrix.Outcomes(st)
		weights := make([]float64, len(row))
		for i, oc := range row {
			weights[i] = oc.Probability
		}
		outcomes[st] = distuv.NewCategorical(weights, rng)
	}

	w := o.cfg
	// in model.NotificationStatuses order
	statusWeights := []float64{math.Max(0, 1-w.AcceptWeight-w.RejectWeight), w.AcceptWeight, w.RejectWeight}
	return &Simulator{
		name:      o.name,
		pool:      c.Pool,
		vacancies: c.Vacancies,
		now:       c.Start,
		deadline:  c.Deadline,
		matrix:    matrix,
		status:    distuv.NewCategorical(statusWeights, rng),
		outcomes:  outcomes,
		response:  distuv.Weibull{K: w.WeibullShape, Lambda: w.WeibullScale, Src: rng},
	}, nil
}

// State returns the current campaign without advancing it.
func (s *Simulator) State() model.CampaignState {
	return model.CampaignState{
		CorrelationID:      s.correlationID(),
		Now:                s.now,
		Deadline:           s.deadline,
		NumVacancies:       s.vacancies,
		NumRemainingInPool: s.pool,
		ImpactedCandidates: slices.Clone(s.events),
	}
}

// Advance notifies up to notify candidates and moves the clock forward by
// minutes. The returned sequence yields exactly one snapshot, or none when
// minutes ≤ 0, the deadline has passed or the pool is exhausted; in that case
// the simulator is left untouched. The step runs on first iteration and
// only once.
func (s *Simulator) Advance(notify, minutes int) iter.Seq[model.CampaignState] {
	var (
		once sync.Once
		st   model.CampaignState
		ok   bool
	)
	return func(yield func(model.CampaignState) bool) {
		once.Do(func() { st, ok = s.step(notify, minutes) })
		if ok {
			yield(st.Clone())
		}
	}
}

func (s *Simulator) step(notify, minutes int) (model.CampaignState, bool) {
	if minutes <= 0 || !s.now.Before(s.deadline) || s.pool <= 0 {
		return model.CampaignState{}, false
	}
	notify = max(0, min(notify, s.pool))

	s.now = s.now.Add(time.Duration(minutes) * time.Minute)
	s.reroll(minutes)
	for range notify {
		s.events = append(s.events, s.notify(minutes))
	}
	s.pool -= notify

	st := s.State()
	s.counter++
	return st, true
}

// notify draws the outcome of a fresh notification.
func (s *Simulator) notify(minutes int) model.ImpactEvent {
	ns, cs := s.draw()
	e := model.ImpactEvent{NotificationStatus: ns, CandidateStatus: cs, ResponseMinutes: minutes}
	if ns.Resolved() {
		e.ResponseMinutes = s.responseTime()
	}
	return e
}

// reroll gives every pending notification another chance to resolve.
func (s *Simulator) reroll(minutes int) {
	for i := range s.events {
		e := &s.events[i]
		if e.NotificationStatus != model.NotificationPending {
			continue
		}
		ns, cs := s.draw()
		e.NotificationStatus, e.CandidateStatus = ns, cs
		if ns.Resolved() {
			e.ResponseMinutes += min(minutes, s.responseTime())
		} else {
			e.ResponseMinutes += minutes
		}
	}
}

func (s *Simulator) draw() (model.NotificationStatus, model.CandidateStatus) {
	ns := model.NotificationStatuses[int(s.status.Rand())]
	row := s.matrix.Outcomes(ns)
	return ns, row[int(s.outcomes[ns].Rand())].Status
}

func (s *Simulator) responseTime() int {
	return int(math.Max(0, s.response.Rand()))
}

func (s *Simulator) correlationID() string {
	return fmt.Sprintf("Case%s_%d", s.name, s.counter)
}
