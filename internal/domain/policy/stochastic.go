package policy

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/posterior"
	"github.com/okian/pacer/internal/domain/solver"
	"github.com/okian/pacer/pkg/logger"
)

// StochasticConfig configures the Stochastic strategy.
type StochasticConfig struct {
	PriorMean     float64 `koanf:"prior_mean"`
	PriorVariance float64 `koanf:"prior_variance"`
	ShapeR        float64 `koanf:"shape_r"`

	// ProfitPerVacancy and CostPerNotification weight the integer program.
	ProfitPerVacancy    float64 `koanf:"profit_per_vacancy"`
	CostPerNotification float64 `koanf:"cost_per_notification"`

	// Replicates is the number of bootstrap draws; Quantile is taken over them.
	Replicates int     `koanf:"replicates"`
	Quantile   float64 `koanf:"quantile"`

	// ForgetFraction of the persisted frequencies is dropped every tick.
	ForgetFraction float64 `koanf:"forget_fraction"`
	// SeedFrequency is the initial persisted response time.
	SeedFrequency int `koanf:"seed_frequency"`
	// MinCallback floors every callback.
	MinCallback int `koanf:"min_callback_minutes"`
	// A distribution is refitted once the sample holds FitMinSamples values
	// and its size is a multiple of FitEvery.
	FitMinSamples int     `koanf:"fit_min_samples"`
	FitEvery      int     `koanf:"fit_every"`
	FitProb       float64 `koanf:"fit_probability"`
}

// DefaultStochasticConfig returns the default stochastic settings.
func DefaultStochasticConfig() StochasticConfig {
	return StochasticConfig{
		PriorMean:           0.2,
		PriorVariance:       0.001,
		ShapeR:              1,
		ProfitPerVacancy:    2000,
		CostPerNotification: 20,
		Replicates:          10,
		Quantile:            0.2,
		SeedFrequency:       6,
		MinCallback:         5,
		FitMinSamples:       28,
		FitEvery:            10,
		FitProb:             0.3,
	}
}

// Validate checks the stochastic settings.
func (c StochasticConfig) Validate() error {
	if _, _, err := posterior.PriorFromMoments(c.PriorMean, c.PriorVariance); err != nil {
		return fmt.Errorf("%w: stochastic: %w", ErrInvalidConfig, err)
	}
	switch {
	case c.ShapeR <= 0:
		return fmt.Errorf("%w: stochastic shape_r %v must be positive", ErrInvalidConfig, c.ShapeR)
	case c.Replicates <= 0:
		return fmt.Errorf("%w: stochastic replicates %d must be positive", ErrInvalidConfig, c.Replicates)
	case c.Quantile < 0 || c.Quantile > 1:
		return fmt.Errorf("%w: stochastic quantile %v outside [0, 1]", ErrInvalidConfig, c.Quantile)
	case c.ForgetFraction < 0 || c.ForgetFraction >= 1:
		return fmt.Errorf("%w: stochastic forget fraction %v outside [0, 1)", ErrInvalidConfig, c.ForgetFraction)
	case c.FitEvery <= 0:
		return fmt.Errorf("%w: stochastic fit_every %d must be positive", ErrInvalidConfig, c.FitEvery)
	case c.FitProb <= 0 || c.FitProb >= 1:
		return fmt.Errorf("%w: stochastic fit probability %v outside (0, 1)", ErrInvalidConfig, c.FitProb)
	}
	return nil
}

// Stochastic sizes each batch by bootstrapping an integer program over
// posterior acceptance draws, and learns the callback interval from the
// response times it has seen.
type Stochastic struct {
	cfg   StochasticConfig
	model *posterior.Model
	rng   *rand.Rand

	recent    []int
	persisted []int
	fit       *fitted

	settings
}

var _ Policy = (*Stochastic)(nil)

// NewStochastic builds a Stochastic policy with its own posterior and memory.
func NewStochastic(cfg StochasticConfig, opts ...Option) (*Stochastic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := newSettings(string(KindStochastic), opts)
	m, err := posterior.New(cfg.PriorMean, cfg.PriorVariance, cfg.ShapeR, posterior.WithSeed(s.seed))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Stochastic{
		cfg:       cfg,
		model:     m,
		rng:       rand.New(rand.NewPCG(s.seed, s.seed+1)),
		persisted: []int{cfg.SeedFrequency},
		settings:  s,
	}, nil
}

// Name returns the policy kind.
func (s *Stochastic) Name() string { return string(KindStochastic) }

// Posterior returns the current posterior parameters.
func (s *Stochastic) Posterior() posterior.Parameters { return s.model.Posterior() }

// Memory returns copies of the recent and persisted response-time lists.
func (s *Stochastic) Memory() (recent, persisted []int) {
	return slices.Clone(s.recent), slices.Clone(s.persisted)
}

// Decide implements Policy. Solver failures are returned, never replaced by
// a default batch size.
func (s *Stochastic) Decide(ctx context.Context, st model.CampaignState) (model.Decision, error) {
	if err := st.Validate(); err != nil {
		return model.Decision{}, err
	}
	if terminated(s.summary, &st) {
		s.persist()
		return model.Terminal(), nil
	}

	if err := learnAcceptance(s.summary, s.model, st.ImpactedCandidates); err != nil {
		return model.Decision{}, err
	}
	s.recent = nil
	if times := s.summary.AcceptedResponseTimes(st.ImpactedCandidates); !times.Defaulted {
		s.recent = slices.Clone(times.Values)
	}

	callback := s.frequencyExploitation(ctx)

	vacancies := st.NumVacancies - s.summary.TotalAcceptedOffers(st.ImpactedCandidates).Value
	batch, err := s.bootstrap(ctx, st.NumRemainingInPool, vacancies)
	if err != nil {
		return model.Decision{}, fmt.Errorf("bootstrap: %w", err)
	}

	d := model.Decision{
		NumCandidatesNeeded: min(batch, st.NumRemainingInPool),
		CallbackMinutes:     callback,
	}
	s.log.Debug(ctx, "stochastic decision",
		logger.Int("candidates", d.NumCandidatesNeeded),
		logger.Int("callbackMinutes", d.CallbackMinutes),
		logger.Int("recent", len(s.recent)),
		logger.Int("persisted", len(s.persisted)),
	)
	return d, nil
}

// persist moves the recent frequencies into long-term memory.
func (s *Stochastic) persist() {
	s.persisted = append(s.persisted, s.recent...)
	s.recent = nil
}

// frequencyExploitation learns the callback interval. It uses the median of
// everything observed until a distribution has been fitted, then the
// smallest minute at which the fitted CDF reaches FitProb.
func (s *Stochastic) frequencyExploitation(ctx context.Context) int {
	if s.cfg.ForgetFraction > 0 {
		s.persisted = s.forget(s.persisted, s.cfg.ForgetFraction)
	}
	work := make([]float64, 0, len(s.persisted)+len(s.recent))
	for _, x := range slices.Concat(s.persisted, s.recent) {
		work = append(work, float64(x))
	}
	if len(work) == 0 {
		return s.cfg.MinCallback
	}
	slices.Sort(work)

	if len(work) >= s.cfg.FitMinSamples && len(work)%s.cfg.FitEvery == 0 {
		f, err := fitResponseTimes(work)
		if err != nil {
			s.log.Debug(ctx, "response time fit failed", logger.Error(err))
		} else {
			s.fit = &f
			s.log.Debug(ctx, "response time distribution fitted",
				logger.String("distribution", f.name),
				logger.Int("samples", len(work)))
		}
	}

	callback := int(median(work))
	if s.fit != nil {
		if x, ok := s.fit.quantileAtLeast(s.cfg.FitProb, int(work[len(work)-1])); ok {
			callback = max(1, x)
		}
	}
	return max(callback, s.cfg.MinCallback)
}

// median of sorted values, averaging the middle pair for even lengths.
func median(sorted []float64) float64 {
	lo := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return (lo + sorted[len(sorted)/2]) / 2
}

// forget keeps a random (1−frac) share of xs.
func (s *Stochastic) forget(xs []int, frac float64) []int {
	keep := int(float64(len(xs)) * (1 - frac))
	out := make([]int, 0, keep)
	for _, i := range s.rng.Perm(len(xs))[:keep] {
		out = append(out, xs[i])
	}
	return out
}

// bootstrap solves the notification program for Replicates posterior draws
// and returns the configured quantile of the optimal batch sizes, floored at
// round(Quantile·Replicates).
func (s *Stochastic) bootstrap(ctx context.Context, pool, vacancies int) (int, error) {
	n := s.cfg.Replicates
	rates := make([]float64, n)
	for i := range rates {
		rates[i] = math.Round(s.model.Sample()*10) / 10
	}

	results := make([]float64, n)
	g, ctx := errgroup.WithContext(ctx)
	for i, rate := range rates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sol, err := s.solver.Solve(solver.Program{
				Profit:      s.cfg.ProfitPerVacancy,
				Cost:        s.cfg.CostPerNotification,
				Rate:        rate,
				MaxNotified: pool,
				MaxAccepted: vacancies,
			})
			if err != nil {
				return fmt.Errorf("replicate %d: %w", i, err)
			}
			results[i] = float64(sol.Notified)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	slices.Sort(results)
	q := stat.Quantile(s.cfg.Quantile, stat.LinInterp, results, nil)
	floor := math.Round(s.cfg.Quantile * float64(n))
	return int(math.Max(q, floor)), nil
}
