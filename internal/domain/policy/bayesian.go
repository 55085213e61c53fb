package policy

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/posterior"
	"github.com/okian/pacer/pkg/logger"
)

// BayesianConfig configures the Bayesian strategy.
type BayesianConfig struct {
	PriorMean     float64 `koanf:"prior_mean"`
	PriorVariance float64 `koanf:"prior_variance"`
	ShapeR        float64 `koanf:"shape_r"`
	// DefaultCallback is used until response times can be averaged.
	DefaultCallback float64 `koanf:"default_callback_minutes"`
	// FallbackCandidates is notified while the posterior mean is undefined.
	FallbackCandidates int `koanf:"fallback_candidates"`
}

// DefaultBayesianConfig returns a prior tuned for low acceptance rates.
func DefaultBayesianConfig() BayesianConfig {
	return BayesianConfig{
		PriorMean:          0.04,
		PriorVariance:      0.00014,
		ShapeR:             1,
		DefaultCallback:    7,
		FallbackCandidates: 1,
	}
}

// Validate checks the Bayesian settings.
func (c BayesianConfig) Validate() error {
	if _, _, err := posterior.PriorFromMoments(c.PriorMean, c.PriorVariance); err != nil {
		return fmt.Errorf("%w: bayesian: %w", ErrInvalidConfig, err)
	}
	switch {
	case c.ShapeR <= 0:
		return fmt.Errorf("%w: bayesian shape_r %v must be positive", ErrInvalidConfig, c.ShapeR)
	case c.DefaultCallback < 0:
		return fmt.Errorf("%w: bayesian default callback %v is negative", ErrInvalidConfig, c.DefaultCallback)
	case c.FallbackCandidates < 0:
		return fmt.Errorf("%w: bayesian fallback candidates %d is negative", ErrInvalidConfig, c.FallbackCandidates)
	}
	return nil
}

// Bayesian notifies the posterior predictive number of candidates and calls
// back after the average response time of accepted notifications.
type Bayesian struct {
	cfg   BayesianConfig
	model *posterior.Model
	settings
}

var _ Policy = (*Bayesian)(nil)

// NewBayesian builds a Bayesian policy with its own posterior.
func NewBayesian(cfg BayesianConfig, opts ...Option) (*Bayesian, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := newSettings(string(KindBayesian), opts)
	m, err := posterior.New(cfg.PriorMean, cfg.PriorVariance, cfg.ShapeR, posterior.WithSeed(s.seed))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Bayesian{cfg: cfg, model: m, settings: s}, nil
}

// Name returns the policy kind.
func (b *Bayesian) Name() string { return string(KindBayesian) }

// Posterior returns the current posterior parameters.
func (b *Bayesian) Posterior() posterior.Parameters { return b.model.Posterior() }

// Decide implements Policy. The posterior learns from the tick even when the
// campaign turns out to be over.
func (b *Bayesian) Decide(ctx context.Context, st model.CampaignState) (model.Decision, error) {
	if err := st.Validate(); err != nil {
		return model.Decision{}, err
	}
	if err := learnAcceptance(b.summary, b.model, st.ImpactedCandidates); err != nil {
		return model.Decision{}, err
	}
	if terminated(b.summary, &st) {
		return model.Terminal(), nil
	}

	needed := b.cfg.FallbackCandidates
	if mean, ok := b.model.PredictiveMean(); ok {
		needed = int(math.Round(mean))
	} else {
		b.log.Debug(ctx, "posterior mean not estimable, using fallback",
			logger.Int("fallback", needed))
	}
	callback := b.summary.MeanResponseTimeOfAccepted(st.ImpactedCandidates, b.cfg.DefaultCallback)

	d := model.Decision{
		NumCandidatesNeeded: min(needed, st.NumRemainingInPool),
		CallbackMinutes:     int(math.Round(callback.Value)),
	}
	b.log.Debug(ctx, "bayesian decision",
		logger.Float64("alpha", b.model.Posterior().Alpha),
		logger.Float64("beta", b.model.Posterior().Beta),
		logger.Int("candidates", d.NumCandidatesNeeded),
		logger.Int("callbackMinutes", d.CallbackMinutes),
		logger.Any("defaultCallback", callback.Defaulted),
	)
	return d, nil
}
