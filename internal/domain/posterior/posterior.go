// Package posterior implements a conjugate Beta prior over an acceptance
// probability feeding a Negative-Binomial predictive model.
package posterior

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	defaultMeanSamples = 50_000
	minProbability     = 1e-9
)

// Parameters are the posterior Beta(Alpha, Beta) parameters and the
// Negative-Binomial shape.
type Parameters struct {
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
	ShapeR float64 `json:"shape_r"`
}

// Model holds a prior and its running posterior. It is not safe for
// concurrent use.
type Model struct {
	prior     Parameters
	posterior Parameters
	samples   int
	rng       *rand.Rand
}

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithSource sets the random source used for sampling.
func WithSource(src rand.Source) Option {
	return func(m *Model) {
		if src != nil {
			m.rng = rand.New(src)
		}
	}
}

// WithSeed seeds the sampling source.
func WithSeed(seed uint64) Option {
	return WithSource(rand.NewPCG(seed, seed))
}

// PriorFromMoments derives Beta parameters from a target mean and variance.
// The mean must lie in (0, 1) and the variance below mean·(1−mean).
func PriorFromMoments(mu, variance float64) (alpha, beta float64, err error) {
	if mu <= 0 || mu >= 1 {
		return 0, 0, fmt.Errorf("%w: mean %v outside (0, 1)", ErrInvalidPrior, mu)
	}
	if variance <= 0 || variance >= mu*(1-mu) {
		return 0, 0, fmt.Errorf("%w: variance %v outside (0, %v)", ErrInvalidPrior, variance, mu*(1-mu))
	}
	alpha = ((1-mu)/variance - 1/mu) * mu * mu
	beta = alpha * (1/mu - 1)
	return alpha, beta, nil
}

// New builds a Model whose prior matches mu and variance.
func New(mu, variance, shapeR float64, opts ...Option) (*Model, error) {
	if shapeR <= 0 {
		return nil, fmt.Errorf("%w: shape %v must be positive", ErrInvalidPrior, shapeR)
	}
	alpha, beta, err := PriorFromMoments(mu, variance)
	if err != nil {
		return nil, err
	}
	p := Parameters{Alpha: alpha, Beta: beta, ShapeR: shapeR}
	m := &Model{
		prior:     p,
		posterior: p,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Prior returns the parameters the model was built with.
func (m *Model) Prior() Parameters { return m.prior }

// Posterior returns the current posterior parameters.
func (m *Model) Posterior() Parameters { return m.posterior }

// Samples returns how many observations have been absorbed.
func (m *Model) Samples() int { return m.samples }

// Update absorbs Negative-Binomial observations: alpha grows by ShapeR per
// observation and beta by their sum. Both never decrease.
func (m *Model) Update(observations ...float64) error {
	sum := 0.0
	for _, x := range observations {
		if x < 0 || math.IsNaN(x) {
			return fmt.Errorf("%w: %v", ErrNegativeObservation, x)
		}
		sum += x
	}
	m.posterior.Alpha += m.posterior.ShapeR * float64(len(observations))
	m.posterior.Beta += sum
	m.samples += len(observations)
	return nil
}

// PredictiveMean is the posterior predictive mean ShapeR·beta/(alpha−1).
// It reports false while alpha ≤ 1, when the mean is not defined.
func (m *Model) PredictiveMean() (float64, bool) {
	a, b := m.posterior.Alpha, m.posterior.Beta
	if a <= 1 {
		return 0, false
	}
	return m.posterior.ShapeR * b / (a - 1), true
}

// Sample draws a success probability from the posterior Beta.
func (m *Model) Sample() float64 {
	d := distuv.Beta{Alpha: m.posterior.Alpha, Beta: m.posterior.Beta, Src: m.rng}
	return d.Rand()
}

// SampleNegBinomialMean draws p from the posterior and returns the empirical
// mean of n Negative-Binomial(ShapeR, p) variates. n ≤ 0 uses a default.
func (m *Model) SampleNegBinomialMean(n int) float64 {
	if n <= 0 {
		n = defaultMeanSamples
	}
	p := math.Min(math.Max(m.Sample(), minProbability), 1-minProbability)
	// NB(r, p) failures are a Poisson mixture over Gamma(r, rate p/(1−p)).
	g := distuv.Gamma{Alpha: m.posterior.ShapeR, Beta: p / (1 - p), Src: m.rng}
	xs := make([]float64, n)
	for i := range xs {
		lambda := g.Rand()
		if lambda <= 0 {
			continue
		}
		xs[i] = distuv.Poisson{Lambda: lambda, Src: m.rng}.Rand()
	}
	return stat.Mean(xs, nil)
}
