package policy

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var errNoFit = errors.New("no distribution fits the sample")

// continuous is the part of a gonum distribution the fit needs.
type continuous interface {
	LogProb(x float64) float64
	CDF(x float64) float64
}

type candidate struct {
	name   string
	dist   continuous
	params int
}

// fitted is the response-time distribution learned by Stochastic.
type fitted struct {
	name string
	dist continuous
	aic  float64
}

// fitResponseTimes fits normal, log-normal, exponential and gamma
// distributions by moments and keeps the one with the lowest AIC.
func fitResponseTimes(xs []float64) (fitted, error) {
	var best fitted
	found := false
	for _, c := range candidates(xs) {
		ll := 0.0
		for _, x := range xs {
			ll += c.dist.LogProb(x)
		}
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			continue
		}
		aic := 2*float64(c.params) - 2*ll
		if !found || aic < best.aic {
			best, found = fitted{name: c.name, dist: c.dist, aic: aic}, true
		}
	}
	if !found {
		return fitted{}, errNoFit
	}
	return best, nil
}

func candidates(xs []float64) []candidate {
	mean, std := stat.MeanStdDev(xs, nil)
	variance := std * std
	positive := true
	for _, x := range xs {
		if x <= 0 {
			positive = false
			break
		}
	}

	var out []candidate
	if std > 0 {
		out = append(out, candidate{name: "normal", dist: distuv.Normal{Mu: mean, Sigma: std}, params: 2})
	}
	if mean > 0 {
		out = append(out, candidate{name: "exponential", dist: distuv.Exponential{Rate: 1 / mean}, params: 1})
	}
	if positive && variance > 0 {
		out = append(out, candidate{
			name:   "gamma",
			dist:   distuv.Gamma{Alpha: mean * mean / variance, Beta: mean / variance},
			params: 2,
		})
		logs := make([]float64, len(xs))
		for i, x := range xs {
			logs[i] = math.Log(x)
		}
		mu, sigma := stat.MeanStdDev(logs, nil)
		if sigma > 0 {
			out = append(out, candidate{name: "lognormal", dist: distuv.LogNormal{Mu: mu, Sigma: sigma}, params: 2})
		}
	}
	return out
}

// quantileAtLeast returns the smallest integer x in [0, limit) whose
// cumulative probability reaches p.
func (f fitted) quantileAtLeast(p float64, limit int) (int, bool) {
	for x := range limit {
		if f.dist.CDF(float64(x)) >= p {
			return x, true
		}
	}
	return 0, false
}
