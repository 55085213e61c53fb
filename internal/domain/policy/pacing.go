package policy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/pkg/logger"
)

// Schedule shape constants.
const (
	defaultFreqSplit = 18
	scheduleScale    = 0.15 // first interval as a share of the campaign length
	decayRate        = 0.15
	callsExponent    = 0.05
)

// PacingConfig configures the Pacing strategy.
type PacingConfig struct {
	// FreqSplit is the number of batches the pool is split into.
	FreqSplit float64 `koanf:"freq_split"`
	// Decay shrinks callback intervals toward the deadline instead of
	// growing them from the campaign start.
	Decay bool `koanf:"decay"`
}

// DefaultPacingConfig returns the default pacing schedule.
func DefaultPacingConfig() PacingConfig {
	return PacingConfig{FreqSplit: defaultFreqSplit}
}

// Validate checks the pacing settings.
func (c PacingConfig) Validate() error {
	if c.FreqSplit <= 0 || math.IsNaN(c.FreqSplit) {
		return fmt.Errorf("%w: pacing freq_split %v must be positive", ErrInvalidConfig, c.FreqSplit)
	}
	return nil
}

// Pacing notifies a fixed share of the pool per tick and spaces ticks with
// an exponential schedule. It does not learn.
type Pacing struct {
	cfg PacingConfig
	settings
}

var _ Policy = (*Pacing)(nil)

// NewPacing builds a Pacing policy.
func NewPacing(cfg PacingConfig, opts ...Option) (*Pacing, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pacing{cfg: cfg, settings: newSettings(string(KindPacing), opts)}, nil
}

// Name returns the policy kind.
func (p *Pacing) Name() string { return string(KindPacing) }

// Decide implements Policy.
func (p *Pacing) Decide(ctx context.Context, st model.CampaignState) (model.Decision, error) {
	if err := st.Validate(); err != nil {
		return model.Decision{}, err
	}
	if terminated(p.summary, &st) {
		return model.Terminal(), nil
	}

	total := p.summary.TotalPool(st.NumRemainingInPool, st.ImpactedCandidates).Value
	init := p.summary.EstimatedInitTime(st.Now, st.ImpactedCandidates).Value

	d := model.Decision{
		NumCandidatesNeeded: int(math.Round(float64(total) / p.cfg.FreqSplit)),
		CallbackMinutes:     p.callback(st.Now, st.Deadline, init),
	}
	p.log.Debug(ctx, "pacing decision",
		logger.Int("totalPool", total),
		logger.Int("candidates", d.NumCandidatesNeeded),
		logger.Int("callbackMinutes", d.CallbackMinutes),
	)
	return d, nil
}

// callback picks the next interval from the schedule. Degenerate schedules
// fall back to one minute before the deadline.
func (p *Pacing) callback(now, deadline, init time.Time) int {
	total := wholeMinutes(deadline.Sub(init))
	toDeadline := wholeMinutes(deadline.Sub(now))
	sinceInit := wholeMinutes(now.Sub(init))

	fallback := toDeadline - 1
	chosen := fallback
	if total > 0 {
		calls := ScheduleCalls(p.cfg.FreqSplit, total, p.cfg.Decay)
		first := scheduleScale * float64(total)

		var v int
		var ok bool
		if p.cfg.Decay {
			v, ok = pickDecay(DecaySchedule(first, decayRate, calls), toDeadline)
		} else {
			v, ok = pickIncrease(IncreaseSchedule(first, calls), sinceInit)
		}
		if ok {
			chosen = v
		}
	}
	return max(0, min(fallback, chosen))
}

// ScheduleCalls is the number of schedule points for a campaign of
// totalMinutes: freqSplit·total^0.05, rounded up for decay schedules and
// truncated for increase schedules.
func ScheduleCalls(freqSplit float64, totalMinutes int, decay bool) int {
	calls := freqSplit * math.Pow(float64(totalMinutes), callsExponent)
	if decay {
		return int(math.Ceil(calls))
	}
	return int(calls)
}

// DecaySchedule returns the positive, strictly decreasing integer intervals
// of a·(1−b)^k for k < n.
func DecaySchedule(a, b float64, n int) []int {
	var out []int
	for k := range max(n, 0) {
		v := int(a * math.Pow(1-b, float64(k)))
		if v <= 0 {
			break
		}
		if len(out) == 0 || v < out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// IncreaseSchedule returns the positive, strictly increasing integer
// intervals of n points spaced logarithmically between 1 and a.
func IncreaseSchedule(a float64, n int) []int {
	if n <= 0 || a <= 0 || math.IsNaN(a) {
		return nil
	}
	end := math.Log(a)
	var out []int
	for k := range n {
		exp := 0.0
		if n > 1 {
			exp = end * float64(k) / float64(n-1)
		}
		v := int(math.Exp(exp))
		if v <= 0 {
			continue
		}
		if len(out) == 0 || v > out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// pickDecay returns the first interval from which the rest of the schedule
// fits before the deadline.
func pickDecay(seq []int, toDeadline int) (int, bool) {
	suffix := 0
	for _, v := range seq {
		suffix += v
	}
	for _, v := range seq {
		if suffix <= toDeadline {
			return v, true
		}
		suffix -= v
	}
	return 0, false
}

// pickIncrease returns the first interval whose running total reaches the
// time elapsed since the campaign started.
func pickIncrease(seq []int, sinceInit int) (int, bool) {
	sum := 0
	for _, v := range seq {
		sum += v
		if sum >= sinceInit {
			return v, true
		}
	}
	return 0, false
}

func wholeMinutes(d time.Duration) int {
	return int(math.Floor(d.Minutes()))
}
