package scenario_test

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/policy"
	"github.com/okian/pacer/internal/domain/scenario"
	"github.com/okian/pacer/internal/domain/simulator"
	. "github.com/smartystreets/goconvey/convey"
)

var start = time.Date(2022, 6, 1, 8, 0, 0, 0, time.UTC)

func newSimulator(seed uint64, pool int) *simulator.Simulator {
	sim, err := simulator.New(simulator.Campaign{
		Start:     start,
		Deadline:  start.Add(5 * 24 * time.Hour),
		Vacancies: 6,
		Pool:      pool,
	}, simulator.WithSeed(seed))
	if err != nil {
		panic(err)
	}
	return sim
}

type brokenPolicy struct{ calls int }

var errBroken = errors.New("broken")

func (b *brokenPolicy) Decide(context.Context, model.CampaignState) (model.Decision, error) {
	b.calls++
	if b.calls > 2 {
		return model.Decision{}, errBroken
	}
	return model.Decision{NumCandidatesNeeded: 1, CallbackMinutes: 5}, nil
}

func (b *brokenPolicy) Name() string { return "broken" }

// stuck never produces a snapshot.
type stuck struct{}

func (stuck) Advance(int, int) iter.Seq[model.CampaignState] {
	return func(func(model.CampaignState) bool) {}
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()

	Convey("Given each policy against a seeded simulated campaign", t, func() {
		for _, kind := range policy.Kinds {
			p, err := policy.New(kind, policy.DefaultConfig(), policy.WithSeed(21))
			So(err, ShouldBeNil)
			r := scenario.New(newSimulator(21, 120), p)

			steps, err := r.Run(ctx)

			So(err, ShouldBeNil)
			So(r.Policy(), ShouldEqual, p)
			So(len(steps), ShouldBeGreaterThan, 0)

			first := steps[0]
			So(first.State.Now, ShouldEqual, start.Add(time.Minute))
			So(first.State.ImpactedCandidates, ShouldBeEmpty)
			So(first.State.CorrelationID, ShouldEqual, "Case1_0")

			for i := 1; i < len(steps); i++ {
				So(steps[i].State.Now.Before(steps[i-1].State.Now), ShouldBeFalse)
				So(steps[i].State.NumRemainingInPool, ShouldBeLessThanOrEqualTo, steps[i-1].State.NumRemainingInPool)
				So(steps[i].TotalAccepted, ShouldBeGreaterThanOrEqualTo, 0)
				So(steps[i].OffersAccepted, ShouldBeLessThanOrEqualTo, steps[i].TotalAccepted)
			}
			for _, s := range steps[:len(steps)-1] {
				So(s.Decision.Finished, ShouldBeFalse)
			}
			last := steps[len(steps)-1]
			if last.Decision.Finished {
				So(last.Decision, ShouldResemble, model.Terminal())
			}

			res := scenario.Summarize("job", p.Name(), steps)
			So(res.Ticks, ShouldEqual, len(steps))
			So(res.Notified, ShouldEqual, len(last.State.ImpactedCandidates))
			So(res.Notified, ShouldBeLessThanOrEqualTo, 120)
			So(res.Fulfilled, ShouldEqual, last.OffersAccepted >= 6)
		}
	})

	Convey("Given a policy that fails on its third tick", t, func() {
		p := &brokenPolicy{}
		steps, err := scenario.New(newSimulator(4, 50), p).Run(ctx)

		Convey("Then the run stops with the error and the completed steps", func() {
			So(errors.Is(err, errBroken), ShouldBeTrue)
			So(steps, ShouldHaveLength, 2)
			So(steps[1].State.Now, ShouldEqual, start.Add(6*time.Minute))
		})
	})

	Convey("Given an environment that never advances", t, func() {
		steps, err := scenario.New(stuck{}, &brokenPolicy{}).Run(ctx)

		Convey("Then the run ends immediately", func() {
			So(err, ShouldBeNil)
			So(steps, ShouldBeEmpty)
		})
	})

	Convey("Given a cancelled context", t, func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := scenario.New(newSimulator(1, 10), &brokenPolicy{}).Run(cctx)

		Convey("Then the run reports the cancellation", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given no steps", t, func() {
		Convey("Then the summary is empty", func() {
			So(scenario.Summarize("j", "pacing", nil), ShouldResemble,
				model.SimulationResult{JobID: "j", Policy: "pacing"})
		})
	})
}

func TestSummarize(t *testing.T) {
	Convey("Given the last step of a run", t, func() {
		step := scenario.Step{
			State:          model.CampaignState{NumVacancies: 3},
			Decision:       model.Terminal(),
			TotalAccepted:  4,
			OffersAccepted: 3,
		}

		Convey("When every vacancy got an accepted offer", func() {
			res := scenario.Summarize("job", "pacing", []scenario.Step{step})

			Convey("Then the campaign is fulfilled", func() {
				So(res.Fulfilled, ShouldBeTrue)
				So(res.Vacancies, ShouldEqual, 3)
			})
		})

		Convey("When the campaign had no vacancies at all", func() {
			step.State.NumVacancies = 0
			step.OffersAccepted = 0
			res := scenario.Summarize("job", "pacing", []scenario.Step{step})

			Convey("Then it does not count as fulfilled", func() {
				So(res.Fulfilled, ShouldBeFalse)
				So(res.Vacancies, ShouldEqual, 0)
			})
		})
	})
}
