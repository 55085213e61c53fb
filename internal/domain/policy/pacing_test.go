package policy_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/policy"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPacing_Decide(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pacing policy with the default split", t, func() {
		p, err := policy.NewPacing(policy.DefaultPacingConfig())
		So(err, ShouldBeNil)

		Convey("When one minute is left and nobody was notified yet", func() {
			state := model.CampaignState{
				Now:                start,
				Deadline:           start.Add(time.Minute),
				NumVacancies:       10,
				NumRemainingInPool: 95,
			}
			d, err := p.Decide(ctx, state)

			Convey("Then it keeps going with an immediate callback", func() {
				So(err, ShouldBeNil)
				So(d.Finished, ShouldBeFalse)
				So(d.CallbackMinutes, ShouldEqual, 0)
				So(d.NumCandidatesNeeded, ShouldEqual, 5)
			})
		})

		Convey("When the campaign has just started", func() {
			state := model.CampaignState{
				Now:                start,
				Deadline:           start.Add(10 * 24 * time.Hour),
				NumVacancies:       10,
				NumRemainingInPool: 180,
			}
			d, err := p.Decide(ctx, state)

			Convey("Then it takes the first interval of the growing schedule", func() {
				So(err, ShouldBeNil)
				So(d.CallbackMinutes, ShouldEqual, 1)
				So(d.NumCandidatesNeeded, ShouldEqual, 10)
			})
		})

		Convey("When candidates have already been notified", func() {
			state := model.CampaignState{
				Now:                start,
				Deadline:           start.Add(24 * time.Hour),
				NumVacancies:       10,
				NumRemainingInPool: 30,
				ImpactedCandidates: []model.ImpactEvent{
					{NotificationStatus: model.NotificationPending, CandidateStatus: model.CandidateNotInFunnel, ResponseMinutes: 40},
					{NotificationStatus: model.NotificationRejected, CandidateStatus: model.CandidateCancelled, ResponseMinutes: 8},
				},
			}
			d, err := p.Decide(ctx, state)

			Convey("Then the batch is a share of the combined pool", func() {
				So(err, ShouldBeNil)
				So(d.NumCandidatesNeeded, ShouldEqual, 2) // round(32/18)
				So(d.CallbackMinutes, ShouldBeGreaterThanOrEqualTo, 0)
				So(d.CallbackMinutes, ShouldBeLessThan, 24*60)
			})
		})
	})

	Convey("Given a pacing policy in decay mode", t, func() {
		p, err := policy.NewPacing(policy.PacingConfig{FreqSplit: 18, Decay: true})
		So(err, ShouldBeNil)

		Convey("When the whole schedule fits before the deadline", func() {
			state := model.CampaignState{
				Now:                start,
				Deadline:           start.Add(10 * 24 * time.Hour),
				NumVacancies:       10,
				NumRemainingInPool: 180,
			}
			d, err := p.Decide(ctx, state)

			Convey("Then it starts with the longest interval", func() {
				So(err, ShouldBeNil)
				So(d.CallbackMinutes, ShouldBeBetweenOrEqual, 2150, 2160)
			})
		})

		Convey("When the schedule is degenerate", func() {
			state := model.CampaignState{
				Now:                start,
				Deadline:           start.Add(3 * time.Minute),
				NumVacancies:       10,
				NumRemainingInPool: 50,
			}
			d, err := p.Decide(ctx, state)

			Convey("Then it falls back to one minute before the deadline", func() {
				So(err, ShouldBeNil)
				So(d.CallbackMinutes, ShouldEqual, 2)
			})
		})

		Convey("When the longest response exceeds the time to deadline", func() {
			state := model.CampaignState{
				Now:                start,
				Deadline:           start.Add(30 * time.Minute),
				NumVacancies:       10,
				NumRemainingInPool: 50,
				ImpactedCandidates: []model.ImpactEvent{
					{NotificationStatus: model.NotificationPending, CandidateStatus: model.CandidateNotInFunnel, ResponseMinutes: 90},
				},
			}
			d, err := p.Decide(ctx, state)

			Convey("Then the non-positive campaign length falls back without failing", func() {
				So(err, ShouldBeNil)
				So(d.CallbackMinutes, ShouldEqual, 29)
			})
		})
	})
}

func TestSchedules(t *testing.T) {
	Convey("Given the pacing schedules", t, func() {
		Convey("When sizing the schedule of a ten day campaign", func() {
			total := 10 * 24 * 60

			Convey("Then decay rounds the point count up and increase truncates it", func() {
				So(policy.ScheduleCalls(18, total, true), ShouldEqual, 30)
				So(policy.ScheduleCalls(18, total, false), ShouldEqual, 29)
			})
		})

		Convey("When the point count is already whole", func() {
			Convey("Then both shapes agree", func() {
				So(policy.ScheduleCalls(18, 1, true), ShouldEqual, 18)
				So(policy.ScheduleCalls(18, 1, false), ShouldEqual, 18)
			})
		})

		Convey("When generating a decay schedule", func() {
			seq := policy.DecaySchedule(2160, 0.15, 29)

			Convey("Then it is strictly decreasing and positive", func() {
				So(len(seq), ShouldBeGreaterThan, 1)
				for i := 1; i < len(seq); i++ {
					So(seq[i], ShouldBeLessThan, seq[i-1])
					So(seq[i], ShouldBeGreaterThan, 0)
				}
			})
		})

		Convey("When generating an increase schedule", func() {
			seq := policy.IncreaseSchedule(2160, 29)

			Convey("Then it is strictly increasing from one", func() {
				So(seq[0], ShouldEqual, 1)
				So(len(seq), ShouldBeGreaterThan, 1)
				for i := 1; i < len(seq); i++ {
					So(seq[i], ShouldBeGreaterThan, seq[i-1])
				}
				So(seq[len(seq)-1], ShouldBeLessThanOrEqualTo, 2160)
			})
		})

		Convey("When the schedule has no room", func() {
			Convey("Then both shapes are empty", func() {
				So(policy.DecaySchedule(0.5, 0.15, 10), ShouldBeEmpty)
				So(policy.IncreaseSchedule(-1, 10), ShouldBeEmpty)
				So(policy.IncreaseSchedule(100, 0), ShouldBeEmpty)
			})
		})
	})
}
