package summary_test

import (
	"testing"
	"time"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/summary"
	. "github.com/smartystreets/goconvey/convey"
)

func event(n model.NotificationStatus, c model.CandidateStatus, minutes int) model.ImpactEvent {
	return model.ImpactEvent{NotificationStatus: n, CandidateStatus: c, ResponseMinutes: minutes}
}

func TestImpact(t *testing.T) {
	s := summary.Impact{}
	now := time.Date(2022, 5, 10, 12, 0, 0, 0, time.UTC)

	Convey("Given no impact events", t, func() {
		var events []model.ImpactEvent

		Convey("Then every statistic falls back to its default", func() {
			So(s.TotalPool(95, events), ShouldResemble, summary.Count{Value: 95})
			So(s.EstimatedInitTime(now, events), ShouldResemble, summary.Instant{Value: now, Defaulted: true})
			So(s.FirstAcceptedRate(events), ShouldResemble, summary.Count{Defaulted: true})
			So(s.AcceptedResponseTimes(events), ShouldResemble, summary.Times{Values: []int{0}, Defaulted: true})
			So(s.MeanResponseTimeOfAccepted(events, 7), ShouldResemble, summary.Mean{Value: 7, Defaulted: true})
			So(s.TotalAcceptedOffers(events).Value, ShouldEqual, 0)
			So(summary.MaxResponse(events), ShouldEqual, 0)
		})
	})

	Convey("Given a mix of resolved and pending events", t, func() {
		events := []model.ImpactEvent{
			event(model.NotificationAccepted, model.CandidateOfferAccepted, 4),
			event(model.NotificationAccepted, model.CandidateCancelled, 10),
			event(model.NotificationRejected, model.CandidateCancelled, 7),
			event(model.NotificationPending, model.CandidateNotInFunnel, 30),
		}

		Convey("When combining the pool", func() {
			Convey("Then it adds the notified candidates to the remaining pool", func() {
				So(s.TotalPool(10, events).Value, ShouldEqual, 14)
			})
		})

		Convey("When estimating the campaign start", func() {
			Convey("Then it shifts now by the longest response time", func() {
				got := s.EstimatedInitTime(now, events)
				So(got.Defaulted, ShouldBeFalse)
				So(got.Value, ShouldEqual, now.Add(30*time.Minute))
			})
		})

		Convey("When computing the acceptance rate", func() {
			Convey("Then it is the rounded percentage of accepted notifications", func() {
				So(s.FirstAcceptedRate(events), ShouldResemble, summary.Count{Value: 50})
			})
		})

		Convey("When listing accepted response times", func() {
			Convey("Then only accepted notifications are returned in order", func() {
				So(s.AcceptedResponseTimes(events), ShouldResemble, summary.Times{Values: []int{4, 10}})
			})
		})

		Convey("When averaging accepted response times", func() {
			Convey("Then the mean and count are computed", func() {
				So(s.MeanResponseTimeOfAccepted(events, 7), ShouldResemble, summary.Mean{Value: 7, Count: 2})
			})
		})

		Convey("When counting accepted offers", func() {
			Convey("Then only offer_accepted candidates count", func() {
				So(s.TotalAcceptedOffers(events).Value, ShouldEqual, 1)
				So(summary.AcceptedNotifications(events), ShouldEqual, 2)
			})
		})
	})

	Convey("Given fewer than three events with an acceptance", t, func() {
		events := []model.ImpactEvent{
			event(model.NotificationAccepted, model.CandidateOfferAccepted, 3),
			event(model.NotificationRejected, model.CandidateCancelled, 9),
		}

		Convey("Then the mean response time is the fallback", func() {
			got := s.MeanResponseTimeOfAccepted(events, 7)
			So(got.Defaulted, ShouldBeTrue)
			So(got.Value, ShouldEqual, 7)
			So(got.Count, ShouldEqual, 0)
		})
	})

	Convey("Given events where nobody accepted", t, func() {
		events := []model.ImpactEvent{
			event(model.NotificationRejected, model.CandidateCancelled, 3),
			event(model.NotificationPending, model.CandidateNotInFunnel, 5),
			event(model.NotificationPending, model.CandidateNotInFunnel, 5),
		}

		Convey("Then the rate is a computed zero", func() {
			So(s.FirstAcceptedRate(events), ShouldResemble, summary.Count{Value: 0})
		})

		Convey("Then the mean falls back", func() {
			So(s.MeanResponseTimeOfAccepted(events, 7).Defaulted, ShouldBeTrue)
		})
	})
}
