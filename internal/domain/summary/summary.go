// Package summary extracts scalar statistics from a campaign's impact events.
//
// Every helper is pure and never fails: when a statistic cannot be computed
// the result carries a documented fallback value and Defaulted is set, so
// callers can tell a computed value from a substituted one.
package summary

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/pacer/internal/domain/model"
)

const percent = 100

// Count is an integer statistic.
type Count struct {
	Value     int
	Defaulted bool
}

// Instant is a timestamp statistic.
type Instant struct {
	Value     time.Time
	Defaulted bool
}

// Times holds response times in minutes.
type Times struct {
	Values    []int
	Defaulted bool
}

// Mean is an average together with the number of samples it was taken over.
type Mean struct {
	Value     float64
	Count     int
	Defaulted bool
}

// Summarizer is the statistics capability policies compose.
type Summarizer interface {
	TotalPool(remaining int, events []model.ImpactEvent) Count
	EstimatedInitTime(now time.Time, events []model.ImpactEvent) Instant
	FirstAcceptedRate(events []model.ImpactEvent) Count
	AcceptedResponseTimes(events []model.ImpactEvent) Times
	MeanResponseTimeOfAccepted(events []model.ImpactEvent, fallback float64) Mean
	TotalAcceptedOffers(events []model.ImpactEvent) Count
}

// Impact is the stateless Summarizer used by every policy.
type Impact struct{}

var _ Summarizer = Impact{}

// TotalPool is the remaining pool plus everyone already notified.
func (Impact) TotalPool(remaining int, events []model.ImpactEvent) Count {
	return Count{Value: remaining + len(events)}
}

// EstimatedInitTime is now shifted by the longest observed response time.
// Without events it is now itself.
func (Impact) EstimatedInitTime(now time.Time, events []model.ImpactEvent) Instant {
	if len(events) == 0 {
		return Instant{Value: now, Defaulted: true}
	}
	return Instant{Value: now.Add(time.Duration(MaxResponse(events)) * time.Minute)}
}

// FirstAcceptedRate is the rounded percentage of events whose notification
// was accepted, relative to the total number of events.
func (Impact) FirstAcceptedRate(events []model.ImpactEvent) Count {
	if len(events) == 0 {
		return Count{Defaulted: true}
	}
	accepted := countNotifications(events, model.NotificationAccepted)
	return Count{Value: int(math.Round(float64(accepted) / float64(len(events)) * percent))}
}

// AcceptedResponseTimes lists the response times of accepted notifications,
// or [0] when there are none.
func (Impact) AcceptedResponseTimes(events []model.ImpactEvent) Times {
	var out []int
	for _, e := range events {
		if e.NotificationStatus == model.NotificationAccepted {
			out = append(out, e.ResponseMinutes)
		}
	}
	if len(out) == 0 {
		return Times{Values: []int{0}, Defaulted: true}
	}
	return Times{Values: out}
}

// MeanResponseTimeOfAccepted averages accepted response times once at least
// three events exist and one of them is accepted.
func (s Impact) MeanResponseTimeOfAccepted(events []model.ImpactEvent, fallback float64) Mean {
	const minEvents = 3
	if len(events) < minEvents {
		return Mean{Value: fallback, Defaulted: true}
	}
	times := s.AcceptedResponseTimes(events)
	if times.Defaulted {
		return Mean{Value: fallback, Defaulted: true}
	}
	xs := toFloats(times.Values)
	return Mean{Value: stat.Mean(xs, nil), Count: len(xs)}
}

// TotalAcceptedOffers counts candidates that accepted the job offer.
func (Impact) TotalAcceptedOffers(events []model.ImpactEvent) Count {
	n := 0
	for _, e := range events {
		if e.CandidateStatus == model.CandidateOfferAccepted {
			n++
		}
	}
	return Count{Value: n}
}

// AcceptedNotifications counts accepted notifications.
func AcceptedNotifications(events []model.ImpactEvent) int {
	return countNotifications(events, model.NotificationAccepted)
}

// MaxResponse returns the longest response time, 0 for no events.
func MaxResponse(events []model.ImpactEvent) int {
	if len(events) == 0 {
		return 0
	}
	xs := make([]float64, len(events))
	for i, e := range events {
		xs[i] = float64(e.ResponseMinutes)
	}
	return int(floats.Max(xs))
}

func countNotifications(events []model.ImpactEvent, status model.NotificationStatus) int {
	n := 0
	for _, e := range events {
		if e.NotificationStatus == status {
			n++
		}
	}
	return n
}

func toFloats(xs []int) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}
