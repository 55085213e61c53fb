package simulation

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/okian/pacer/internal/domain/model"
)

const percentageMultiplier = 100

// Stats aggregates a batch of simulated campaigns. Means cover the campaigns
// that ran without error. Campaigns generated without vacancies are counted
// in NoVacancies and left out of FulfillmentRate.
type Stats struct {
	Policy             string        `json:"policy"`
	Campaigns          int           `json:"campaigns"`
	Failed             int           `json:"failed"`
	Fulfilled          int           `json:"fulfilled"`
	NoVacancies        int           `json:"no_vacancies"`
	FulfillmentRate    float64       `json:"fulfillment_rate"`
	MeanTicks          float64       `json:"mean_ticks"`
	StdTicks           float64       `json:"std_ticks"`
	MeanNotified       float64       `json:"mean_notified"`
	MeanAccepted       float64       `json:"mean_accepted"`
	MeanOffersAccepted float64       `json:"mean_offers_accepted"`
	Errors             []string      `json:"errors,omitempty"`
	Duration           time.Duration `json:"duration_ns"`
}

// Aggregate summarises results of one policy.
func Aggregate(policyName string, results []model.SimulationResult) Stats {
	s := Stats{Policy: policyName, Campaigns: len(results)}

	var ticks, notified, accepted, offers []float64
	for _, r := range results {
		if r.Err != "" {
			s.Failed++
			s.Errors = append(s.Errors, r.JobID+": "+r.Err)
			continue
		}
		switch {
		case r.Vacancies == 0:
			s.NoVacancies++
		case r.Fulfilled:
			s.Fulfilled++
		}
		ticks = append(ticks, float64(r.Ticks))
		notified = append(notified, float64(r.Notified))
		accepted = append(accepted, float64(r.Accepted))
		offers = append(offers, float64(r.OffersAccepted))
	}

	ok := len(ticks)
	if ok == 0 {
		return s
	}
	if staffed := ok - s.NoVacancies; staffed > 0 {
		s.FulfillmentRate = float64(s.Fulfilled) / float64(staffed) * percentageMultiplier
	}
	s.MeanTicks = stat.Mean(ticks, nil)
	if ok > 1 {
		s.StdTicks = stat.StdDev(ticks, nil)
	}
	s.MeanNotified = stat.Mean(notified, nil)
	s.MeanAccepted = stat.Mean(accepted, nil)
	s.MeanOffersAccepted = stat.Mean(offers, nil)
	return s
}
