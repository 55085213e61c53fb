package model

import (
	"fmt"
	"slices"
	"time"
)

// CampaignState is an immutable snapshot of a campaign at one evaluation tick.
type CampaignState struct {
	CorrelationID      string        `json:"correlation_id,omitempty"`
	Now                time.Time     `json:"now"`
	Deadline           time.Time     `json:"deadline"`
	NumVacancies       int           `json:"num_vacancies"`
	NumRemainingInPool int           `json:"num_remaining_in_pool"`
	ImpactedCandidates []ImpactEvent `json:"impacted_candidates_data"`
}

// Validate fails fast on malformed timestamps, negative counts and bad events.
func (s *CampaignState) Validate() error {
	switch {
	case s.Now.IsZero():
		return fmt.Errorf("%w: missing now", ErrInvalidState)
	case s.Deadline.IsZero():
		return fmt.Errorf("%w: missing deadline", ErrInvalidState)
	case s.NumVacancies < 0:
		return fmt.Errorf("%w: negative vacancies %d", ErrInvalidState, s.NumVacancies)
	case s.NumRemainingInPool < 0:
		return fmt.Errorf("%w: negative remaining pool %d", ErrInvalidState, s.NumRemainingInPool)
	}
	for i, e := range s.ImpactedCandidates {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: candidate %d: %w", ErrInvalidState, i, err)
		}
	}
	return nil
}

// Clone returns a copy that shares no events with s.
func (s CampaignState) Clone() CampaignState {
	s.ImpactedCandidates = slices.Clone(s.ImpactedCandidates)
	return s
}

// Decision is the outcome of one evaluation tick.
type Decision struct {
	Finished            bool `json:"finished"`
	NumCandidatesNeeded int  `json:"num_candidates_needed"`
	CallbackMinutes     int  `json:"callback_time_minutes"`
}

// Terminal returns the decision for a campaign that is over.
func Terminal() Decision {
	return Decision{Finished: true}
}
