package simulator

import (
	"fmt"

	"github.com/okian/pacer/internal/domain/model"
)

// Outcome is one candidate status a notification status can lead to.
type Outcome struct {
	Status      model.CandidateStatus
	Probability float64
}

// TransitionMatrix maps a notification status to the distribution of the
// candidate status that follows it.
type TransitionMatrix struct {
	rows map[model.NotificationStatus][]Outcome
}

// NewTransitionMatrix builds the matrix for the given probability that an
// accepted notification turns into an accepted offer.
func NewTransitionMatrix(offerAcceptProb float64) (TransitionMatrix, error) {
	if offerAcceptProb < 0 || offerAcceptProb > 1 {
		return TransitionMatrix{}, fmt.Errorf("%w: offer acceptance probability %v outside [0, 1]",
			ErrInvalidConfig, offerAcceptProb)
	}
	return TransitionMatrix{rows: map[model.NotificationStatus][]Outcome{
		model.NotificationPending: {
			{Status: model.CandidateNotInFunnel, Probability: 1},
		},
		model.NotificationAccepted: {
			{Status: model.CandidateOfferAccepted, Probability: offerAcceptProb},
			{Status: model.CandidateCancelled, Probability: 1 - offerAcceptProb},
		},
		model.NotificationRejected: {
			{Status: model.CandidateCancelled, Probability: 1},
		},
	}}, nil
}

// Outcomes returns a copy of the row for status.
func (t TransitionMatrix) Outcomes(status model.NotificationStatus) []Outcome {
	return append([]Outcome(nil), t.rows[status]...)
}
