package simulator

import "errors"

var (
	// ErrInvalidConfig is returned for out-of-range weights or distribution parameters.
	ErrInvalidConfig = errors.New("invalid simulator config")
	// ErrInvalidCampaign is returned for an impossible initial campaign.
	ErrInvalidCampaign = errors.New("invalid campaign")
)
