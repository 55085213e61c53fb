package simulation

import "errors"

// Sentinel kinds for simulation errors.
var (
	ErrInvalidBatch   = errors.New("invalid simulation batch")
	ErrNoTrajectories = errors.New("no trajectories to save")
)
