package solver

import "errors"

// Sentinel kinds for solver errors.
var (
	ErrInfeasible     = errors.New("integer program infeasible")
	ErrInvalidProgram = errors.New("invalid integer program")
)
