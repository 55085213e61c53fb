package posterior

import "errors"

// Sentinel kinds for posterior errors.
var (
	ErrInvalidPrior        = errors.New("invalid beta prior")
	ErrNegativeObservation = errors.New("negative observation")
)
