package policy

import "errors"

// Sentinel kinds for policy errors.
var (
	ErrUnknownPolicy = errors.New("unknown policy")
	ErrInvalidConfig = errors.New("invalid policy config")
)
