package model

import "errors"

// Sentinel kinds for precondition violations.
var (
	ErrInvalidEvent = errors.New("invalid impact event")
	ErrInvalidState = errors.New("invalid campaign state")
)
