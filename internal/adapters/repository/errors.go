package repository

import "errors"

// Sentinel kinds for policy store errors.
var (
	ErrNotFound       = errors.New("campaign not found")
	ErrEmptyCampaign  = errors.New("campaign id is empty")
	ErrKindMismatch   = errors.New("campaign is paced by another policy")
	ErrInvalidFactory = errors.New("policy factory returned no policy")
)
