// Package repository keeps the live policy instance of every paced campaign.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/pacer/internal/domain/policy"
)

// Factory builds the first policy of a campaign.
type Factory func() (policy.Policy, error)

// Store provides serialised access to per-campaign policies.
type Store interface {
	// With runs fn with the campaign's policy while holding the campaign's
	// lock, building the policy with create on first use. Calls for the same
	// campaign never overlap; different campaigns run in parallel.
	With(ctx context.Context, campaignID string, kind policy.Kind, create Factory, fn func(policy.Policy) error) error

	// Kind returns the policy kind pacing a campaign.
	// Returns ErrNotFound if the campaign is unknown.
	Kind(ctx context.Context, campaignID string) (policy.Kind, error)

	// Count returns the number of campaigns tracked.
	Count(ctx context.Context) int
}

func validateID(campaignID string) error {
	if campaignID == "" {
		return ErrEmptyCampaign
	}
	return nil
}

func mismatch(campaignID string, have, want policy.Kind) error {
	return fmt.Errorf("%w: campaign %q uses %s, not %s", ErrKindMismatch, campaignID, have, want)
}
