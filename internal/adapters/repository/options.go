package repository

import "github.com/okian/pacer/pkg/logger"

// Option applies a configuration option to the PolicyStore.
type Option func(*PolicyStore)

// WithMaxCampaigns bounds the number of campaigns kept; the least recently
// used one is evicted first. Non-positive values keep the default.
func WithMaxCampaigns(n int) Option {
	return func(s *PolicyStore) {
		if n > 0 {
			s.maxCampaigns = n
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *PolicyStore) {
		if l != nil {
			s.log = l
		}
	}
}
