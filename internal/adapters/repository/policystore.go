package repository

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/okian/pacer/internal/domain/policy"
	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
)

const defaultMaxCampaigns = 10_000

// campaign holds one policy and the lock serialising its decisions. The lock
// is a one-slot channel so waiting respects the caller's context.
type campaign struct {
	kind   policy.Kind
	policy policy.Policy
	lock   chan struct{}
}

func newCampaign(kind policy.Kind) *campaign {
	return &campaign{kind: kind, lock: make(chan struct{}, 1)}
}

func (c *campaign) acquire(ctx context.Context) error {
	select {
	case c.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *campaign) release() { <-c.lock }

// PolicyStore is an in-memory Store bounded by an LRU. A campaign evicted
// while a decision is running finishes that decision on its old policy; the
// next call starts a fresh one.
type PolicyStore struct {
	mu           sync.Mutex
	cache        *lru.Cache
	maxCampaigns int
	log          logger.Logger
}

var _ Store = (*PolicyStore)(nil)

// NewPolicyStore creates an empty store.
func NewPolicyStore(opts ...Option) *PolicyStore {
	s := &PolicyStore{maxCampaigns: defaultMaxCampaigns, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("policy-store")

	s.cache = lru.New(s.maxCampaigns)
	s.cache.OnEvicted = func(key lru.Key, _ any) {
		metrics.RecordCampaignEviction()
		s.log.Debug(context.Background(), "campaign evicted", logger.Any("campaignID", key))
	}
	metrics.UpdateCampaignsActive(0)
	return s
}

// With implements Store.
func (s *PolicyStore) With(ctx context.Context, campaignID string, kind policy.Kind, create Factory, fn func(policy.Policy) error) error {
	if err := validateID(campaignID); err != nil {
		return err
	}

	c, err := s.campaign(campaignID, kind)
	if err != nil {
		return err
	}
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	if c.policy == nil {
		p, err := create()
		if err != nil {
			return err
		}
		if p == nil {
			return ErrInvalidFactory
		}
		c.policy = p
	}
	return fn(c.policy)
}

// campaign returns the tracked campaign, registering it on first use.
func (s *PolicyStore) campaign(campaignID string, kind policy.Kind) (*campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.Get(campaignID); ok {
		c := v.(*campaign)
		if c.kind != kind {
			return nil, mismatch(campaignID, c.kind, kind)
		}
		return c, nil
	}

	c := newCampaign(kind)
	s.cache.Add(campaignID, c)
	metrics.UpdateCampaignsActive(s.cache.Len())
	return c, nil
}

// Kind implements Store.
func (s *PolicyStore) Kind(_ context.Context, campaignID string) (policy.Kind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(campaignID)
	if !ok {
		return "", ErrNotFound
	}
	return v.(*campaign).kind, nil
}

// Count implements Store.
func (s *PolicyStore) Count(context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
