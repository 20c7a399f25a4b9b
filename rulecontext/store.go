// Package rulecontext is the read-mostly Threshold/WhitelistItem
// cache that backs model.RuleContext loading, per spec.md §5's
// shared-resource policy: "Thresholds and whitelist caches, if used,
// are read-mostly with coarse-grained invalidation on admin mutation
// (no per-item locking)." Adapted from policy/opa.go's OPAClient
// in-memory policy store + RWMutex shape, generalized from Rego
// policy documents to Threshold/WhitelistItem rows and from a
// per-policy evaluation log to a per-seller read-through cache.
package rulecontext

import (
	"context"
	"sync"
	"time"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

// Loader fetches the full active threshold/whitelist rows from the
// relational store. Implemented by store/.
type Loader interface {
	ActiveThresholds(ctx context.Context, sellerID string) ([]model.Threshold, error)
	ActiveWhitelist(ctx context.Context, sellerID string) ([]model.WhitelistItem, error)
}

// entry is one seller's cached RuleContext plus its fetch time.
type entry struct {
	ctx       model.RuleContext
	fetchedAt time.Time
}

// Store is the read-mostly, coarsely-invalidated threshold/whitelist
// cache. A single RWMutex guards the whole map — per spec.md §5 this
// is deliberately coarse-grained, not per-item, since admin mutations
// are rare relative to reads.
type Store struct {
	mu     sync.RWMutex
	loader Loader
	ttl    time.Duration
	bySeller map[string]entry
	clock  func() time.Time
}

// NewStore builds a Store with the given TTL for cache freshness.
// ttl <= 0 disables time-based expiry; callers then rely solely on
// Invalidate for freshness, matching admin-mutation-driven invalidation.
func NewStore(loader Loader, ttl time.Duration) *Store {
	return &Store{
		loader:   loader,
		ttl:      ttl,
		bySeller: make(map[string]entry),
		clock:    time.Now,
	}
}

// WithClock overrides the store's time source, for tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// Load returns the RuleContext for sellerID, serving from cache when
// fresh and falling through to the Loader otherwise.
func (s *Store) Load(ctx context.Context, sellerID string) (model.RuleContext, error) {
	if cached, ok := s.readCached(sellerID); ok {
		return cached, nil
	}

	thresholds, err := s.loader.ActiveThresholds(ctx, sellerID)
	if err != nil {
		return model.RuleContext{}, model.NewDomainError(model.ErrTransientExternal, "load thresholds", err)
	}
	whitelist, err := s.loader.ActiveWhitelist(ctx, sellerID)
	if err != nil {
		return model.RuleContext{}, model.NewDomainError(model.ErrTransientExternal, "load whitelist", err)
	}

	rc := model.RuleContext{Thresholds: thresholds, Whitelist: whitelist}

	s.mu.Lock()
	s.bySeller[sellerID] = entry{ctx: rc, fetchedAt: s.clock()}
	s.mu.Unlock()

	return rc, nil
}

func (s *Store) readCached(sellerID string) (model.RuleContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.bySeller[sellerID]
	if !ok {
		return model.RuleContext{}, false
	}
	if s.ttl > 0 && s.clock().Sub(e.fetchedAt) > s.ttl {
		return model.RuleContext{}, false
	}
	return e.ctx, true
}

// Invalidate drops the cached RuleContext for one seller, per
// spec.md §5's "coarse-grained invalidation on admin mutation" —
// called by the out-of-core admin interface whenever a Threshold or
// WhitelistItem row changes for that seller.
func (s *Store) Invalidate(sellerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bySeller, sellerID)
}

// InvalidateAll drops the entire cache, used when a global (nil
// seller_id) threshold changes, since that can affect every seller's
// effective context.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySeller = make(map[string]entry)
}
