package sqlstore

import (
	"context"
	"fmt"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-leads/core"
)

// AttributionRulesCacheKey is the deterministic cache key for the active
// attribution rule set. Rules change rarely and are read on every
// submission, so one shared entry is enough.
const AttributionRulesCacheKey = "go-leads::attribution_rules::v1::active"

// AttributionRuleRepository is the read/write surface of the rule store the
// cache layer wraps.
type AttributionRuleRepository interface {
	core.RuleSource
	List(ctx context.Context) ([]core.AttributionRule, error)
	Save(ctx context.Context, rule core.AttributionRule) (core.AttributionRule, error)
	Delete(ctx context.Context, id string) error
}

type CachedAttributionRuleStore struct {
	base  AttributionRuleRepository
	cache repositorycache.CacheService
}

func NewCachedAttributionRuleStore(
	base AttributionRuleRepository,
	cacheService repositorycache.CacheService,
) (*CachedAttributionRuleStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base attribution rule store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: attribution rule cache service is required")
	}
	return &CachedAttributionRuleStore{base: base, cache: cacheService}, nil
}

func (s *CachedAttributionRuleStore) ActiveRules(ctx context.Context) ([]core.AttributionRule, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached attribution rule store is not configured")
	}
	rules, err := repositorycache.GetOrFetch(ctx, s.cache, AttributionRulesCacheKey,
		func(ctx context.Context) ([]core.AttributionRule, error) {
			return s.base.ActiveRules(ctx)
		})
	if err != nil {
		return nil, err
	}
	return cloneRules(rules), nil
}

func (s *CachedAttributionRuleStore) List(ctx context.Context) ([]core.AttributionRule, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached attribution rule store is not configured")
	}
	return s.base.List(ctx)
}

func (s *CachedAttributionRuleStore) Save(ctx context.Context, rule core.AttributionRule) (core.AttributionRule, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.AttributionRule{}, fmt.Errorf("sqlstore: cached attribution rule store is not configured")
	}
	saved, err := s.base.Save(ctx, rule)
	if err != nil {
		return core.AttributionRule{}, err
	}
	if err := s.cache.Delete(ctx, AttributionRulesCacheKey); err != nil {
		return core.AttributionRule{}, err
	}
	return saved, nil
}

func (s *CachedAttributionRuleStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached attribution rule store is not configured")
	}
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	return s.cache.Delete(ctx, AttributionRulesCacheKey)
}

func cloneRules(rules []core.AttributionRule) []core.AttributionRule {
	if len(rules) == 0 {
		return []core.AttributionRule{}
	}
	out := make([]core.AttributionRule, len(rules))
	copy(out, rules)
	return out
}

var _ core.RuleSource = (*CachedAttributionRuleStore)(nil)
