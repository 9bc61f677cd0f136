package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot read paths: balances, total supply, and the reported
// valuation. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// The event journal and role entries are never cached: event ordering and
// authorization checks must not see stale data.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) Mint(ctx context.Context, principal model.Principal, shares decimal.Decimal) error {
	if err := s.primary.Mint(ctx, principal, shares); err != nil {
		return err
	}
	s.rdb.Del(ctx, balanceKey(principal), supplyKey)
	return nil
}

func (s *CachedStore) Burn(ctx context.Context, principal model.Principal, shares decimal.Decimal) error {
	if err := s.primary.Burn(ctx, principal, shares); err != nil {
		return err
	}
	s.rdb.Del(ctx, balanceKey(principal), supplyKey)
	return nil
}

func (s *CachedStore) SetValuation(ctx context.Context, value decimal.Decimal, by model.Principal) error {
	if err := s.primary.SetValuation(ctx, value, by); err != nil {
		return err
	}
	// Invalidate; next read will re-populate.
	s.rdb.Del(ctx, valuationKey)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) BalanceOf(ctx context.Context, principal model.Principal) (decimal.Decimal, error) {
	return s.cachedDecimal(ctx, balanceKey(principal), func() (decimal.Decimal, error) {
		return s.primary.BalanceOf(ctx, principal)
	})
}

func (s *CachedStore) TotalSupply(ctx context.Context) (decimal.Decimal, error) {
	return s.cachedDecimal(ctx, supplyKey, func() (decimal.Decimal, error) {
		return s.primary.TotalSupply(ctx)
	})
}

func (s *CachedStore) GetValuation(ctx context.Context) (decimal.Decimal, error) {
	return s.cachedDecimal(ctx, valuationKey, func() (decimal.Decimal, error) {
		return s.primary.GetValuation(ctx)
	})
}

// --- Passthrough (not cached) ---

func (s *CachedStore) SetRole(ctx context.Context, principal model.Principal, role string, enabled bool) error {
	return s.primary.SetRole(ctx, principal, role, enabled)
}

func (s *CachedStore) HasRole(ctx context.Context, principal model.Principal, role string) (bool, error) {
	return s.primary.HasRole(ctx, principal, role)
}

func (s *CachedStore) ListRoles(ctx context.Context) ([]model.RoleEntry, error) {
	return s.primary.ListRoles(ctx)
}

func (s *CachedStore) AppendEvent(ctx context.Context, event *model.Event) error {
	return s.primary.AppendEvent(ctx, event)
}

func (s *CachedStore) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]model.Event, error) {
	return s.primary.ListEvents(ctx, afterSeq, limit)
}

// --- Cache helpers ---

func (s *CachedStore) cachedDecimal(ctx context.Context, key string, load func() (decimal.Decimal, error)) (decimal.Decimal, error) {
	// Try cache.
	if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
		if value, err := decimal.NewFromString(raw); err == nil {
			return value, nil
		}
	}

	// Cache miss: read from primary.
	value, err := load()
	if err != nil {
		return decimal.Decimal{}, err
	}
	s.rdb.Set(ctx, key, value.String(), s.ttl)
	return value, nil
}

const (
	supplyKey    = "shares:supply"
	valuationKey = "valuation:reported"
)

func balanceKey(p model.Principal) string { return fmt.Sprintf("shares:balance:%s", p) }
