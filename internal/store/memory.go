package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	balances  map[model.Principal]decimal.Decimal
	supply    decimal.Decimal
	valuation decimal.Decimal
	roles     map[model.Principal]map[string]bool
	events    []model.Event
	nextSeq   uint64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[model.Principal]decimal.Decimal),
		roles:    make(map[model.Principal]map[string]bool),
		nextSeq:  1,
	}
}

func (s *MemoryStore) Mint(_ context.Context, principal model.Principal, shares decimal.Decimal) error {
	if !shares.IsPositive() {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[principal] = s.balances[principal].Add(shares)
	s.supply = s.supply.Add(shares)
	return nil
}

func (s *MemoryStore) Burn(_ context.Context, principal model.Principal, shares decimal.Decimal) error {
	if !shares.IsPositive() {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.balances[principal]
	if balance.LessThan(shares) {
		return ErrInsufficientBalance
	}
	s.balances[principal] = balance.Sub(shares)
	s.supply = s.supply.Sub(shares)
	return nil
}

func (s *MemoryStore) BalanceOf(_ context.Context, principal model.Principal) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.balances[principal], nil
}

func (s *MemoryStore) TotalSupply(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.supply, nil
}

func (s *MemoryStore) SetValuation(_ context.Context, value decimal.Decimal, _ model.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.valuation = value
	return nil
}

func (s *MemoryStore) GetValuation(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.valuation, nil
}

func (s *MemoryStore) SetRole(_ context.Context, principal model.Principal, role string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled {
		if s.roles[principal] == nil {
			s.roles[principal] = make(map[string]bool)
		}
		s.roles[principal][role] = true
		return nil
	}

	delete(s.roles[principal], role)
	if len(s.roles[principal]) == 0 {
		delete(s.roles, principal)
	}
	return nil
}

func (s *MemoryStore) HasRole(_ context.Context, principal model.Principal, role string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.roles[principal][role], nil
}

func (s *MemoryStore) ListRoles(_ context.Context) ([]model.RoleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []model.RoleEntry
	for principal, roles := range s.roles {
		for role := range roles {
			entries = append(entries, model.RoleEntry{Principal: principal, Role: role})
		}
	}
	return entries, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.Sequence = s.nextSeq
	s.nextSeq++
	s.events = append(s.events, *event)
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, afterSeq uint64, limit int) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Event
	for _, e := range s.events {
		if e.Sequence <= afterSeq {
			continue
		}
		result = append(result, e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}
