package custody

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/model"
)

// MemoryBank is an in-memory asset transport for development and tests.
// The vault's own custody is modeled as one principal account; PullFrom
// moves into it, PushTo moves out of it.
type MemoryBank struct {
	mu       sync.Mutex
	vault    model.Principal
	balances map[model.Principal]decimal.Decimal
}

// NewMemoryBank creates a bank whose vault custody account is vault.
func NewMemoryBank(vault model.Principal) *MemoryBank {
	return &MemoryBank{
		vault:    vault,
		balances: make(map[model.Principal]decimal.Decimal),
	}
}

// Credit seeds a principal's balance. Test and dev setup only.
func (b *MemoryBank) Credit(principal model.Principal, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[principal] = b.balances[principal].Add(amount)
}

func (b *MemoryBank) PullFrom(_ context.Context, from model.Principal, amount decimal.Decimal) error {
	return b.transfer(from, b.vault, amount)
}

func (b *MemoryBank) PushTo(_ context.Context, to model.Principal, amount decimal.Decimal) error {
	return b.transfer(b.vault, to, amount)
}

func (b *MemoryBank) BalanceOf(_ context.Context, principal model.Principal) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[principal], nil
}

func (b *MemoryBank) transfer(from, to model.Principal, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: non-positive amount %s", ErrTransferFailed, amount)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	balance := b.balances[from]
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrTransferFailed, from, balance, amount)
	}
	b.balances[from] = balance.Sub(amount)
	b.balances[to] = b.balances[to].Add(amount)
	return nil
}
