// Package valuation determines the total backing value attributed to all
// outstanding shares. Two strategies share one interface: Observed derives
// the value live from the vault's custody balance, Reported holds a figure
// pushed in by an Admin for assets held off-site.
package valuation

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/access"
	"github.com/openvault/fund-engine/internal/custody"
	"github.com/openvault/fund-engine/internal/model"
	"github.com/openvault/fund-engine/internal/store"
)

// ErrInvalidValue is returned when a reported valuation is zero or
// negative. A zero report is always rejected.
var ErrInvalidValue = errors.New("valuation: reported value must be positive")

// Source yields the current total backing value of the pool.
type Source interface {
	CurrentValuation(ctx context.Context) (decimal.Decimal, error)
}

// Observed values the pool by the base-asset balance the vault account
// actually holds. It cannot be manipulated by a privileged party and
// cannot reflect off-ledger assets. There is no write operation.
type Observed struct {
	reader custody.BalanceReader
	vault  model.Principal
}

// NewObserved creates an observed source reading the vault account.
func NewObserved(reader custody.BalanceReader, vault model.Principal) *Observed {
	return &Observed{reader: reader, vault: vault}
}

func (o *Observed) CurrentValuation(ctx context.Context) (decimal.Decimal, error) {
	return o.reader.BalanceOf(ctx, o.vault)
}

// Reported holds the last Admin-reported value in the store. It reads as
// zero until the first report; conversions against a zero valuation with
// outstanding shares fail upstream rather than divide by zero.
type Reported struct {
	store    store.Store
	registry *access.Registry
}

// NewReported creates a reported source backed by the store.
func NewReported(st store.Store, registry *access.Registry) *Reported {
	return &Reported{store: st, registry: registry}
}

func (r *Reported) CurrentValuation(ctx context.Context) (decimal.Decimal, error) {
	return r.store.GetValuation(ctx)
}

// SetValuation overwrites the reported value. Fails with
// access.ErrUnauthorized unless actor is an Admin, and with
// ErrInvalidValue if the value is not strictly positive.
func (r *Reported) SetValuation(ctx context.Context, actor model.Principal, value decimal.Decimal) error {
	if err := r.registry.RequireRole(ctx, actor, model.RoleAdmin); err != nil {
		return err
	}
	if !value.IsPositive() {
		return ErrInvalidValue
	}
	return r.store.SetValuation(ctx, value, actor)
}
