// Package pricing exposes the read-only price-per-share view for external
// consumers (dashboards, integrators). No caching; every call recomputes
// from the current supply and valuation.
package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/shares"
	"github.com/openvault/fund-engine/internal/store"
	"github.com/openvault/fund-engine/internal/valuation"
)

// Reporter computes price per share from live state.
type Reporter struct {
	store  store.Store
	source valuation.Source
}

// NewReporter creates a price reporter.
func NewReporter(st store.Store, source valuation.Source) *Reporter {
	return &Reporter{store: st, source: source}
}

// PricePerShare returns the asset value of one share, scaled by
// shares.PriceUnit. A zero-supply pool reports the identity price.
func (r *Reporter) PricePerShare(ctx context.Context) (decimal.Decimal, error) {
	supply, err := r.store.TotalSupply(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	value, err := r.source.CurrentValuation(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return shares.PricePerShare(supply, value), nil
}
