package valuation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/access"
	"github.com/openvault/fund-engine/internal/custody"
	"github.com/openvault/fund-engine/internal/store"
	"github.com/openvault/fund-engine/internal/valuation"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestObserved_TracksCustodyBalance(t *testing.T) {
	ctx := context.Background()
	bank := custody.NewMemoryBank("vault")
	source := valuation.NewObserved(bank, "vault")

	value, err := source.CurrentValuation(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !value.IsZero() {
		t.Errorf("expected zero for an empty vault, got %s", value)
	}

	bank.Credit("vault", d(777))
	value, _ = source.CurrentValuation(ctx)
	if !value.Equal(d(777)) {
		t.Errorf("expected 777, got %s", value)
	}
}

func TestReported_SetAndRead(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	registry, err := access.NewRegistry(ctx, st, "admin")
	if err != nil {
		t.Fatal(err)
	}
	source := valuation.NewReported(st, registry)

	// Zero until first set.
	value, _ := source.CurrentValuation(ctx)
	if !value.IsZero() {
		t.Errorf("expected zero before first report, got %s", value)
	}

	if err := source.SetValuation(ctx, "admin", d(5000)); err != nil {
		t.Fatal(err)
	}
	value, _ = source.CurrentValuation(ctx)
	if !value.Equal(d(5000)) {
		t.Errorf("expected 5000, got %s", value)
	}

	// Overwrites are unbounded.
	if err := source.SetValuation(ctx, "admin", d(1)); err != nil {
		t.Fatal(err)
	}
	value, _ = source.CurrentValuation(ctx)
	if !value.Equal(d(1)) {
		t.Errorf("expected 1, got %s", value)
	}
}

func TestReported_RejectsZeroAndNonAdmin(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	registry, err := access.NewRegistry(ctx, st, "admin")
	if err != nil {
		t.Fatal(err)
	}
	source := valuation.NewReported(st, registry)

	if err := source.SetValuation(ctx, "admin", d(0)); !errors.Is(err, valuation.ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if err := source.SetValuation(ctx, "admin", d(-7)); !errors.Is(err, valuation.ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for negative, got %v", err)
	}
	if err := source.SetValuation(ctx, "mallory", d(100)); !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
