package custody_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/custody"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestPullPush_RoundTrip(t *testing.T) {
	ctx := context.Background()
	bank := custody.NewMemoryBank("vault")
	bank.Credit("alice", d(100))

	if err := bank.PullFrom(ctx, "alice", d(60)); err != nil {
		t.Fatal(err)
	}
	vaultBal, _ := bank.BalanceOf(ctx, "vault")
	if !vaultBal.Equal(d(60)) {
		t.Errorf("expected vault 60, got %s", vaultBal)
	}

	if err := bank.PushTo(ctx, "portfolio", d(60)); err != nil {
		t.Fatal(err)
	}
	sinkBal, _ := bank.BalanceOf(ctx, "portfolio")
	if !sinkBal.Equal(d(60)) {
		t.Errorf("expected portfolio 60, got %s", sinkBal)
	}
}

func TestPullFrom_InsufficientFails(t *testing.T) {
	ctx := context.Background()
	bank := custody.NewMemoryBank("vault")
	bank.Credit("alice", d(10))

	err := bank.PullFrom(ctx, "alice", d(11))
	if !errors.Is(err, custody.ErrTransferFailed) {
		t.Errorf("expected ErrTransferFailed, got %v", err)
	}

	// Nothing moved.
	balance, _ := bank.BalanceOf(ctx, "alice")
	if !balance.Equal(d(10)) {
		t.Errorf("failed pull must not debit, got %s", balance)
	}
}

func TestTransfer_NonPositiveFails(t *testing.T) {
	ctx := context.Background()
	bank := custody.NewMemoryBank("vault")

	if err := bank.PullFrom(ctx, "alice", d(0)); !errors.Is(err, custody.ErrTransferFailed) {
		t.Errorf("expected ErrTransferFailed for zero, got %v", err)
	}
}
