package notify_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/model"
	"github.com/openvault/fund-engine/internal/notify"
	"github.com/openvault/fund-engine/internal/store"
)

func TestEmit_DurableAndOrdered(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	c := notify.NewCoordinator(st, nil)

	first, err := c.Emit(ctx, model.EventWithdrawalRequested, "alice",
		decimal.NewFromInt(500), decimal.NewFromInt(50))
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Emit(ctx, model.EventWhitelisted, "bob",
		decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatal(err)
	}

	if first.ID == "" || second.ID == "" {
		t.Error("events need ids")
	}
	if second.Sequence <= first.Sequence {
		t.Errorf("sequences must increase: %d then %d", first.Sequence, second.Sequence)
	}

	// The journal survives independent of any live observer.
	events, err := c.Events(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 journal events, got %d", len(events))
	}
	if events[0].Type != model.EventWithdrawalRequested {
		t.Errorf("expected withdrawal_requested first, got %s", events[0].Type)
	}
	if !events[0].Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("obligation amount mismatch: %s", events[0].Amount)
	}
}
