// Package notify turns ledger occurrences into durable, ordered events for
// off-ledger observers. A withdrawal obligation is the load-bearing case:
// the burn has already happened, and the event is the only record that an
// off-ledger fulfillment is owed. There is no escrow, no timeout, and no
// retry here — fulfillment is enforced by governance, not by the ledger.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/model"
	"github.com/openvault/fund-engine/internal/store"
)

// Coordinator appends events to the store journal (durable, sequence
// ordered) and broadcasts them to websocket observers. Pass nil for hub if
// broadcasting is not needed.
type Coordinator struct {
	store store.Store
	hub   *Hub
}

// NewCoordinator creates a coordinator over the given journal store.
func NewCoordinator(st store.Store, hub *Hub) *Coordinator {
	return &Coordinator{store: st, hub: hub}
}

// Emit records an event and broadcasts it. The returned event carries the
// journal-assigned sequence. Callers emit under the ledger's call guard,
// so per-emitter ordering in the journal matches execution order.
func (c *Coordinator) Emit(ctx context.Context, eventType string, principal model.Principal, amount, shares decimal.Decimal) (*model.Event, error) {
	event := &model.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Principal: principal,
		Amount:    amount,
		Shares:    shares,
		Timestamp: time.Now().UTC(),
	}

	if err := c.store.AppendEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("notify: append %s: %w", eventType, err)
	}

	if c.hub != nil {
		c.hub.Broadcast(event)
	}
	return event, nil
}

// Events returns journal events after the given sequence, in order.
func (c *Coordinator) Events(ctx context.Context, afterSeq uint64, limit int) ([]model.Event, error) {
	return c.store.ListEvents(ctx, afterSeq, limit)
}
