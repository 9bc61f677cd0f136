// Package custody defines the base-asset transport boundary. The fund
// engine never moves the base asset itself; it instructs a transport to
// pull from depositors and push to the portfolio sink, and treats every
// transfer as fallible. A failed transfer aborts the whole enclosing
// operation.
package custody

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/model"
)

// ErrTransferFailed is returned when the external custody transport
// rejects a pull or push.
var ErrTransferFailed = errors.New("custody: external transfer failed")

// Transport moves the base asset between principals. Implementations are
// external collaborators (bank rails, token bridges); MemoryBank is the
// in-process reference used for development and tests.
type Transport interface {
	// PullFrom debits amount from the principal into vault custody.
	PullFrom(ctx context.Context, from model.Principal, amount decimal.Decimal) error

	// PushTo credits amount from vault custody to the destination.
	PushTo(ctx context.Context, to model.Principal, amount decimal.Decimal) error
}

// BalanceReader exposes the live custody balance of a principal. The
// observed-valuation strategy reads the vault account through this.
type BalanceReader interface {
	BalanceOf(ctx context.Context, principal model.Principal) (decimal.Decimal, error)
}
