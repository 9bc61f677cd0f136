// Package store defines the persistence interface for the fund engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/model"
)

var (
	// ErrInsufficientBalance is returned when a burn exceeds the
	// principal's claim-token balance.
	ErrInsufficientBalance = errors.New("store: insufficient share balance")

	// ErrInvalidAmount is returned for a non-positive mint or burn.
	ErrInvalidAmount = errors.New("store: amount must be positive")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. It carries the claim-token
// ledger (the share ledger is the sole minter/burner), the reported
// valuation, the access registry, and the append-only event journal.
type Store interface {
	// --- Claim-token ledger ---

	// Mint credits shares to a principal and grows total supply.
	Mint(ctx context.Context, principal model.Principal, shares decimal.Decimal) error

	// Burn debits shares from a principal and shrinks total supply.
	// Fails with ErrInsufficientBalance if the principal holds less.
	Burn(ctx context.Context, principal model.Principal, shares decimal.Decimal) error

	// BalanceOf returns a principal's claim-token balance (zero if unknown).
	BalanceOf(ctx context.Context, principal model.Principal) (decimal.Decimal, error)

	// TotalSupply returns the outstanding claim-token supply.
	TotalSupply(ctx context.Context) (decimal.Decimal, error)

	// --- Reported valuation ---

	// SetValuation overwrites the reported total backing value.
	SetValuation(ctx context.Context, value decimal.Decimal, by model.Principal) error

	// GetValuation returns the last reported value, zero until first set.
	GetValuation(ctx context.Context) (decimal.Decimal, error)

	// --- Access registry ---

	// SetRole adds or removes a role for a principal. Idempotent.
	SetRole(ctx context.Context, principal model.Principal, role string, enabled bool) error

	// HasRole reports whether the principal currently holds the role.
	HasRole(ctx context.Context, principal model.Principal, role string) (bool, error)

	// ListRoles returns every current role entry.
	ListRoles(ctx context.Context) ([]model.RoleEntry, error)

	// --- Event journal ---

	// AppendEvent appends an immutable event, assigning its sequence.
	AppendEvent(ctx context.Context, event *model.Event) error

	// ListEvents returns events with sequence > afterSeq, in order.
	// limit <= 0 means no limit.
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]model.Event, error)
}
