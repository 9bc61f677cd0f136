// Package model defines the core domain types shared across the fund engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Principal is an opaque account identity. Used as a map key everywhere.
type Principal string

// Roles recognized by the access registry. Admin is a superset privilege:
// an Admin can grant and revoke both roles, including its own.
const (
	RoleAdmin     = "admin"
	RoleDepositor = "depositor"
)

// Vault variants, differing only in how total backing value is determined
// and who may deposit.
const (
	// VariantObserved values the pool by the asset balance the vault
	// account actually holds. Deposits stay in custody; no withdraw.
	VariantObserved = "observed"

	// VariantReported values the pool by an Admin-reported figure for
	// assets held off-site. Withdraw is a two-phase burn-then-fulfill.
	VariantReported = "reported"

	// VariantPermissioned is VariantReported with deposits gated by the
	// depositor whitelist.
	VariantPermissioned = "permissioned"
)

// Event types appended to the durable journal and broadcast to observers.
const (
	EventDeposit             = "deposit"
	EventWithdrawalRequested = "withdrawal_requested"
	EventWhitelisted         = "whitelisted"
	EventWhitelistRemoved    = "whitelist_removed"
	EventValuationUpdated    = "valuation_updated"
)

// Event is an immutable journal record. Sequence is assigned by the store
// and strictly increasing per journal; once appended, events are never
// modified or deleted. Withdrawal events are the only record of the
// obligation — fulfillment is fully external.
type Event struct {
	ID        string          `json:"id" db:"id"`
	Sequence  uint64          `json:"sequence" db:"sequence"`
	Type      string          `json:"type" db:"type"`
	Principal Principal       `json:"principal" db:"principal"`
	Amount    decimal.Decimal `json:"amount" db:"amount"` // asset units
	Shares    decimal.Decimal `json:"shares" db:"shares"` // claim-token units
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// RoleEntry is one row of the access registry.
type RoleEntry struct {
	Principal Principal `json:"principal" db:"principal"`
	Role      string    `json:"role" db:"role"`
}

// DepositReceipt is returned from a completed deposit.
type DepositReceipt struct {
	Principal Principal       `json:"principal"`
	Amount    decimal.Decimal `json:"amount"`
	Shares    decimal.Decimal `json:"shares"`
	Timestamp time.Time       `json:"timestamp"`
}

// WithdrawalReceipt is returned from a completed withdraw. OwedAmount is an
// obligation against the off-ledger pool, not an escrowed transfer.
type WithdrawalReceipt struct {
	Principal  Principal       `json:"principal"`
	Shares     decimal.Decimal `json:"shares"`
	OwedAmount decimal.Decimal `json:"owed_amount"`
	EventID    string          `json:"event_id"`
	Timestamp  time.Time       `json:"timestamp"`
}
