// Package shares implements the proportional-share conversion math for the
// fund engine: deposits of the base asset convert into claim-token shares
// and back at a rate set by the pool's total backing valuation.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Every division floors (operands are non-negative, so exact truncation is
// the floor), which rounds in the pool's favor: a depositor never mints
// more than their pro-rata claim and a redeemer is never owed more than
// their pro-rata slice.
package shares

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for a zero or negative quantity.
	ErrInvalidAmount = errors.New("shares: amount must be positive")

	// ErrZeroValuation is returned when shares are outstanding but the
	// pool valuation is zero. Converting would either divide by zero or
	// mint against a worthless pool; the caller must report a valuation
	// first.
	ErrZeroValuation = errors.New("shares: valuation is zero with outstanding shares")

	// ErrZeroSupply is returned when a redemption is attempted against a
	// zero share supply. Unreachable for a caller holding a positive
	// balance, but checked so the divisor is never zero.
	ErrZeroSupply = errors.New("shares: total supply is zero")
)

// PriceUnit is the fixed-point scale for price-per-share: a price of
// 1 * PriceUnit means one share redeems for exactly one asset unit.
// Every variant uses this same scale.
var PriceUnit = decimal.New(1, 18)

// floorDiv returns floor(a / b) exactly. QuoRem with precision 0 truncates,
// and truncation equals floor for the non-negative operands used here.
func floorDiv(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, 0)
	return q
}

// DepositShares returns the shares minted for depositing amount into a pool
// with the given outstanding supply and total valuation.
//
// Bootstrap rule: a zero-supply pool mints 1:1, fixing the initial exchange
// rate at one and keeping supply out of any divisor. Otherwise:
//
//	shares = floor(amount * supply / valuation)
func DepositShares(amount, supply, valuation decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if supply.IsZero() {
		return amount, nil
	}
	if !valuation.IsPositive() {
		return decimal.Zero, ErrZeroValuation
	}
	return floorDiv(amount.Mul(supply), valuation), nil
}

// RedeemAmount returns the asset amount owed for burning the given shares.
// Supply must be the pre-burn total supply; the burn happens after the owed
// amount is computed, never before.
//
//	amount = floor(shares * valuation / supply)
func RedeemAmount(sharesIn, supply, valuation decimal.Decimal) (decimal.Decimal, error) {
	if !sharesIn.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if supply.IsZero() {
		return decimal.Zero, ErrZeroSupply
	}
	return floorDiv(sharesIn.Mul(valuation), supply), nil
}

// PricePerShare returns the asset value of one share, scaled by PriceUnit.
// A zero-supply pool reports the identity price (1 * PriceUnit).
//
//	price = floor(valuation * PriceUnit / supply)
func PricePerShare(supply, valuation decimal.Decimal) decimal.Decimal {
	if supply.IsZero() {
		return PriceUnit
	}
	return floorDiv(valuation.Mul(PriceUnit), supply)
}
