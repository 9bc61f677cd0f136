// Package ledger implements the share ledger: the conversion engine that
// turns deposits of the base asset into claim-token shares and burns
// shares back into withdrawal obligations, at a rate set by the current
// pool valuation.
//
// One Service is parameterized by a valuation source and a variant, not
// three copy-pasted ledgers:
//
//   - observed: valuation is the vault's live custody balance; deposits
//     stay in custody; withdraw is unsupported.
//   - reported: valuation is Admin-reported; deposits forward to the
//     portfolio sink; withdraw burns and emits an obligation.
//   - permissioned: reported, with deposits gated by the whitelist.
//
// Every state-mutating operation runs under a contract-wide non-blocking
// guard: a call arriving while another is in flight fails immediately with
// ErrReentrantCall. Deposit and Withdraw make external custody calls, so
// the guard spans the entire call, not just the state writes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/access"
	"github.com/openvault/fund-engine/internal/custody"
	"github.com/openvault/fund-engine/internal/metrics"
	"github.com/openvault/fund-engine/internal/model"
	"github.com/openvault/fund-engine/internal/notify"
	"github.com/openvault/fund-engine/internal/shares"
	"github.com/openvault/fund-engine/internal/store"
	"github.com/openvault/fund-engine/internal/valuation"
)

var (
	// ErrReentrantCall is returned when a guarded operation is invoked
	// while another guarded operation is in flight.
	ErrReentrantCall = errors.New("ledger: reentrant call")

	// ErrInsufficientBalance is returned when a withdraw exceeds the
	// principal's share balance.
	ErrInsufficientBalance = errors.New("ledger: insufficient share balance")

	// ErrUnsupported is returned for operations the configured variant
	// does not offer (withdraw or setValuation on the observed variant).
	ErrUnsupported = errors.New("ledger: operation not supported by this variant")
)

// Config selects the ledger variant and wires its collaborators.
type Config struct {
	// Variant is one of model.VariantObserved, model.VariantReported,
	// model.VariantPermissioned.
	Variant string

	// Source yields the current pool valuation.
	Source valuation.Source

	// Reported must be set for the reported and permissioned variants;
	// it accepts Admin valuation writes.
	Reported *valuation.Reported

	// Sink is the portfolio account deposits are forwarded to. Leave
	// empty for the observed variant, where assets stay in custody.
	Sink model.Principal
}

// Service is the share ledger. It is the sole minter and burner of the
// claim token held in the store.
type Service struct {
	cfg         Config
	store       store.Store
	registry    *access.Registry
	transport   custody.Transport
	coordinator *notify.Coordinator

	// guard is the contract-wide mutual exclusion for state-mutating
	// operations. TryLock, never Lock: a contender must fail, not wait.
	guard sync.Mutex
}

// NewService creates a ledger service for the configured variant.
func NewService(cfg Config, st store.Store, registry *access.Registry, transport custody.Transport, coordinator *notify.Coordinator) (*Service, error) {
	switch cfg.Variant {
	case model.VariantObserved:
		if cfg.Reported != nil {
			return nil, fmt.Errorf("ledger: observed variant takes no reported valuation")
		}
	case model.VariantReported, model.VariantPermissioned:
		if cfg.Reported == nil {
			return nil, fmt.Errorf("ledger: %s variant requires a reported valuation", cfg.Variant)
		}
	default:
		return nil, fmt.Errorf("ledger: unknown variant %q", cfg.Variant)
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("ledger: valuation source is required")
	}

	return &Service{
		cfg:         cfg,
		store:       st,
		registry:    registry,
		transport:   transport,
		coordinator: coordinator,
	}, nil
}

// Variant returns the configured variant name.
func (s *Service) Variant() string { return s.cfg.Variant }

// acquire takes the call guard or fails with ErrReentrantCall.
func (s *Service) acquire() error {
	if !s.guard.TryLock() {
		metrics.ReentrancyRejections.Inc()
		return ErrReentrantCall
	}
	return nil
}

// PreviewDeposit returns the shares a deposit of amount would mint against
// the current state. Pure read, no guard, no side effects.
//
// On the observed variant the eventual deposit reads the valuation after
// its own asset inflow, so a preview taken before the call differs by the
// deposit amount in the denominator.
func (s *Service) PreviewDeposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	supply, err := s.store.TotalSupply(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	value, err := s.cfg.Source.CurrentValuation(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return shares.DepositShares(amount, supply, value)
}

// Deposit pulls amount of the base asset from principal, forwards it to
// the portfolio sink (reported variants), and mints the pro-rata shares.
// All-or-nothing: a custody failure aborts with nothing minted, and a
// failure after the pull refunds the pulled amount.
func (s *Service) Deposit(ctx context.Context, principal model.Principal, amount decimal.Decimal) (*model.DepositReceipt, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.guard.Unlock()

	if !amount.IsPositive() {
		return nil, shares.ErrInvalidAmount
	}

	if s.cfg.Variant == model.VariantPermissioned {
		if err := s.registry.RequireRole(ctx, principal, model.RoleDepositor); err != nil {
			return nil, err
		}
	}

	// Custody inflow first. On the observed variant the valuation read
	// below sees this inflow in the denominator; on the reported variants
	// the valuation is independent of custody.
	if err := s.transport.PullFrom(ctx, principal, amount); err != nil {
		return nil, fmt.Errorf("%w: pull from %s: %w", custody.ErrTransferFailed, principal, err)
	}

	supply, err := s.store.TotalSupply(ctx)
	if err != nil {
		return nil, s.refund(ctx, principal, amount, err)
	}
	value, err := s.cfg.Source.CurrentValuation(ctx)
	if err != nil {
		return nil, s.refund(ctx, principal, amount, err)
	}

	minted, err := shares.DepositShares(amount, supply, value)
	if err != nil {
		return nil, s.refund(ctx, principal, amount, err)
	}

	if s.cfg.Sink != "" {
		if err := s.transport.PushTo(ctx, s.cfg.Sink, amount); err != nil {
			err = fmt.Errorf("%w: push to sink: %w", custody.ErrTransferFailed, err)
			return nil, s.refund(ctx, principal, amount, err)
		}
	}

	if err := s.store.Mint(ctx, principal, minted); err != nil {
		return nil, s.refund(ctx, principal, amount, fmt.Errorf("mint: %w", err))
	}

	if _, err := s.coordinator.Emit(ctx, model.EventDeposit, principal, amount, minted); err != nil {
		slog.Error("deposit event emit failed", "principal", principal, "err", err)
	}

	metrics.DepositsTotal.Inc()
	s.observeTotals(ctx)

	slog.Info("deposit",
		"principal", principal,
		"amount", amount.String(),
		"shares", minted.String(),
		"variant", s.cfg.Variant,
	)

	return &model.DepositReceipt{
		Principal: principal,
		Amount:    amount,
		Shares:    minted,
		Timestamp: time.Now().UTC(),
	}, nil
}

// refund pushes pulled assets back to the principal after a mid-deposit
// failure, then returns the original cause. If the assets already left
// for the sink (mint failed last), the push fails too; that is logged and
// left to operator reconciliation.
func (s *Service) refund(ctx context.Context, principal model.Principal, amount decimal.Decimal, cause error) error {
	if err := s.transport.PushTo(ctx, principal, amount); err != nil {
		slog.Error("deposit refund failed", "principal", principal, "amount", amount.String(), "err", err)
	}
	return cause
}

// PreviewWithdraw returns the asset amount owed for burning sharesIn,
// using the pre-burn supply. Pure read. Supported on reported variants.
func (s *Service) PreviewWithdraw(ctx context.Context, principal model.Principal, sharesIn decimal.Decimal) (decimal.Decimal, error) {
	if s.cfg.Variant == model.VariantObserved {
		return decimal.Decimal{}, fmt.Errorf("%w: withdraw", ErrUnsupported)
	}
	if !sharesIn.IsPositive() {
		return decimal.Decimal{}, shares.ErrInvalidAmount
	}

	balance, err := s.store.BalanceOf(ctx, principal)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if balance.LessThan(sharesIn) {
		return decimal.Decimal{}, fmt.Errorf("%w: holds %s, wants %s", ErrInsufficientBalance, balance, sharesIn)
	}

	supply, err := s.store.TotalSupply(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	value, err := s.cfg.Source.CurrentValuation(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return shares.RedeemAmount(sharesIn, supply, value)
}

// Withdraw burns sharesIn from principal and emits a withdrawal obligation
// for off-ledger fulfillment. No asset leaves custody synchronously; the
// burnt shares are an IOU against the off-ledger pool.
func (s *Service) Withdraw(ctx context.Context, principal model.Principal, sharesIn decimal.Decimal) (*model.WithdrawalReceipt, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.guard.Unlock()

	owed, err := s.PreviewWithdraw(ctx, principal, sharesIn)
	if err != nil {
		return nil, err
	}

	if err := s.store.Burn(ctx, principal, sharesIn); err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			return nil, fmt.Errorf("%w: burn", ErrInsufficientBalance)
		}
		return nil, fmt.Errorf("burn: %w", err)
	}

	event, err := s.coordinator.Emit(ctx, model.EventWithdrawalRequested, principal, owed, sharesIn)
	if err != nil {
		// The journal entry is the only record of the obligation. If it
		// cannot be written the burn must not stand: re-mint and report
		// the cause.
		if mintErr := s.store.Mint(ctx, principal, sharesIn); mintErr != nil {
			slog.Error("withdrawal rollback failed", "principal", principal, "shares", sharesIn.String(), "err", mintErr)
		}
		return nil, err
	}

	metrics.WithdrawalsTotal.Inc()
	s.observeTotals(ctx)

	slog.Info("withdrawal requested",
		"principal", principal,
		"shares", sharesIn.String(),
		"owed", owed.String(),
		"event_id", event.ID,
	)

	return &model.WithdrawalReceipt{
		Principal:  principal,
		Shares:     sharesIn,
		OwedAmount: owed,
		EventID:    event.ID,
		Timestamp:  event.Timestamp,
	}, nil
}

// SetValuation overwrites the reported pool valuation. Admin-only,
// reported variants only, rejects zero.
func (s *Service) SetValuation(ctx context.Context, actor model.Principal, value decimal.Decimal) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.guard.Unlock()

	if s.cfg.Reported == nil {
		return fmt.Errorf("%w: setValuation", ErrUnsupported)
	}
	if err := s.cfg.Reported.SetValuation(ctx, actor, value); err != nil {
		return err
	}

	if _, err := s.coordinator.Emit(ctx, model.EventValuationUpdated, actor, value, decimal.Zero); err != nil {
		slog.Error("valuation event emit failed", "err", err)
	}

	metrics.PoolValuation.Set(toFloat(value))
	slog.Info("valuation set", "actor", actor, "value", value.String())
	return nil
}

// SetAdmin grants or revokes the Admin role. Admin-only. Revoking the last
// Admin (including the actor's own role) is allowed and permanent.
func (s *Service) SetAdmin(ctx context.Context, actor, principal model.Principal, enabled bool) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.guard.Unlock()

	if enabled {
		return s.registry.Grant(ctx, actor, principal, model.RoleAdmin)
	}
	return s.registry.Revoke(ctx, actor, principal, model.RoleAdmin)
}

// AddToWhitelist grants the Depositor role and emits a Whitelisted event.
// Admin-only.
func (s *Service) AddToWhitelist(ctx context.Context, actor, principal model.Principal) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.guard.Unlock()

	if err := s.registry.Grant(ctx, actor, principal, model.RoleDepositor); err != nil {
		return err
	}
	if _, err := s.coordinator.Emit(ctx, model.EventWhitelisted, principal, decimal.Zero, decimal.Zero); err != nil {
		slog.Error("whitelist event emit failed", "err", err)
	}
	return nil
}

// RemoveFromWhitelist revokes the Depositor role. Admin-only.
func (s *Service) RemoveFromWhitelist(ctx context.Context, actor, principal model.Principal) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.guard.Unlock()

	if err := s.registry.Revoke(ctx, actor, principal, model.RoleDepositor); err != nil {
		return err
	}
	if _, err := s.coordinator.Emit(ctx, model.EventWhitelistRemoved, principal, decimal.Zero, decimal.Zero); err != nil {
		slog.Error("whitelist event emit failed", "err", err)
	}
	return nil
}

// PricePerShare returns the asset value of one share scaled by
// shares.PriceUnit; the identity price for a zero-supply pool. Pure read.
func (s *Service) PricePerShare(ctx context.Context) (decimal.Decimal, error) {
	supply, err := s.store.TotalSupply(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	value, err := s.cfg.Source.CurrentValuation(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return shares.PricePerShare(supply, value), nil
}

// BalanceOf returns principal's share balance. Pure read.
func (s *Service) BalanceOf(ctx context.Context, principal model.Principal) (decimal.Decimal, error) {
	return s.store.BalanceOf(ctx, principal)
}

// TotalSupply returns the outstanding share supply. Pure read.
func (s *Service) TotalSupply(ctx context.Context) (decimal.Decimal, error) {
	return s.store.TotalSupply(ctx)
}

func (s *Service) observeTotals(ctx context.Context) {
	if supply, err := s.store.TotalSupply(ctx); err == nil {
		metrics.ShareSupply.Set(toFloat(supply))
	}
	if value, err := s.cfg.Source.CurrentValuation(ctx); err == nil {
		metrics.PoolValuation.Set(toFloat(value))
	}
}

// toFloat converts for gauge export only; money math never uses float64.
func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
