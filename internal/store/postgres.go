package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
//
// Expected schema:
//
//	CREATE TABLE share_balances (
//	    principal TEXT PRIMARY KEY,
//	    balance   NUMERIC NOT NULL DEFAULT 0
//	);
//	CREATE TABLE share_supply (
//	    id     SMALLINT PRIMARY KEY CHECK (id = 1),
//	    supply NUMERIC NOT NULL DEFAULT 0
//	);
//	CREATE TABLE reported_valuation (
//	    id          SMALLINT PRIMARY KEY CHECK (id = 1),
//	    value       NUMERIC NOT NULL,
//	    last_set_by TEXT NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE role_entries (
//	    principal TEXT NOT NULL,
//	    role      TEXT NOT NULL,
//	    PRIMARY KEY (principal, role)
//	);
//	CREATE TABLE events (
//	    sequence  BIGSERIAL PRIMARY KEY,
//	    id        TEXT NOT NULL,
//	    type      TEXT NOT NULL,
//	    principal TEXT NOT NULL,
//	    amount    NUMERIC NOT NULL,
//	    shares    NUMERIC NOT NULL,
//	    timestamp TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Mint(ctx context.Context, principal model.Principal, shares decimal.Decimal) error {
	if !shares.IsPositive() {
		return ErrInvalidAmount
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO share_balances (principal, balance) VALUES ($1, $2::NUMERIC)
			 ON CONFLICT (principal) DO UPDATE SET balance = share_balances.balance + EXCLUDED.balance`,
			string(principal), shares.String())
		if err != nil {
			return fmt.Errorf("mint credit %s: %w", principal, err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO share_supply (id, supply) VALUES (1, $1::NUMERIC)
			 ON CONFLICT (id) DO UPDATE SET supply = share_supply.supply + EXCLUDED.supply`,
			shares.String())
		if err != nil {
			return fmt.Errorf("mint supply: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Burn(ctx context.Context, principal model.Principal, shares decimal.Decimal) error {
	if !shares.IsPositive() {
		return ErrInvalidAmount
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Conditional debit: zero rows affected means the balance was short.
		tag, err := tx.Exec(ctx,
			`UPDATE share_balances SET balance = balance - $2::NUMERIC
			 WHERE principal = $1 AND balance >= $2::NUMERIC`,
			string(principal), shares.String())
		if err != nil {
			return fmt.Errorf("burn debit %s: %w", principal, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrInsufficientBalance
		}

		_, err = tx.Exec(ctx,
			`UPDATE share_supply SET supply = supply - $1::NUMERIC WHERE id = 1`,
			shares.String())
		if err != nil {
			return fmt.Errorf("burn supply: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) BalanceOf(ctx context.Context, principal model.Principal) (decimal.Decimal, error) {
	var balS string
	err := s.pool.QueryRow(ctx,
		`SELECT balance::TEXT FROM share_balances WHERE principal = $1`,
		string(principal)).Scan(&balS)
	if err == pgx.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("balance of %s: %w", principal, err)
	}

	balance, _ := decimal.NewFromString(balS)
	return balance, nil
}

func (s *PostgresStore) TotalSupply(ctx context.Context) (decimal.Decimal, error) {
	var supplyS string
	err := s.pool.QueryRow(ctx,
		`SELECT supply::TEXT FROM share_supply WHERE id = 1`).Scan(&supplyS)
	if err == pgx.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("total supply: %w", err)
	}

	supply, _ := decimal.NewFromString(supplyS)
	return supply, nil
}

func (s *PostgresStore) SetValuation(ctx context.Context, value decimal.Decimal, by model.Principal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reported_valuation (id, value, last_set_by, updated_at)
		 VALUES (1, $1::NUMERIC, $2, now())
		 ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value,
		     last_set_by = EXCLUDED.last_set_by, updated_at = EXCLUDED.updated_at`,
		value.String(), string(by))
	if err != nil {
		return fmt.Errorf("set valuation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetValuation(ctx context.Context) (decimal.Decimal, error) {
	var valueS string
	err := s.pool.QueryRow(ctx,
		`SELECT value::TEXT FROM reported_valuation WHERE id = 1`).Scan(&valueS)
	if err == pgx.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("get valuation: %w", err)
	}

	value, _ := decimal.NewFromString(valueS)
	return value, nil
}

func (s *PostgresStore) SetRole(ctx context.Context, principal model.Principal, role string, enabled bool) error {
	var err error
	if enabled {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO role_entries (principal, role) VALUES ($1, $2)
			 ON CONFLICT (principal, role) DO NOTHING`,
			string(principal), role)
	} else {
		_, err = s.pool.Exec(ctx,
			`DELETE FROM role_entries WHERE principal = $1 AND role = $2`,
			string(principal), role)
	}
	if err != nil {
		return fmt.Errorf("set role %s/%s: %w", principal, role, err)
	}
	return nil
}

func (s *PostgresStore) HasRole(ctx context.Context, principal model.Principal, role string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM role_entries WHERE principal = $1 AND role = $2)`,
		string(principal), role).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has role %s/%s: %w", principal, role, err)
	}
	return exists, nil
}

func (s *PostgresStore) ListRoles(ctx context.Context) ([]model.RoleEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT principal, role FROM role_entries ORDER BY principal, role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.RoleEntry
	for rows.Next() {
		var e model.RoleEntry
		var principal string
		if err := rows.Scan(&principal, &e.Role); err != nil {
			return nil, err
		}
		e.Principal = model.Principal(principal)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) AppendEvent(ctx context.Context, event *model.Event) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO events (id, type, principal, amount, shares, timestamp)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6)
		 RETURNING sequence`,
		event.ID, event.Type, string(event.Principal),
		event.Amount.String(), event.Shares.String(), event.Timestamp).
		Scan(&event.Sequence)
	if err != nil {
		return fmt.Errorf("append event %s: %w", event.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]model.Event, error) {
	query := `SELECT sequence, id, type, principal, amount::TEXT, shares::TEXT, timestamp
	          FROM events WHERE sequence > $1 ORDER BY sequence`
	args := []any{afterSeq}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var principal, amountS, sharesS string
		if err := rows.Scan(&e.Sequence, &e.ID, &e.Type, &principal,
			&amountS, &sharesS, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Principal = model.Principal(principal)
		e.Amount, _ = decimal.NewFromString(amountS)
		e.Shares, _ = decimal.NewFromString(sharesS)
		events = append(events, e)
	}
	return events, rows.Err()
}
