package postgres

import (
	"context"
	"fmt"

	"token-auction-house/internal/domain"
	"token-auction-house/internal/storage"
)

// BalanceStore implements storage.BalanceStore using PostgreSQL.
type BalanceStore struct {
	pool *Pool
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(pool *Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// Get returns the balance for an account. A missing account reads as zero.
func (s *BalanceStore) Get(ctx context.Context, account domain.Identity) (domain.Amount, error) {
	if account.Unset() {
		return 0, storage.ErrInvalidInput
	}

	query := `
		SELECT balance::text
		FROM ledger_balances
		WHERE account = $1
	`

	var balance string
	err := s.pool.QueryRow(ctx, query, string(account)).Scan(&balance)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return decodeAmount(balance)
}

// Set stores the balance for an account. Zero balances are dropped so
// All only reports live entries.
func (s *BalanceStore) Set(ctx context.Context, account domain.Identity, balance domain.Amount) error {
	if account.Unset() {
		return storage.ErrInvalidInput
	}

	if balance == 0 {
		_, err := s.pool.Exec(ctx, `DELETE FROM ledger_balances WHERE account = $1`, string(account))
		if err != nil {
			return fmt.Errorf("delete zero balance: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO ledger_balances (account, balance)
		VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET balance = EXCLUDED.balance
	`

	_, err := s.pool.Exec(ctx, query, string(account), encodeAmount(balance))
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

// All returns every non-zero balance, keyed by account.
func (s *BalanceStore) All(ctx context.Context) (map[domain.Identity]domain.Amount, error) {
	rows, err := s.pool.Query(ctx, `SELECT account, balance::text FROM ledger_balances`)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	result := make(map[domain.Identity]domain.Amount)
	for rows.Next() {
		var account, balance string
		if err := rows.Scan(&account, &balance); err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}
		amount, err := decodeAmount(balance)
		if err != nil {
			return nil, err
		}
		result[domain.Identity(account)] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance rows: %w", err)
	}

	return result, nil
}
