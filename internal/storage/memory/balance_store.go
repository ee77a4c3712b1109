package memory

import (
	"context"
	"sync"

	"token-auction-house/internal/domain"
	"token-auction-house/internal/storage"
)

// BalanceStore is an in-memory implementation of storage.BalanceStore.
type BalanceStore struct {
	mu   sync.RWMutex
	data map[domain.Identity]domain.Amount
}

// NewBalanceStore creates a new in-memory balance store.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{
		data: make(map[domain.Identity]domain.Amount),
	}
}

// Get returns the balance for an account. A missing account reads as zero.
func (s *BalanceStore) Get(_ context.Context, account domain.Identity) (domain.Amount, error) {
	if account.Unset() {
		return 0, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data[account], nil
}

// Set stores the balance for an account. Zero balances are dropped so
// All only reports live entries.
func (s *BalanceStore) Set(_ context.Context, account domain.Identity, balance domain.Amount) error {
	if account.Unset() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if balance == 0 {
		delete(s.data, account)
		return nil
	}
	s.data[account] = balance
	return nil
}

// All returns every non-zero balance, keyed by account.
func (s *BalanceStore) All(_ context.Context) (map[domain.Identity]domain.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[domain.Identity]domain.Amount, len(s.data))
	for account, balance := range s.data {
		result[account] = balance
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.BalanceStore = (*BalanceStore)(nil)
