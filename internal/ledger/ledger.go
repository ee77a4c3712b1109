// Package ledger tracks per-account withdrawable balances. It is the
// sole path by which value leaves the system: bids escrow value against
// the auction record, and only outbid refunds and sale proceeds land
// here, to be pulled via Withdraw.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"token-auction-house/internal/domain"
	"token-auction-house/internal/observability"
	"token-auction-house/internal/storage"
)

// FundsReleaser performs the outward transfer of withdrawn value to an
// account's environment. A releaser may execute account-controlled
// logic; the ledger assumes it can re-enter Withdraw.
type FundsReleaser interface {
	Release(ctx context.Context, account domain.Identity, amount domain.Amount) error
}

// ReleaserFunc adapts a function to the FundsReleaser interface.
type ReleaserFunc func(ctx context.Context, account domain.Identity, amount domain.Amount) error

// Release implements FundsReleaser.
func (f ReleaserFunc) Release(ctx context.Context, account domain.Identity, amount domain.Amount) error {
	return f(ctx, account, amount)
}

// Ledger owns the fund-safety invariants around balance accumulation
// and withdrawal. All balance mutations go through checked addition and
// are serialized per account.
type Ledger struct {
	store    storage.BalanceStore
	releaser FundsReleaser
	metrics  *observability.Metrics // may be nil

	locksMu sync.Mutex
	locks   map[domain.Identity]*sync.Mutex

	totalWithdrawn atomic.Uint64
}

// New creates a ledger over the given balance store. releaser performs
// the outward leg of Withdraw; metrics may be nil.
func New(store storage.BalanceStore, releaser FundsReleaser, metrics *observability.Metrics) *Ledger {
	return &Ledger{
		store:    store,
		releaser: releaser,
		metrics:  metrics,
		locks:    make(map[domain.Identity]*sync.Mutex),
	}
}

// Credit adds amount to an account's withdrawable balance using checked
// addition; on overflow the balance is untouched and the error
// propagates to the caller. Credit is called only by the auction table
// (outbid refunds, settlement proceeds) and by its compensation paths;
// it must never be reachable from a transport surface.
func (l *Ledger) Credit(ctx context.Context, account domain.Identity, amount domain.Amount) error {
	if account.Unset() {
		return fmt.Errorf("credit: %w", storage.ErrInvalidInput)
	}
	if amount == 0 {
		return nil
	}

	unlock := l.lockAccount(account)
	defer unlock()

	balance, err := l.store.Get(ctx, account)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	updated, err := domain.CheckedAdd(balance, amount)
	if err != nil {
		return fmt.Errorf("credit %d to %s: %w", amount, account, err)
	}

	if err := l.store.Set(ctx, account, updated); err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

// Debit removes amount from an account's balance. It exists solely so
// the auction table can compensate a credit after a failed external
// transfer; there is no user-facing debit operation.
func (l *Ledger) Debit(ctx context.Context, account domain.Identity, amount domain.Amount) error {
	if account.Unset() {
		return fmt.Errorf("debit: %w", storage.ErrInvalidInput)
	}
	if amount == 0 {
		return nil
	}

	unlock := l.lockAccount(account)
	defer unlock()

	balance, err := l.store.Get(ctx, account)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if balance < amount {
		return fmt.Errorf("debit %d from %s with balance %d: %w", amount, account, balance, storage.ErrInvalidInput)
	}

	if err := l.store.Set(ctx, account, balance-amount); err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

// Withdraw releases the caller's entire balance. The balance is zeroed
// before the outward transfer, so a releaser that re-enters Withdraw
// observes zero and fails the balance>0 precondition. If the outward
// transfer is refused, the balance is restored by a compensating credit
// and ErrTransferFailed propagates; the caller's funds are never
// silently lost.
func (l *Ledger) Withdraw(ctx context.Context, caller domain.Identity) (domain.Amount, error) {
	if caller.Unset() {
		return 0, fmt.Errorf("withdraw: %w", storage.ErrInvalidInput)
	}

	unlock := l.lockAccount(caller)
	balance, err := l.store.Get(ctx, caller)
	if err != nil {
		unlock()
		return 0, fmt.Errorf("read balance: %w", err)
	}
	if balance == 0 {
		unlock()
		return 0, domain.ErrNothingToWithdraw
	}
	if err := l.store.Set(ctx, caller, 0); err != nil {
		unlock()
		return 0, fmt.Errorf("zero balance: %w", err)
	}
	// Release without the account lock held: the releaser may run
	// arbitrary account logic, including a re-entrant Withdraw.
	unlock()

	if err := l.releaser.Release(ctx, caller, balance); err != nil {
		// Restore via checked addition onto whatever the balance is now;
		// credits may have landed while the release was in flight.
		if restoreErr := l.Credit(ctx, caller, balance); restoreErr != nil {
			return 0, fmt.Errorf("release refused and restore failed (%v): %w", restoreErr, domain.ErrTransferFailed)
		}
		if l.metrics != nil {
			l.metrics.WithdrawalsFailed.Inc()
		}
		return 0, fmt.Errorf("release %d to %s: %v: %w", balance, caller, err, domain.ErrTransferFailed)
	}

	addSaturating(&l.totalWithdrawn, uint64(balance))
	if l.metrics != nil {
		l.metrics.WithdrawalsCompleted.Inc()
		l.metrics.ValueWithdrawn.Add(float64(balance))
	}
	return balance, nil
}

// BalanceOf returns an account's withdrawable balance.
func (l *Ledger) BalanceOf(ctx context.Context, account domain.Identity) (domain.Amount, error) {
	if account.Unset() {
		return 0, fmt.Errorf("balance of: %w", storage.ErrInvalidInput)
	}
	return l.store.Get(ctx, account)
}

// TotalWithdrawn returns the cumulative value released through
// successful withdrawals. Used by the conservation audit. The counter
// is process-local: with a durable store it restarts at zero, so audits
// only hold within one process lifetime. It saturates rather than wraps.
func (l *Ledger) TotalWithdrawn() domain.Amount {
	return domain.Amount(l.totalWithdrawn.Load())
}

// addSaturating accumulates an audit counter, pinning at the maximum
// instead of wrapping.
func addSaturating(c *atomic.Uint64, delta uint64) {
	for {
		old := c.Load()
		next := old + delta
		if next < old {
			next = math.MaxUint64
		}
		if c.CompareAndSwap(old, next) {
			return
		}
	}
}

// lockAccount acquires the per-account mutex, creating it on first use.
func (l *Ledger) lockAccount(account domain.Identity) func() {
	l.locksMu.Lock()
	mu, ok := l.locks[account]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[account] = mu
	}
	l.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
