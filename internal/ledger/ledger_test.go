package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"token-auction-house/internal/domain"
	"token-auction-house/internal/storage/memory"
)

// acceptAll is a releaser that accepts every outward transfer.
var acceptAll = ReleaserFunc(func(context.Context, domain.Identity, domain.Amount) error {
	return nil
})

func TestLedger_CreditAndBalanceOf(t *testing.T) {
	ldg := New(memory.NewBalanceStore(), acceptAll, nil)
	ctx := context.Background()

	if err := ldg.Credit(ctx, "AccountA", 150); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := ldg.Credit(ctx, "AccountA", 50); err != nil {
		t.Fatalf("second Credit failed: %v", err)
	}

	balance, err := ldg.BalanceOf(ctx, "AccountA")
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if balance != 200 {
		t.Errorf("balance mismatch: got %d, want 200", balance)
	}
}

func TestLedger_CreditOverflowFailsClosed(t *testing.T) {
	ldg := New(memory.NewBalanceStore(), acceptAll, nil)
	ctx := context.Background()

	if err := ldg.Credit(ctx, "AccountA", domain.MaxAmount); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	err := ldg.Credit(ctx, "AccountA", 1)
	if !errors.Is(err, domain.ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}

	// Balance untouched by the failed credit.
	balance, _ := ldg.BalanceOf(ctx, "AccountA")
	if balance != domain.MaxAmount {
		t.Errorf("balance changed by failed credit: %d", balance)
	}
}

func TestLedger_Withdraw(t *testing.T) {
	var released domain.Amount
	releaser := ReleaserFunc(func(_ context.Context, _ domain.Identity, amount domain.Amount) error {
		released = amount
		return nil
	})
	ldg := New(memory.NewBalanceStore(), releaser, nil)
	ctx := context.Background()

	if err := ldg.Credit(ctx, "AccountA", 150); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	amount, err := ldg.Withdraw(ctx, "AccountA")
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if amount != 150 || released != 150 {
		t.Errorf("withdrew %d, released %d, want 150", amount, released)
	}

	balance, _ := ldg.BalanceOf(ctx, "AccountA")
	if balance != 0 {
		t.Errorf("balance not zeroed after withdrawal: %d", balance)
	}
	if ldg.TotalWithdrawn() != 150 {
		t.Errorf("TotalWithdrawn mismatch: %d", ldg.TotalWithdrawn())
	}
}

func TestLedger_WithdrawNothing(t *testing.T) {
	ldg := New(memory.NewBalanceStore(), acceptAll, nil)

	_, err := ldg.Withdraw(context.Background(), "AccountA")
	if !errors.Is(err, domain.ErrNothingToWithdraw) {
		t.Fatalf("expected ErrNothingToWithdraw, got %v", err)
	}
}

func TestLedger_WithdrawRefusedRestoresBalance(t *testing.T) {
	refuse := ReleaserFunc(func(context.Context, domain.Identity, domain.Amount) error {
		return fmt.Errorf("account refuses funds")
	})
	ldg := New(memory.NewBalanceStore(), refuse, nil)
	ctx := context.Background()

	if err := ldg.Credit(ctx, "AccountA", 150); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	_, err := ldg.Withdraw(ctx, "AccountA")
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}

	// The credited balance is never silently lost.
	balance, _ := ldg.BalanceOf(ctx, "AccountA")
	if balance != 150 {
		t.Errorf("balance not restored after refused release: %d", balance)
	}
	if ldg.TotalWithdrawn() != 0 {
		t.Errorf("refused withdrawal counted as withdrawn: %d", ldg.TotalWithdrawn())
	}
}

func TestLedger_ReentrantWithdrawSeesZero(t *testing.T) {
	store := memory.NewBalanceStore()
	var ldg *Ledger
	var reentrantErr error

	// A releaser that re-enters Withdraw before the first call returns.
	releaser := ReleaserFunc(func(ctx context.Context, account domain.Identity, _ domain.Amount) error {
		_, reentrantErr = ldg.Withdraw(ctx, account)
		return nil
	})
	ldg = New(store, releaser, nil)
	ctx := context.Background()

	if err := ldg.Credit(ctx, "AccountA", 150); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	amount, err := ldg.Withdraw(ctx, "AccountA")
	if err != nil {
		t.Fatalf("outer Withdraw failed: %v", err)
	}
	if amount != 150 {
		t.Errorf("outer Withdraw amount mismatch: %d", amount)
	}

	// The re-entrant call must have observed a zero balance.
	if !errors.Is(reentrantErr, domain.ErrNothingToWithdraw) {
		t.Fatalf("re-entrant Withdraw: expected ErrNothingToWithdraw, got %v", reentrantErr)
	}
	if ldg.TotalWithdrawn() != 150 {
		t.Errorf("TotalWithdrawn mismatch: %d", ldg.TotalWithdrawn())
	}
}

func TestLedger_CreditDuringReleaseNotLostOnRestore(t *testing.T) {
	store := memory.NewBalanceStore()
	var ldg *Ledger

	// Refuse the release, but land a fresh credit first.
	releaser := ReleaserFunc(func(ctx context.Context, account domain.Identity, _ domain.Amount) error {
		if err := ldg.Credit(ctx, account, 40); err != nil {
			t.Fatalf("in-flight Credit failed: %v", err)
		}
		return fmt.Errorf("refused")
	})
	ldg = New(store, releaser, nil)
	ctx := context.Background()

	if err := ldg.Credit(ctx, "AccountA", 100); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	_, err := ldg.Withdraw(ctx, "AccountA")
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}

	// Restoration adds onto the in-flight credit instead of clobbering it.
	balance, _ := ldg.BalanceOf(ctx, "AccountA")
	if balance != 140 {
		t.Errorf("balance mismatch after restore: got %d, want 140", balance)
	}
}

func TestLedger_Debit(t *testing.T) {
	ldg := New(memory.NewBalanceStore(), acceptAll, nil)
	ctx := context.Background()

	if err := ldg.Credit(ctx, "AccountA", 150); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := ldg.Debit(ctx, "AccountA", 100); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	balance, _ := ldg.BalanceOf(ctx, "AccountA")
	if balance != 50 {
		t.Errorf("balance mismatch: got %d, want 50", balance)
	}

	// Debiting more than the balance is rejected.
	if err := ldg.Debit(ctx, "AccountA", 60); err == nil {
		t.Fatal("expected error for over-debit")
	}
}

func TestLedger_ConcurrentCreditsAreSerialized(t *testing.T) {
	ldg := New(memory.NewBalanceStore(), acceptAll, nil)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				if err := ldg.Credit(ctx, "AccountA", 1); err != nil {
					t.Errorf("Credit failed: %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	balance, _ := ldg.BalanceOf(ctx, "AccountA")
	if balance != 1000 {
		t.Errorf("lost update: got %d, want 1000", balance)
	}
}

func TestLedger_TotalWithdrawnSaturates(t *testing.T) {
	ldg := New(memory.NewBalanceStore(), acceptAll, nil)
	ctx := context.Background()

	for _, account := range []domain.Identity{"AccountA", "AccountB"} {
		if err := ldg.Credit(ctx, account, domain.MaxAmount); err != nil {
			t.Fatalf("Credit failed: %v", err)
		}
		if _, err := ldg.Withdraw(ctx, account); err != nil {
			t.Fatalf("Withdraw failed: %v", err)
		}
	}

	// Two maximal withdrawals exceed the counter range; it must pin at
	// the maximum instead of wrapping.
	if got := ldg.TotalWithdrawn(); got != domain.MaxAmount {
		t.Errorf("TotalWithdrawn wrapped: got %d, want %d", got, domain.MaxAmount)
	}
}
