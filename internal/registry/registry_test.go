package registry

import (
	"context"
	"errors"
	"testing"

	"token-auction-house/internal/domain"
	"token-auction-house/internal/storage"
)

func TestRegistry_MintSequentialIDs(t *testing.T) {
	reg := New(nil)
	ctx := context.Background()

	first, err := reg.Mint(ctx, "OwnerA")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	second, err := reg.Mint(ctx, "OwnerB")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if first != 1 || second != 2 {
		t.Errorf("IDs not sequential: %d, %d", first, second)
	}

	owner, err := reg.OwnerOf(ctx, first)
	if err != nil {
		t.Fatalf("OwnerOf failed: %v", err)
	}
	if owner != "OwnerA" {
		t.Errorf("owner mismatch: %s", owner)
	}
}

func TestRegistry_OwnerOfUnknownToken(t *testing.T) {
	reg := New(nil)

	_, err := reg.OwnerOf(context.Background(), 42)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_IsAuthorized(t *testing.T) {
	reg := New(nil)
	ctx := context.Background()

	tokenID, _ := reg.Mint(ctx, "Owner")

	ok, err := reg.IsAuthorized(ctx, "Owner", tokenID)
	if err != nil || !ok {
		t.Errorf("owner should be authorized: ok=%v err=%v", ok, err)
	}
	ok, err = reg.IsAuthorized(ctx, "Stranger", tokenID)
	if err != nil || ok {
		t.Errorf("stranger should not be authorized: ok=%v err=%v", ok, err)
	}

	if err := reg.Approve(ctx, "Owner", "Delegate", tokenID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	ok, _ = reg.IsAuthorized(ctx, "Delegate", tokenID)
	if !ok {
		t.Error("approved delegate should be authorized")
	}

	// Clearing the approval revokes the delegate.
	if err := reg.Approve(ctx, "Owner", "", tokenID); err != nil {
		t.Fatalf("clear approval failed: %v", err)
	}
	ok, _ = reg.IsAuthorized(ctx, "Delegate", tokenID)
	if ok {
		t.Error("cleared delegate still authorized")
	}
}

func TestRegistry_ApproveByNonOwner(t *testing.T) {
	reg := New(nil)
	ctx := context.Background()
	tokenID, _ := reg.Mint(ctx, "Owner")

	err := reg.Approve(ctx, "Stranger", "Delegate", tokenID)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRegistry_Transfer(t *testing.T) {
	reg := New(nil)
	ctx := context.Background()
	tokenID, _ := reg.Mint(ctx, "OwnerA")

	if err := reg.Approve(ctx, "OwnerA", "Delegate", tokenID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if err := reg.Transfer(ctx, "OwnerA", "OwnerB", tokenID); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	owner, _ := reg.OwnerOf(ctx, tokenID)
	if owner != "OwnerB" {
		t.Errorf("owner mismatch after transfer: %s", owner)
	}

	// Transfer cleared the previous epoch's approval.
	ok, _ := reg.IsAuthorized(ctx, "Delegate", tokenID)
	if ok {
		t.Error("stale approval survived transfer")
	}
}

func TestRegistry_TransferByNonHolder(t *testing.T) {
	reg := New(nil)
	ctx := context.Background()
	tokenID, _ := reg.Mint(ctx, "OwnerA")

	err := reg.Transfer(ctx, "OwnerB", "OwnerC", tokenID)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	owner, _ := reg.OwnerOf(ctx, tokenID)
	if owner != "OwnerA" {
		t.Errorf("token moved on failed transfer: %s", owner)
	}
}

func TestRegistry_ReceiverRefusal(t *testing.T) {
	reg := New(nil)
	ctx := context.Background()
	tokenID, _ := reg.Mint(ctx, "OwnerA")

	reg.RegisterReceiver("Vault", ReceiverFunc(
		func(context.Context, domain.Identity, uint64) error {
			return errors.New("deposits disabled")
		},
	))

	err := reg.Transfer(ctx, "OwnerA", "Vault", tokenID)
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	owner, _ := reg.OwnerOf(ctx, tokenID)
	if owner != "OwnerA" {
		t.Errorf("token moved despite refusal: %s", owner)
	}

	// A destination without a receiver hook accepts unconditionally.
	reg.RegisterReceiver("Vault", nil)
	if err := reg.Transfer(ctx, "OwnerA", "Vault", tokenID); err != nil {
		t.Fatalf("Transfer after clearing hook failed: %v", err)
	}
}

func TestRegistry_ReceiverAcceptance(t *testing.T) {
	reg := New(nil)
	ctx := context.Background()
	tokenID, _ := reg.Mint(ctx, "OwnerA")

	var sawFrom domain.Identity
	var sawToken uint64
	reg.RegisterReceiver("Vault", ReceiverFunc(
		func(_ context.Context, from domain.Identity, id uint64) error {
			sawFrom, sawToken = from, id
			return nil
		},
	))

	if err := reg.Transfer(ctx, "OwnerA", "Vault", tokenID); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if sawFrom != "OwnerA" || sawToken != tokenID {
		t.Errorf("receiver saw wrong delivery: from=%s token=%d", sawFrom, sawToken)
	}
}
