// Package registry implements the token-identity collaborator: the
// mapping from token ID to current holder, a single authorization
// predicate, and ownership transfer with an optional receiver
// capability check. State is process-local; the auction ledger's
// durable surface does not include registry state.
package registry

import (
	"context"
	"fmt"
	"sync"

	"token-auction-house/internal/auction"
	"token-auction-house/internal/domain"
	"token-auction-house/internal/observability"
	"token-auction-house/internal/storage"
)

// TokenReceiver is the capability a programmable destination implements
// to vet incoming tokens. It is queried synchronously before a transfer
// finalizes; a destination with no registered receiver accepts
// unconditionally.
type TokenReceiver interface {
	AcceptToken(ctx context.Context, from domain.Identity, tokenID uint64) error
}

// ReceiverFunc adapts a function to the TokenReceiver interface.
type ReceiverFunc func(ctx context.Context, from domain.Identity, tokenID uint64) error

// AcceptToken implements TokenReceiver.
func (f ReceiverFunc) AcceptToken(ctx context.Context, from domain.Identity, tokenID uint64) error {
	return f(ctx, from, tokenID)
}

// Registry is an in-memory token registry.
type Registry struct {
	mu        sync.RWMutex
	owners    map[uint64]domain.Identity     // token_id → holder
	approved  map[uint64]domain.Identity     // token_id → approved delegate
	receivers map[domain.Identity]TokenReceiver
	nextID    uint64 // explicit issuance counter, first token is 1

	metrics *observability.Metrics // may be nil
}

// New creates an empty registry. metrics may be nil.
func New(metrics *observability.Metrics) *Registry {
	return &Registry{
		owners:    make(map[uint64]domain.Identity),
		approved:  make(map[uint64]domain.Identity),
		receivers: make(map[domain.Identity]TokenReceiver),
		metrics:   metrics,
	}
}

// Mint issues the next sequential token ID to the given owner and
// returns it.
func (r *Registry) Mint(_ context.Context, owner domain.Identity) (uint64, error) {
	if owner.Unset() {
		return 0, fmt.Errorf("mint: %w", storage.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	tokenID := r.nextID
	r.owners[tokenID] = owner

	if r.metrics != nil {
		r.metrics.TokensMinted.Inc()
	}
	return tokenID, nil
}

// OwnerOf returns the current holder of a token.
func (r *Registry) OwnerOf(_ context.Context, tokenID uint64) (domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, exists := r.owners[tokenID]
	if !exists {
		return "", fmt.Errorf("token %d: %w", tokenID, storage.ErrNotFound)
	}
	return owner, nil
}

// Approve grants a single delegate the right to act on a token. Only
// the current holder may approve; passing an unset delegate clears the
// approval.
func (r *Registry) Approve(_ context.Context, caller, delegate domain.Identity, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, exists := r.owners[tokenID]
	if !exists {
		return fmt.Errorf("token %d: %w", tokenID, storage.ErrNotFound)
	}
	if caller != owner {
		return fmt.Errorf("approve on token %d by %s: %w", tokenID, caller, domain.ErrUnauthorized)
	}

	if delegate.Unset() {
		delete(r.approved, tokenID)
		return nil
	}
	r.approved[tokenID] = delegate
	return nil
}

// IsAuthorized reports whether the caller may act on the token: it is
// either the holder or the approved delegate.
func (r *Registry) IsAuthorized(_ context.Context, caller domain.Identity, tokenID uint64) (bool, error) {
	if caller.Unset() {
		return false, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, exists := r.owners[tokenID]
	if !exists {
		return false, fmt.Errorf("token %d: %w", tokenID, storage.ErrNotFound)
	}
	return caller == owner || caller == r.approved[tokenID], nil
}

// RegisterReceiver installs a receive-capability hook for an account.
// Passing nil removes the hook.
func (r *Registry) RegisterReceiver(account domain.Identity, receiver TokenReceiver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if receiver == nil {
		delete(r.receivers, account)
		return
	}
	r.receivers[account] = receiver
}

// Transfer moves a token to a new holder. The from identity must be the
// current holder. If the destination registered a receiver hook it is
// consulted first; a refusal fails the transfer with nothing changed.
// Any approval on the token is cleared by a successful transfer.
func (r *Registry) Transfer(ctx context.Context, from, to domain.Identity, tokenID uint64) error {
	if to.Unset() {
		return fmt.Errorf("transfer to unset identity: %w", storage.ErrInvalidInput)
	}

	r.mu.Lock()
	owner, exists := r.owners[tokenID]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("token %d: %w", tokenID, storage.ErrNotFound)
	}
	if from != owner {
		r.mu.Unlock()
		return fmt.Errorf("transfer token %d from %s (holder %s): %w", tokenID, from, owner, domain.ErrUnauthorized)
	}
	receiver := r.receivers[to]
	r.mu.Unlock()

	// Capability check outside the lock: the hook is destination code.
	if receiver != nil {
		if err := receiver.AcceptToken(ctx, from, tokenID); err != nil {
			return fmt.Errorf("receiver %s refused token %d: %v: %w", to, tokenID, err, domain.ErrTransferFailed)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check the holder: the capability hook ran unlocked.
	if r.owners[tokenID] != from {
		return fmt.Errorf("token %d changed hands during transfer: %w", tokenID, domain.ErrInvalidState)
	}
	r.owners[tokenID] = to
	delete(r.approved, tokenID)

	if r.metrics != nil {
		r.metrics.TokensTransferred.Inc()
	}
	return nil
}

// Verify interface compliance at compile time.
var _ auction.TokenRegistry = (*Registry)(nil)
