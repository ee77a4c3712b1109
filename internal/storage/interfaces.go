package storage

import (
	"context"

	"token-auction-house/internal/domain"
)

// AuctionStore provides access to auction_records storage. Records are
// upserted whole; the auction table serializes access per token, so a
// backend only needs single-statement atomicity.
type AuctionStore interface {
	// Get retrieves the record for a token. Returns ErrNotFound if the
	// token has never been listed.
	Get(ctx context.Context, tokenID uint64) (*domain.AuctionRecord, error)

	// Put creates or replaces the record for rec.TokenID.
	Put(ctx context.Context, rec *domain.AuctionRecord) error

	// ListByStatus retrieves all records in the given status, ordered by
	// token ID ASC.
	ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.AuctionRecord, error)
}

// BalanceStore provides access to ledger_balances storage. A missing
// account reads as zero; entries are created implicitly.
type BalanceStore interface {
	// Get returns the balance for an account (zero if absent).
	Get(ctx context.Context, account domain.Identity) (domain.Amount, error)

	// Set stores the balance for an account.
	Set(ctx context.Context, account domain.Identity, balance domain.Amount) error

	// All returns every non-zero balance, keyed by account.
	All(ctx context.Context) (map[domain.Identity]domain.Amount, error)
}

// EventStore archives observations for external indexing. Append-only.
type EventStore interface {
	// Append records an emitted event.
	Append(ctx context.Context, e *domain.Event) error

	// ByToken retrieves all archived events for a token, ordered by
	// emission time ASC.
	ByToken(ctx context.Context, tokenID uint64) ([]*domain.Event, error)
}
