package auction

import (
	"context"

	"token-auction-house/internal/domain"
)

// TokenRegistry is the external collaborator that owns the token-to-
// holder mapping. The auction table depends on nothing beyond these
// three operations.
type TokenRegistry interface {
	// OwnerOf returns the current holder of a token. Returns an error
	// wrapping storage.ErrNotFound for unknown tokens.
	OwnerOf(ctx context.Context, tokenID uint64) (domain.Identity, error)

	// IsAuthorized reports whether the caller may act on the token
	// (holder or approved delegate).
	IsAuthorized(ctx context.Context, caller domain.Identity, tokenID uint64) (bool, error)

	// Transfer moves the token from one holder to another. The registry
	// may consult the destination's receive capability; a refusal fails
	// the transfer.
	Transfer(ctx context.Context, from, to domain.Identity, tokenID uint64) error
}
