package domain

import "errors"

// Operation errors. Every failed operation leaves state untouched; the
// caller sees exactly one of these (possibly wrapped with context).
var (
	// ErrUnauthorized is returned when the caller lacks rights on the
	// token or is not the party an operation requires.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrInvalidState is returned when an operation targets a record in
	// the wrong lifecycle state: not listed, already settled, already
	// expired, or not yet expired.
	ErrInvalidState = errors.New("invalid auction state")

	// ErrInsufficientBid is returned when a bid does not strictly exceed
	// the required floor (min price for the first bid, the current bid
	// thereafter).
	ErrInsufficientBid = errors.New("bid does not exceed required floor")

	// ErrSelfBidRejected is returned when the token owner, the seller, or
	// the current highest bidder attempts to bid.
	ErrSelfBidRejected = errors.New("self-bidding rejected")

	// ErrArithmeticOverflow is returned when a checked addition would
	// exceed the representable range. Balances never wrap.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrTransferFailed is returned when an outward transfer (token or
	// funds) is rejected by the receiving side.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrNothingToWithdraw is returned when a withdrawal is requested
	// against a zero balance.
	ErrNothingToWithdraw = errors.New("nothing to withdraw")
)
