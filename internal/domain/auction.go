package domain

// Identity is a participant address (base58-encoded ed25519 public key).
// The empty string means "unset".
type Identity string

// Unset reports whether the identity is absent.
func (id Identity) Unset() bool { return id == "" }

// AuctionStatus is the lifecycle state of an auction record.
type AuctionStatus string

const (
	// StatusUnlisted means no auction has ever been opened for the token.
	StatusUnlisted AuctionStatus = "UNLISTED"

	// StatusOnAuction means the token is listed and accepting bids until
	// its end time passes.
	StatusOnAuction AuctionStatus = "ON_AUCTION"

	// StatusSettled means the sale completed: ownership moved to the
	// winning bidder and proceeds were credited to the seller. A settled
	// record may be replaced by a fresh listing.
	StatusSettled AuctionStatus = "SETTLED"
)

// AuctionRecord is the per-token auction state, keyed by token ID.
// Corresponds to the auction_records table.
type AuctionRecord struct {
	TokenID    uint64
	Seller     Identity      // the lister; immutable while on auction
	MinPrice   Amount        // minimum opening bid; immutable while on auction
	EndTime    uint64        // clock units; immutable while on auction
	CurrentBid Amount        // highest accepted bid, 0 = no bid yet
	Bidder     Identity      // current highest bidder, unset until first bid
	Status     AuctionStatus
	ListedAt   uint64        // clock reading at listing time
}

// HasBid reports whether at least one bid has been accepted. The record
// invariant is CurrentBid > 0 iff Bidder is set.
func (r *AuctionRecord) HasBid() bool {
	return r.CurrentBid > 0
}

// Expired reports whether the listing window has closed at the given
// clock reading. Bids are accepted strictly before EndTime; settlement
// strictly after.
func (r *AuctionRecord) Expired(now uint64) bool {
	return now >= r.EndTime
}
