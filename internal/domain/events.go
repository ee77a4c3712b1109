package domain

// EventType identifies an observation emitted by the auction core.
type EventType string

const (
	EventListed    EventType = "LISTED"
	EventBidPlaced EventType = "BID_PLACED"
	EventSaleEnded EventType = "SALE_ENDED"
)

// Event is an observation emitted for external indexing. Events are not
// required for correctness; consumers may drop or replay them freely.
// Corresponds to the auction_events archive table.
type Event struct {
	EventID   string    // deterministic hash, see idhash
	Type      EventType
	TokenID   uint64
	Actor     Identity // seller for LISTED, bidder otherwise
	Amount    Amount   // min price for LISTED, bid amount otherwise
	EndTime   uint64   // listing end time, 0 for non-LISTED events
	EmittedAt uint64   // clock reading when the event was emitted
}
