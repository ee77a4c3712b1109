// Package auction implements the per-token auction state machine:
// listing, competitive bidding with escrowed top bids, and settlement.
// State transitions follow Unlisted → OnAuction → Settled, with Settled
// permitting a fresh listing.
package auction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"token-auction-house/internal/domain"
	"token-auction-house/internal/idhash"
	"token-auction-house/internal/ledger"
	"token-auction-house/internal/observability"
	"token-auction-house/internal/storage"
)

// EventSink receives observations as they are emitted. Sinks must not
// block; the table publishes synchronously inside operations.
type EventSink interface {
	Publish(e domain.Event)
}

// Table owns all auction records and their bid-acceptance and
// settlement rules. Operations on the same token are mutually
// exclusive; the record's read-modify-write is atomic per token.
type Table struct {
	store    storage.AuctionStore
	ledger   *ledger.Ledger
	registry TokenRegistry
	clock    Clock
	sink     EventSink              // may be nil
	metrics  *observability.Metrics // may be nil

	locksMu sync.Mutex
	locks   map[uint64]*sync.Mutex

	totalEscrowedIn atomic.Uint64
}

// NewTable creates an auction table. sink and metrics may be nil.
func NewTable(
	store storage.AuctionStore,
	ldg *ledger.Ledger,
	registry TokenRegistry,
	clock Clock,
	sink EventSink,
	metrics *observability.Metrics,
) *Table {
	return &Table{
		store:    store,
		ledger:   ldg,
		registry: registry,
		clock:    clock,
		sink:     sink,
		metrics:  metrics,
		locks:    make(map[uint64]*sync.Mutex),
	}
}

// List opens an auction for a token. The caller must be authorized on
// the token (holder or approved delegate), the token must not already
// be on auction, and the end time must lie strictly after the current
// clock reading. An expired listing that never attracted a bid may be
// overwritten by a fresh listing; an expired listing holding a live
// escrowed bid can only leave OnAuction through Settle.
func (t *Table) List(ctx context.Context, caller domain.Identity, tokenID uint64, minPrice domain.Amount, endTime uint64) error {
	if caller.Unset() {
		return fmt.Errorf("list: %w", domain.ErrUnauthorized)
	}

	unlock := t.lockToken(tokenID)
	defer unlock()

	authorized, err := t.registry.IsAuthorized(ctx, caller, tokenID)
	if err != nil {
		return fmt.Errorf("check authorization: %w", err)
	}
	if !authorized {
		return fmt.Errorf("list token %d by %s: %w", tokenID, caller, domain.ErrUnauthorized)
	}

	rec, err := t.store.Get(ctx, tokenID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("read auction record: %w", err)
	}

	now := t.clock.Now()
	if rec != nil && rec.Status == domain.StatusOnAuction {
		if rec.HasBid() || !rec.Expired(now) {
			return fmt.Errorf("token %d already on auction: %w", tokenID, domain.ErrInvalidState)
		}
		// Expired with no bid: the dead listing is replaced below.
	}
	if endTime <= now {
		return fmt.Errorf("end time %d not after clock %d: %w", endTime, now, domain.ErrInvalidState)
	}

	listing := &domain.AuctionRecord{
		TokenID:  tokenID,
		Seller:   caller,
		MinPrice: minPrice,
		EndTime:  endTime,
		Status:   domain.StatusOnAuction,
		ListedAt: now,
	}
	if err := t.store.Put(ctx, listing); err != nil {
		return fmt.Errorf("write auction record: %w", err)
	}

	if t.metrics != nil {
		t.metrics.AuctionsListed.Inc()
	}
	t.emit(domain.EventListed, tokenID, caller, minPrice, endTime, now)
	return nil
}

// PlaceBid accepts a bid if it strictly exceeds the floor (min price
// for the first bid, the current bid thereafter) and the caller is
// neither the token's holder, the seller, nor the current bidder. A
// superseded bidder is refunded through the ledger; the incoming amount
// is held in escrow by the record until settlement or a further outbid.
// A rejected bid mutates nothing, and any value tendered with it stays
// with the caller.
func (t *Table) PlaceBid(ctx context.Context, caller domain.Identity, tokenID uint64, amount domain.Amount) error {
	if caller.Unset() {
		return fmt.Errorf("bid: %w", domain.ErrUnauthorized)
	}

	unlock := t.lockToken(tokenID)
	defer unlock()

	rec, err := t.store.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return t.rejectBid(tokenID, "not_listed", domain.ErrInvalidState)
		}
		return fmt.Errorf("read auction record: %w", err)
	}
	if rec.Status != domain.StatusOnAuction {
		return t.rejectBid(tokenID, "not_listed", domain.ErrInvalidState)
	}

	now := t.clock.Now()
	if rec.Expired(now) {
		return t.rejectBid(tokenID, "expired", domain.ErrInvalidState)
	}

	owner, err := t.registry.OwnerOf(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("resolve token owner: %w", err)
	}
	if caller == owner || caller == rec.Seller || caller == rec.Bidder {
		return t.rejectBid(tokenID, "self_bid", domain.ErrSelfBidRejected)
	}

	floor := rec.CurrentBid
	if !rec.HasBid() {
		floor = rec.MinPrice
	}
	if amount <= floor {
		return t.rejectBid(tokenID, "below_floor", domain.ErrInsufficientBid)
	}

	// Effects. Refund the superseded bidder first (atomic per account,
	// nothing else has moved yet), then swap bidder and bid together.
	prevBidder, prevBid := rec.Bidder, rec.CurrentBid
	if prevBid > 0 {
		if err := t.ledger.Credit(ctx, prevBidder, prevBid); err != nil {
			return fmt.Errorf("refund outbid %s: %w", prevBidder, err)
		}
	}

	rec.Bidder = caller
	rec.CurrentBid = amount
	if err := t.store.Put(ctx, rec); err != nil {
		if prevBid > 0 {
			if debitErr := t.ledger.Debit(ctx, prevBidder, prevBid); debitErr != nil {
				return fmt.Errorf("write auction record (%v) and unwind refund failed: %w", err, debitErr)
			}
		}
		return fmt.Errorf("write auction record: %w", err)
	}

	addSaturating(&t.totalEscrowedIn, uint64(amount))
	if t.metrics != nil {
		t.metrics.BidsAccepted.Inc()
		if prevBid > 0 {
			t.metrics.BiddersOutbid.Inc()
		}
	}
	t.emit(domain.EventBidPlaced, tokenID, caller, amount, 0, now)
	return nil
}

// Settle closes an expired auction: proceeds are credited to the
// seller, ownership moves to the winning bidder, and the record enters
// Settled. Only the recorded bidder may settle, and only strictly after
// the end time. A second Settle fails on the status check, so neither
// the seller credit nor the ownership transfer can happen twice.
func (t *Table) Settle(ctx context.Context, caller domain.Identity, tokenID uint64) error {
	if caller.Unset() {
		return fmt.Errorf("settle: %w", domain.ErrUnauthorized)
	}

	unlock := t.lockToken(tokenID)
	defer unlock()

	rec, err := t.store.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("token %d not listed: %w", tokenID, domain.ErrInvalidState)
		}
		return fmt.Errorf("read auction record: %w", err)
	}
	if rec.Status != domain.StatusOnAuction {
		return fmt.Errorf("token %d not on auction: %w", tokenID, domain.ErrInvalidState)
	}

	now := t.clock.Now()
	if now <= rec.EndTime {
		return fmt.Errorf("auction for token %d still open until %d: %w", tokenID, rec.EndTime, domain.ErrInvalidState)
	}
	if !rec.HasBid() || caller != rec.Bidder {
		return fmt.Errorf("settle token %d by %s: %w", tokenID, caller, domain.ErrUnauthorized)
	}

	owner, err := t.registry.OwnerOf(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("resolve token owner: %w", err)
	}

	// Effects before interactions: close the record and credit the
	// seller first, perform the external ownership transfer last, and
	// unwind explicitly if the transfer is refused.
	settled := *rec
	settled.Status = domain.StatusSettled
	settled.CurrentBid = 0
	proceeds := rec.CurrentBid

	if err := t.store.Put(ctx, &settled); err != nil {
		return fmt.Errorf("write auction record: %w", err)
	}
	if err := t.ledger.Credit(ctx, rec.Seller, proceeds); err != nil {
		if putErr := t.store.Put(ctx, rec); putErr != nil {
			return fmt.Errorf("credit seller (%v) and record restore failed: %w", err, putErr)
		}
		return fmt.Errorf("credit seller %s: %w", rec.Seller, err)
	}
	if err := t.registry.Transfer(ctx, owner, rec.Bidder, tokenID); err != nil {
		if debitErr := t.ledger.Debit(ctx, rec.Seller, proceeds); debitErr != nil {
			return fmt.Errorf("token transfer (%v) and seller debit failed: %w", err, debitErr)
		}
		if putErr := t.store.Put(ctx, rec); putErr != nil {
			return fmt.Errorf("token transfer (%v) and record restore failed: %w", err, putErr)
		}
		return fmt.Errorf("transfer token %d to %s: %v: %w", tokenID, rec.Bidder, err, domain.ErrTransferFailed)
	}

	if t.metrics != nil {
		t.metrics.AuctionsSettled.Inc()
		t.metrics.ValueSettled.Add(float64(proceeds))
	}
	t.emit(domain.EventSaleEnded, tokenID, rec.Bidder, proceeds, 0, now)
	return nil
}

// StatusInfo is the externally visible view of a token's auction state.
type StatusInfo struct {
	TokenID    uint64
	OnSale     bool
	Seller     domain.Identity
	Bidder     domain.Identity // unset until first bid
	CurrentBid domain.Amount
	MinPrice   domain.Amount
	EndTime    uint64
	Status     domain.AuctionStatus
}

// Status reports a token's auction state. A token that was never listed
// reports StatusUnlisted rather than an error.
func (t *Table) Status(ctx context.Context, tokenID uint64) (*StatusInfo, error) {
	rec, err := t.store.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &StatusInfo{TokenID: tokenID, Status: domain.StatusUnlisted}, nil
		}
		return nil, fmt.Errorf("read auction record: %w", err)
	}

	return &StatusInfo{
		TokenID:    tokenID,
		OnSale:     rec.Status == domain.StatusOnAuction,
		Seller:     rec.Seller,
		Bidder:     rec.Bidder,
		CurrentBid: rec.CurrentBid,
		MinPrice:   rec.MinPrice,
		EndTime:    rec.EndTime,
		Status:     rec.Status,
	}, nil
}

// OpenAuctions returns all records currently on auction, ordered by token ID.
func (t *Table) OpenAuctions(ctx context.Context) ([]*domain.AuctionRecord, error) {
	return t.store.ListByStatus(ctx, domain.StatusOnAuction)
}

// TotalEscrowedIn returns the cumulative value of all accepted bids.
// Used by the conservation audit. The counter is process-local: with a
// durable store it restarts at zero, so audits only hold within one
// process lifetime. It saturates rather than wraps.
func (t *Table) TotalEscrowedIn() domain.Amount {
	return domain.Amount(t.totalEscrowedIn.Load())
}

// rejectBid counts a rejected bid and returns the taxonomy error.
func (t *Table) rejectBid(tokenID uint64, reason string, cause error) error {
	if t.metrics != nil {
		t.metrics.BidsRejected.WithLabelValues(reason).Inc()
	}
	return fmt.Errorf("bid on token %d: %w", tokenID, cause)
}

// emit publishes an observation with a deterministic event ID.
func (t *Table) emit(eventType domain.EventType, tokenID uint64, actor domain.Identity, amount domain.Amount, endTime, now uint64) {
	if t.sink == nil {
		return
	}
	t.sink.Publish(domain.Event{
		EventID:   idhash.ComputeEventID(eventType, tokenID, actor, amount, endTime, now),
		Type:      eventType,
		TokenID:   tokenID,
		Actor:     actor,
		Amount:    amount,
		EndTime:   endTime,
		EmittedAt: now,
	})
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

// lockToken acquires the per-token mutex, creating it on first use.
func (t *Table) lockToken(tokenID uint64) func() {
	t.locksMu.Lock()
	mu, ok := t.locks[tokenID]
	if !ok {
		mu = &sync.Mutex{}
		t.locks[tokenID] = mu
	}
	t.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
