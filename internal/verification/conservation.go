// Package verification audits the conservation law: the sum of all
// ledger balances plus the value escrowed by live bids must equal the
// total value ever escrowed in minus the total value ever withdrawn.
//
// The escrowed-in and withdrawn counters are process-local. Against a
// durable backend that outlived a restart they read zero while the
// stores do not, so an audit is meaningful only for activity within
// the current process lifetime.
package verification

import (
	"context"
	"fmt"

	"token-auction-house/internal/domain"
	"token-auction-house/internal/storage"
)

// Report is the outcome of one conservation audit.
type Report struct {
	LedgerTotal   domain.Amount // sum of all withdrawable balances
	EscrowedLive  domain.Amount // sum of current bids on open auctions
	EscrowedIn    domain.Amount // cumulative accepted bid value
	Withdrawn     domain.Amount // cumulative released value
	Balanced      bool
	OpenAuctions  int
	LiveAccounts  int
}

// Check recomputes both sides of the conservation law from the stores
// and the core's audit counters. escrowedIn and withdrawn come from
// Table.TotalEscrowedIn and Ledger.TotalWithdrawn.
func Check(
	ctx context.Context,
	auctions storage.AuctionStore,
	balances storage.BalanceStore,
	escrowedIn, withdrawn domain.Amount,
) (*Report, error) {
	all, err := balances.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read balances: %w", err)
	}

	var ledgerTotal domain.Amount
	for account, balance := range all {
		ledgerTotal, err = domain.CheckedAdd(ledgerTotal, balance)
		if err != nil {
			return nil, fmt.Errorf("sum balance of %s: %w", account, err)
		}
	}

	open, err := auctions.ListByStatus(ctx, domain.StatusOnAuction)
	if err != nil {
		return nil, fmt.Errorf("list open auctions: %w", err)
	}

	var escrowedLive domain.Amount
	for _, rec := range open {
		escrowedLive, err = domain.CheckedAdd(escrowedLive, rec.CurrentBid)
		if err != nil {
			return nil, fmt.Errorf("sum escrow of token %d: %w", rec.TokenID, err)
		}
	}

	tracked, err := domain.CheckedAdd(ledgerTotal, escrowedLive)
	if err != nil {
		return nil, fmt.Errorf("sum tracked value: %w", err)
	}
	if withdrawn > escrowedIn {
		return nil, fmt.Errorf("withdrawn %d exceeds escrowed-in %d", withdrawn, escrowedIn)
	}

	return &Report{
		LedgerTotal:  ledgerTotal,
		EscrowedLive: escrowedLive,
		EscrowedIn:   escrowedIn,
		Withdrawn:    withdrawn,
		Balanced:     tracked == escrowedIn-withdrawn,
		OpenAuctions: len(open),
		LiveAccounts: len(all),
	}, nil
}
