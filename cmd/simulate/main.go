// Package main runs a scripted auction lifecycle over in-memory stores
// and verifies the conservation law at every step. Useful as a smoke
// check and as a worked example of the core API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"token-auction-house/internal/auction"
	"token-auction-house/internal/domain"
	"token-auction-house/internal/events"
	"token-auction-house/internal/identity"
	"token-auction-house/internal/ledger"
	"token-auction-house/internal/observability"
	"token-auction-house/internal/registry"
	"token-auction-house/internal/storage/memory"
	"token-auction-house/internal/verification"
)

func main() {
	outputJSON := flag.Bool("json", false, "Output the final report as JSON")
	flag.Parse()

	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	if err := run(context.Background(), logger, *outputJSON); err != nil {
		logger.Fatalf("Simulation failed: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, outputJSON bool) error {
	metrics := observability.NewMetrics("")
	hub := events.NewHub(metrics)
	defer hub.Close()

	auctionStore := memory.NewAuctionStore()
	balanceStore := memory.NewBalanceStore()
	eventStore := memory.NewEventStore()

	// Archive every observation so the run can be inspected afterwards.
	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()
	archived := make(chan struct{})
	go func() {
		defer close(archived)
		for e := range ch {
			if err := eventStore.Append(ctx, &e); err != nil {
				logger.Printf("Archive event: %v", err)
			}
		}
	}()

	reg := registry.New(metrics)
	releaser := ledger.ReleaserFunc(func(_ context.Context, account domain.Identity, amount domain.Amount) error {
		logger.Printf("Released %d to %s", amount, account)
		return nil
	})
	ldg := ledger.New(balanceStore, releaser, metrics)

	clock := auction.NewManualClock(1_000)
	table := auction.NewTable(auctionStore, ldg, reg, clock, hub, metrics)

	seller, err := identity.Generate()
	if err != nil {
		return fmt.Errorf("generate seller: %w", err)
	}
	alice, err := identity.Generate()
	if err != nil {
		return fmt.Errorf("generate first bidder: %w", err)
	}
	bob, err := identity.Generate()
	if err != nil {
		return fmt.Errorf("generate second bidder: %w", err)
	}

	audit := func(step string) error {
		report, err := verification.Check(ctx, auctionStore, balanceStore,
			table.TotalEscrowedIn(), ldg.TotalWithdrawn())
		if err != nil {
			return fmt.Errorf("audit after %s: %w", step, err)
		}
		if !report.Balanced {
			return fmt.Errorf("conservation violated after %s: ledger=%d live=%d in=%d out=%d",
				step, report.LedgerTotal, report.EscrowedLive, report.EscrowedIn, report.Withdrawn)
		}
		logger.Printf("%-16s ledger=%d live=%d in=%d out=%d", step,
			report.LedgerTotal, report.EscrowedLive, report.EscrowedIn, report.Withdrawn)
		return nil
	}

	tokenID, err := reg.Mint(ctx, seller)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	if err := audit("mint"); err != nil {
		return err
	}

	if err := table.List(ctx, seller, tokenID, 100, 5_000); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if err := audit("list"); err != nil {
		return err
	}

	if err := table.PlaceBid(ctx, alice, tokenID, 150); err != nil {
		return fmt.Errorf("first bid: %w", err)
	}
	if err := audit("bid alice"); err != nil {
		return err
	}

	clock.Advance(1_000)
	if err := table.PlaceBid(ctx, bob, tokenID, 200); err != nil {
		return fmt.Errorf("outbid: %w", err)
	}
	if err := audit("bid bob"); err != nil {
		return err
	}

	clock.Set(6_000)
	if err := table.Settle(ctx, bob, tokenID); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	if err := audit("settle"); err != nil {
		return err
	}

	for name, account := range map[string]domain.Identity{"alice": alice, "seller": seller} {
		amount, err := ldg.Withdraw(ctx, account)
		if err != nil {
			return fmt.Errorf("withdraw %s: %w", name, err)
		}
		logger.Printf("Withdrew %d for %s", amount, name)
		if err := audit("withdraw " + name); err != nil {
			return err
		}
	}

	owner, err := reg.OwnerOf(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("owner of: %w", err)
	}
	if owner != bob {
		return fmt.Errorf("token %d ended with owner %s, want winning bidder", tokenID, owner)
	}

	hub.Close()
	<-archived

	archivedEvents, err := eventStore.ByToken(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	logger.Printf("Archived %d observations for token %d", len(archivedEvents), tokenID)

	report, err := verification.Check(ctx, auctionStore, balanceStore,
		table.TotalEscrowedIn(), ldg.TotalWithdrawn())
	if err != nil {
		return fmt.Errorf("final audit: %w", err)
	}

	if outputJSON {
		out := struct {
			TokenID      uint64          `json:"token_id"`
			FinalOwner   string          `json:"final_owner"`
			LedgerTotal  uint64          `json:"ledger_total"`
			EscrowedLive uint64          `json:"escrowed_live"`
			EscrowedIn   uint64          `json:"escrowed_in"`
			Withdrawn    uint64          `json:"withdrawn"`
			Balanced     bool            `json:"balanced"`
			Events       []*domain.Event `json:"events"`
		}{
			TokenID:      tokenID,
			FinalOwner:   string(owner),
			LedgerTotal:  uint64(report.LedgerTotal),
			EscrowedLive: uint64(report.EscrowedLive),
			EscrowedIn:   uint64(report.EscrowedIn),
			Withdrawn:    uint64(report.Withdrawn),
			Balanced:     report.Balanced,
			Events:       archivedEvents,
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	logger.Println("Simulation complete, conservation held at every step")
	return nil
}
