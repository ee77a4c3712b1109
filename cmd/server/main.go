// Package main provides the auction house service: the auction table and
// withdrawal ledger behind a JSON API, with a WebSocket event feed and an
// optional ClickHouse event archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"token-auction-house/internal/auction"
	"token-auction-house/internal/domain"
	"token-auction-house/internal/events"
	"token-auction-house/internal/ledger"
	"token-auction-house/internal/observability"
	"token-auction-house/internal/registry"
	"token-auction-house/internal/storage"
	chstore "token-auction-house/internal/storage/clickhouse"
	"token-auction-house/internal/storage/memory"
	"token-auction-house/internal/storage/migrations"
	pgstore "token-auction-house/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (empty disables the event archive)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auctionStore, balanceStore, cleanup, err := createStores(ctx, *postgresDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")
	hub := events.NewHub(metrics)
	defer hub.Close()

	reg := registry.New(metrics)

	// Funds leave the system through the releaser. There is no payment
	// rail behind this deployment, so releases always succeed.
	releaser := ledger.ReleaserFunc(func(_ context.Context, account domain.Identity, amount domain.Amount) error {
		logger.Printf("Released %d to %s", amount, account)
		return nil
	})

	ldg := ledger.New(balanceStore, releaser, metrics)
	table := auction.NewTable(auctionStore, ldg, reg, auction.NewSystemClock(), hub, metrics)

	// Event archive (optional)
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to prepare clickhouse: %v", err)
		}
		defer conn.Close()

		go runArchiver(ctx, hub, chstore.NewEventStore(conn), metrics, logger)
		logger.Println("Event archive enabled")
	}

	api := newAPI(table, ldg, reg, auctionStore, balanceStore, hub, logger)
	server := &http.Server{
		Addr:    *addr,
		Handler: api.routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}

		// Second signal forces immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-shutdownCtx.Done():
		}
	}()

	logger.Printf("Starting HTTP server on %s", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the auction and balance stores.
func createStores(ctx context.Context, postgresDSN string, useMemory bool) (storage.AuctionStore, storage.BalanceStore, func(), error) {
	if useMemory {
		return memory.NewAuctionStore(), memory.NewBalanceStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	cleanup := func() { pool.Close() }
	return pgstore.NewAuctionStore(pool), pgstore.NewBalanceStore(pool), cleanup, nil
}

// runArchiver drains the hub into the ClickHouse archive until ctx ends.
// Archive failures are logged and skipped; the feed is best-effort.
func runArchiver(ctx context.Context, hub *events.Hub, store *chstore.EventStore, metrics *observability.Metrics, logger *log.Logger) {
	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := store.Append(ctx, &e); err != nil {
				logger.Printf("Archive event %s: %v", e.EventID, err)
				continue
			}
			metrics.EventsArchived.Inc()
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
