package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-auction-house/internal/domain"
	"token-auction-house/internal/storage"
)

// AuctionStore implements storage.AuctionStore using PostgreSQL.
type AuctionStore struct {
	pool *Pool
}

// NewAuctionStore creates a new AuctionStore.
func NewAuctionStore(pool *Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AuctionStore = (*AuctionStore)(nil)

// Get retrieves the record for a token. Returns ErrNotFound if the
// token has never been listed.
func (s *AuctionStore) Get(ctx context.Context, tokenID uint64) (*domain.AuctionRecord, error) {
	query := `
		SELECT token_id, seller, min_price::text, end_time, current_bid::text, bidder, status, listed_at
		FROM auction_records
		WHERE token_id = $1
	`

	row := s.pool.QueryRow(ctx, query, int64(tokenID))
	rec, err := scanAuctionRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get auction record: %w", err)
	}
	return rec, nil
}

// Put creates or replaces the record for rec.TokenID.
func (s *AuctionStore) Put(ctx context.Context, rec *domain.AuctionRecord) error {
	if rec == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO auction_records (
			token_id, seller, min_price, end_time, current_bid, bidder, status, listed_at
		) VALUES ($1, $2, $3::numeric, $4, $5::numeric, $6, $7, $8)
		ON CONFLICT (token_id) DO UPDATE SET
			seller = EXCLUDED.seller,
			min_price = EXCLUDED.min_price,
			end_time = EXCLUDED.end_time,
			current_bid = EXCLUDED.current_bid,
			bidder = EXCLUDED.bidder,
			status = EXCLUDED.status,
			listed_at = EXCLUDED.listed_at
	`

	_, err := s.pool.Exec(ctx, query,
		int64(rec.TokenID),
		string(rec.Seller),
		encodeAmount(rec.MinPrice),
		int64(rec.EndTime),
		encodeAmount(rec.CurrentBid),
		string(rec.Bidder),
		string(rec.Status),
		int64(rec.ListedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert auction record: %w", err)
	}
	return nil
}

// ListByStatus retrieves all records in the given status, ordered by token ID ASC.
func (s *AuctionStore) ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.AuctionRecord, error) {
	query := `
		SELECT token_id, seller, min_price::text, end_time, current_bid::text, bidder, status, listed_at
		FROM auction_records
		WHERE status = $1
		ORDER BY token_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list auction records by status: %w", err)
	}
	defer rows.Close()

	var records []*domain.AuctionRecord
	for rows.Next() {
		rec, err := scanAuctionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auction record rows: %w", err)
	}

	return records, nil
}

// scanAuctionRecord scans a single row into an AuctionRecord.
func scanAuctionRecord(row pgx.Row) (*domain.AuctionRecord, error) {
	var rec domain.AuctionRecord
	var tokenID, endTime, listedAt int64
	var seller, minPrice, currentBid, bidder, status string

	err := row.Scan(
		&tokenID,
		&seller,
		&minPrice,
		&endTime,
		&currentBid,
		&bidder,
		&status,
		&listedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.TokenID = uint64(tokenID)
	rec.Seller = domain.Identity(seller)
	rec.EndTime = uint64(endTime)
	rec.Bidder = domain.Identity(bidder)
	rec.Status = domain.AuctionStatus(status)
	rec.ListedAt = uint64(listedAt)

	if rec.MinPrice, err = decodeAmount(minPrice); err != nil {
		return nil, err
	}
	if rec.CurrentBid, err = decodeAmount(currentBid); err != nil {
		return nil, err
	}
	return &rec, nil
}
