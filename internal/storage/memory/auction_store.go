package memory

import (
	"context"
	"sort"
	"sync"

	"token-auction-house/internal/domain"
	"token-auction-house/internal/storage"
)

// AuctionStore is an in-memory implementation of storage.AuctionStore.
type AuctionStore struct {
	mu   sync.RWMutex
	data map[uint64]*domain.AuctionRecord // keyed by token_id
}

// NewAuctionStore creates a new in-memory auction store.
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		data: make(map[uint64]*domain.AuctionRecord),
	}
}

// Get retrieves the record for a token. Returns ErrNotFound if the token
// has never been listed.
func (s *AuctionStore) Get(_ context.Context, tokenID uint64) (*domain.AuctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.data[tokenID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	recCopy := *rec
	return &recCopy, nil
}

// Put creates or replaces the record for rec.TokenID.
func (s *AuctionStore) Put(_ context.Context, rec *domain.AuctionRecord) error {
	if rec == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	recCopy := *rec
	s.data[rec.TokenID] = &recCopy
	return nil
}

// ListByStatus retrieves all records in the given status, ordered by token ID ASC.
func (s *AuctionStore) ListByStatus(_ context.Context, status domain.AuctionStatus) ([]*domain.AuctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AuctionRecord
	for _, rec := range s.data {
		if rec.Status == status {
			recCopy := *rec
			result = append(result, &recCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TokenID < result[j].TokenID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.AuctionStore = (*AuctionStore)(nil)
