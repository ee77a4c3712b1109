package memory

import (
	"context"
	"sort"
	"sync"

	"token-auction-house/internal/domain"
	"token-auction-house/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data []*domain.Event
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Append records an emitted event.
func (s *EventStore) Append(_ context.Context, e *domain.Event) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eventCopy := *e
	s.data = append(s.data, &eventCopy)
	return nil
}

// ByToken retrieves all archived events for a token, ordered by emission time ASC.
func (s *EventStore) ByToken(_ context.Context, tokenID uint64) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, e := range s.data {
		if e.TokenID == tokenID {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EmittedAt < result[j].EmittedAt
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.EventStore = (*EventStore)(nil)
