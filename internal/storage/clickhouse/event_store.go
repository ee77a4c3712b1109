package clickhouse

import (
	"context"
	"fmt"

	"token-auction-house/internal/domain"
	"token-auction-house/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse. The table is a
// ReplacingMergeTree keyed by event ID, so re-archiving a replayed event is
// harmless.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// Append records an emitted event.
func (s *EventStore) Append(ctx context.Context, e *domain.Event) error {
	if e == nil {
		return fmt.Errorf("%w: nil event", storage.ErrInvalidInput)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO auction_events (
			event_id, event_type, token_id, actor, amount, end_time, emitted_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.EventID, string(e.Type), e.TokenID,
		string(e.Actor), uint64(e.Amount), e.EndTime, e.EmittedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// ByToken retrieves all archived events for a token, ordered by emission time ASC.
func (s *EventStore) ByToken(ctx context.Context, tokenID uint64) ([]*domain.Event, error) {
	query := `
		SELECT event_id, event_type, token_id, actor, amount, end_time, emitted_at
		FROM auction_events FINAL
		WHERE token_id = ?
		ORDER BY emitted_at ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("query by token: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var (
			e         domain.Event
			eventType string
			actor     string
			amount    uint64
		)
		if err := rows.Scan(&e.EventID, &eventType, &e.TokenID, &actor, &amount, &e.EndTime, &e.EmittedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Type = domain.EventType(eventType)
		e.Actor = domain.Identity(actor)
		e.Amount = domain.Amount(amount)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}
