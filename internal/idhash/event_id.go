package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"token-auction-house/internal/domain"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(type|token_id|actor|amount|end_time|emitted_at)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(
	eventType domain.EventType,
	tokenID uint64,
	actor domain.Identity,
	amount domain.Amount,
	endTime uint64,
	emittedAt uint64,
) string {
	data := fmt.Sprintf("%s|%d|%s|%d|%d|%d",
		string(eventType),
		tokenID,
		string(actor),
		uint64(amount),
		endTime,
		emittedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
