// Package identity parses and validates participant addresses.
// An address is a base58-encoded 32-byte ed25519 public key.
package identity

import (
	"bytes"
	"crypto/rand"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"token-auction-house/internal/domain"
)

// addressLen is the decoded length of a valid address.
const addressLen = 32

// Parse decodes and validates an address string, returning it as a
// domain identity. The empty string is rejected; use domain.Identity("")
// directly where "unset" is meant.
func Parse(s string) (domain.Identity, error) {
	if s == "" {
		return "", fmt.Errorf("empty address")
	}

	decoded, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("decode address: %w", err)
	}
	if len(decoded) != addressLen {
		return "", fmt.Errorf("address must decode to %d bytes, got %d", addressLen, len(decoded))
	}

	point, err := new(edwards25519.Point).SetBytes(decoded)
	if err != nil {
		return "", fmt.Errorf("address is not a valid ed25519 point")
	}
	// SetBytes tolerates non-canonical field encodings. Identities
	// compare as strings, so only the canonical encoding of a point is
	// accepted.
	if !bytes.Equal(point.Bytes(), decoded) {
		return "", fmt.Errorf("address is not a canonical ed25519 encoding")
	}

	return domain.Identity(base58.Encode(decoded)), nil
}

// Generate returns a fresh random valid address. Used by tests and the
// simulation command; production identities come from callers.
func Generate() (domain.Identity, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("read random seed: %w", err)
	}

	s, err := edwards25519.NewScalar().SetBytesWithClamping(seed)
	if err != nil {
		return "", fmt.Errorf("derive scalar: %w", err)
	}
	point := new(edwards25519.Point).ScalarBaseMult(s)

	return domain.Identity(base58.Encode(point.Bytes())), nil
}
