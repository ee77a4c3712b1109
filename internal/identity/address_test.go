package identity

import (
	"bytes"
	"testing"

	"github.com/mr-tron/base58"
)

func TestParse_RoundTrip(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	parsed, err := Parse(string(id))
	if err != nil {
		t.Fatalf("Parse failed for generated address: %v", err)
	}
	if parsed != id {
		t.Errorf("round trip mismatch: got %s, want %s", parsed, id)
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestParse_BadCharacters(t *testing.T) {
	// '0', 'O', 'I', 'l' are outside the base58 alphabet.
	if _, err := Parse("0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl"); err == nil {
		t.Fatal("expected error for non-base58 input")
	}
}

func TestParse_WrongLength(t *testing.T) {
	// Valid base58, but decodes to far fewer than 32 bytes.
	if _, err := Parse("abc"); err == nil {
		t.Fatal("expected error for short address")
	}
}

func TestParse_NonCanonicalEncoding(t *testing.T) {
	// All-0xFF encodes a field value past the modulus. SetBytes reduces
	// it to a curve point, but its canonical encoding differs, so the
	// address must be rejected.
	raw := bytes.Repeat([]byte{0xff}, 32)
	if _, err := Parse(base58.Encode(raw)); err == nil {
		t.Fatal("expected error for non-canonical encoding")
	}
}

func TestGenerate_Distinct(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	b, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if a == b {
		t.Error("two generated addresses collided")
	}
}
