package domain

import (
	"errors"
	"testing"
)

func TestCheckedAdd(t *testing.T) {
	sum, err := CheckedAdd(100, 50)
	if err != nil {
		t.Fatalf("CheckedAdd failed: %v", err)
	}
	if sum != 150 {
		t.Errorf("sum mismatch: got %d, want 150", sum)
	}
}

func TestCheckedAdd_Overflow(t *testing.T) {
	_, err := CheckedAdd(MaxAmount, 1)
	if !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}

	// The boundary itself is representable.
	sum, err := CheckedAdd(MaxAmount-1, 1)
	if err != nil {
		t.Fatalf("boundary add failed: %v", err)
	}
	if sum != MaxAmount {
		t.Errorf("boundary sum mismatch: got %d, want %d", sum, MaxAmount)
	}
}

func TestCheckedAdd_Zero(t *testing.T) {
	sum, err := CheckedAdd(MaxAmount, 0)
	if err != nil {
		t.Fatalf("adding zero must never overflow: %v", err)
	}
	if sum != MaxAmount {
		t.Errorf("sum mismatch: got %d, want %d", sum, MaxAmount)
	}
}
