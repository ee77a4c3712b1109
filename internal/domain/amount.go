package domain

import "math"

// Amount is a monetary value in indivisible units. Amounts are fixed
// width; every accumulation must go through CheckedAdd so an overflow
// fails instead of wrapping.
type Amount uint64

// MaxAmount is the largest representable amount.
const MaxAmount = Amount(math.MaxUint64)

// CheckedAdd returns a+b, or ErrArithmeticOverflow if the sum does not
// fit. This is the only addition used on balances and escrowed bids.
func CheckedAdd(a, b Amount) (Amount, error) {
	if a > MaxAmount-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}
