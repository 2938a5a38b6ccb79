package format

import "math/bits"

// Power-of-two utilities for the buddy arena. All block sizes and the arena
// itself are powers of two, so rounding is done on exponents.

// Log2Ceil returns the smallest k such that 1<<k >= n. n must be positive.
//
// Example:
//
//	Log2Ceil(1)  = 0
//	Log2Ceil(8)  = 3
//	Log2Ceil(10) = 4
func Log2Ceil(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// IsPow2 reports whether n is a positive power of two.
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// IsAligned reports whether off is a multiple of the power-of-two size.
func IsAligned(off, size int) bool {
	return off&(size-1) == 0
}
