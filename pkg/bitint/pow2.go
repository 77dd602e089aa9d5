// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two helpers used when sizing analysis
frames and capture buffers. All functions are allocation free and O(1).

NextPowerOfTwo subtracts one before taking the bit length so exact powers
of two map to themselves:

	size-1 = 7 (0111), bits.Len(7) = 3, 1<<3 = 8
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size, or 1 for
// size <= 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of 2 <= size, or 0 for
// size <= 0.
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of two
// have one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NearestPowerOfTwo returns whichever of the neighbouring powers of 2 is
// closer to size, preferring the larger on a tie.
func NearestPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	hi := NextPowerOfTwo(size)
	lo := PrevPowerOfTwo(size)
	if size-lo < hi-size {
		return lo
	}
	return hi
}
