package utils

import "math/bits"

// LastPowerOfTwo returns the largest power of two not greater than n, or 0 for n == 0.
func LastPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return 1 << (bits.Len64(n) - 1)
}

func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
