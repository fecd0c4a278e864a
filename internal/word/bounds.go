package word

import "math"

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow uint64.
func AddOverflowSafe(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// RangeWithin reports whether [off, off+n) fits inside [0, limit).
func RangeWithin(off, n, limit uint64) bool {
	end, ok := AddOverflowSafe(off, n)
	return ok && end <= limit
}
