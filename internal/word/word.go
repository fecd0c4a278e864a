// Package word contains helpers for pointer-width little-endian words.
package word

import "encoding/binary"

const (
	// Size is the pointer width of the managed address space in bytes.
	Size = 8

	// AlignMask masks the sub-word bits of an address or length.
	AlignMask = Size - 1
)

// U64LE reads a little-endian uint64 from b. Returns 0 when b is too short.
func U64LE(b []byte) uint64 {
	if len(b) < Size {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// PutU64LE writes v as a little-endian uint64 into b. It is a no-op when b is too short.
func PutU64LE(b []byte, v uint64) {
	if len(b) < Size {
		return
	}
	binary.LittleEndian.PutUint64(b, v)
}

// Align returns n aligned up to the next word boundary.
//
// Example:
//
//	Align(1)  = 8
//	Align(8)  = 8
//	Align(9)  = 16
func Align(n uint64) uint64 {
	return (n + AlignMask) &^ AlignMask
}

// AlignDown returns n aligned down to the previous word boundary.
func AlignDown(n uint64) uint64 {
	return n &^ AlignMask
}

// Aligned reports whether n sits on a word boundary.
func Aligned(n uint64) bool {
	return n&AlignMask == 0
}

// Each calls fn for every word-aligned word in b, in address order.
// A trailing partial word is ignored.
func Each(b []byte, fn func(off int, v uint64)) {
	for off := 0; off+Size <= len(b); off += Size {
		fn(off, binary.LittleEndian.Uint64(b[off:]))
	}
}
