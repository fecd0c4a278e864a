// Package space implements a flat, word-addressable address space whose bytes
// live outside the Go heap.
//
// Every managed object, the mutator's stack, its global-data segment and its
// heap are ranges of one Space. Addresses are plain 64-bit values, so a word
// stored anywhere in the space may or may not be an address; that ambiguity is
// what a conservative collector works with.
//
// A Space is not safe for concurrent use.
package space

import (
	"fmt"

	"github.com/joshuapare/simplegc/internal/arena"
	"github.com/joshuapare/simplegc/internal/word"
)

// Addr is an address in a Space.
type Addr uint64

// WordSize is the width of a pointer in bytes.
const WordSize = word.Size

// Add returns a+n.
func (a Addr) Add(n uint64) Addr { return a + Addr(n) }

// String formats the address the way pointers are usually printed.
func (a Addr) String() string { return fmt.Sprintf("0x%x", uint64(a)) }

// Region is a half-open byte range [Start, Start+Len).
type Region struct {
	Start Addr
	Len   uint64
}

// End returns the first address past the region.
func (r Region) End() Addr { return r.Start.Add(r.Len) }

// Contains reports whether a lies inside the region.
func (r Region) Contains(a Addr) bool { return a >= r.Start && a < r.End() }

func (r Region) String() string {
	return fmt.Sprintf("[%s, %s) %d bytes", r.Start, r.End(), r.Len)
}

// Space is a contiguous range of addresses starting at Base.
type Space struct {
	base    Addr
	data    []byte
	release func() error
}

// New maps size bytes of zeroed memory and exposes them at base.
// Base must be word aligned and non-zero so that a zero word is never a valid address.
func New(base Addr, size int) (*Space, error) {
	if base == 0 || !word.Aligned(uint64(base)) {
		return nil, fmt.Errorf("%w: base %s", ErrMisaligned, base)
	}
	data, release, err := arena.Map(size)
	if err != nil {
		return nil, err
	}
	if _, ok := word.AddOverflowSafe(uint64(base), uint64(len(data))); !ok {
		_ = release()
		return nil, fmt.Errorf("%w: base %s + %d bytes", ErrOutOfRange, base, len(data))
	}
	return &Space{base: base, data: data, release: release}, nil
}

// Close unmaps the backing memory. The space must not be used afterwards.
func (s *Space) Close() error {
	if s == nil || s.data == nil {
		return nil
	}
	s.data = nil
	return s.release()
}

// Base returns the lowest address of the space.
func (s *Space) Base() Addr { return s.base }

// Size returns the number of addressable bytes.
func (s *Space) Size() uint64 { return uint64(len(s.data)) }

// Bounds returns the whole space as a region.
func (s *Space) Bounds() Region { return Region{Start: s.base, Len: s.Size()} }

// Contains reports whether [a, a+n) lies inside the space.
func (s *Space) Contains(a Addr, n uint64) bool {
	if a < s.base {
		return false
	}
	return word.RangeWithin(uint64(a-s.base), n, s.Size())
}

// Bytes returns a view of [a, a+n). Writes through the view are writes to the space.
func (s *Space) Bytes(a Addr, n uint64) ([]byte, error) {
	if !s.Contains(a, n) {
		return nil, fmt.Errorf("%w: %s+%d", ErrOutOfRange, a, n)
	}
	off := uint64(a - s.base)
	return s.data[off : off+n : off+n], nil
}

// Load reads the word at a, which must be word aligned.
func (s *Space) Load(a Addr) (uint64, error) {
	b, err := s.word(a)
	if err != nil {
		return 0, err
	}
	return word.U64LE(b), nil
}

// Store writes v into the word at a, which must be word aligned.
func (s *Space) Store(a Addr, v uint64) error {
	b, err := s.word(a)
	if err != nil {
		return err
	}
	word.PutU64LE(b, v)
	return nil
}

// Fill sets every byte of [a, a+n) to v.
func (s *Space) Fill(a Addr, n uint64, v byte) error {
	b, err := s.Bytes(a, n)
	if err != nil {
		return err
	}
	for i := range b {
		b[i] = v
	}
	return nil
}

// Zero clears [a, a+n).
func (s *Space) Zero(a Addr, n uint64) error {
	b, err := s.Bytes(a, n)
	if err != nil {
		return err
	}
	clear(b)
	return nil
}

func (s *Space) word(a Addr) ([]byte, error) {
	if !word.Aligned(uint64(a)) {
		return nil, fmt.Errorf("%w: %s", ErrMisaligned, a)
	}
	return s.Bytes(a, WordSize)
}
