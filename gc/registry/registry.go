// Package registry tracks every live managed block: base address to size.
//
// The registry has no per-block delete. Blocks leave it only when the
// collector installs a new generation with Replace, which discards the old
// map wholesale.
package registry

import (
	"iter"
	"maps"
	"slices"

	"github.com/joshuapare/simplegc/gc/space"
)

// Block is a managed block as recorded in the registry.
type Block struct {
	Addr space.Addr
	Size uint64
}

// End returns the first address past the block.
func (b Block) End() space.Addr { return b.Addr.Add(b.Size) }

// Registry maps block base addresses to block sizes.
// A Registry is not safe for concurrent use.
type Registry struct {
	blocks map[space.Addr]uint64
	bytes  uint64
	gen    uint64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{blocks: make(map[space.Addr]uint64)}
}

// Register records a freshly allocated block. The caller guarantees addr is
// not already present; re-registering an address replaces its size.
func (r *Registry) Register(addr space.Addr, size uint64) {
	if old, ok := r.blocks[addr]; ok {
		r.bytes -= old
	}
	r.blocks[addr] = size
	r.bytes += size
}

// Lookup returns the size of the block based exactly at addr.
// Addresses inside a block do not match.
func (r *Registry) Lookup(addr space.Addr) (uint64, bool) {
	size, ok := r.blocks[addr]
	return size, ok
}

// Contains reports whether addr is the base of a registered block.
func (r *Registry) Contains(addr space.Addr) bool {
	_, ok := r.blocks[addr]
	return ok
}

// All enumerates every block in unspecified order.
func (r *Registry) All() iter.Seq2[space.Addr, uint64] {
	return maps.All(r.blocks)
}

// Blocks returns every block sorted by address.
func (r *Registry) Blocks() []Block {
	out := make([]Block, 0, len(r.blocks))
	for _, addr := range slices.Sorted(maps.Keys(r.blocks)) {
		out = append(out, Block{Addr: addr, Size: r.blocks[addr]})
	}
	return out
}

// Replace installs next's contents as this registry's new generation.
// next is consumed and must not be used afterwards.
func (r *Registry) Replace(next *Registry) {
	r.blocks = next.blocks
	r.bytes = next.bytes
	r.gen++
	next.blocks = nil
	next.bytes = 0
}

// Len returns the number of registered blocks.
func (r *Registry) Len() int { return len(r.blocks) }

// Bytes returns the total size of registered blocks.
func (r *Registry) Bytes() uint64 { return r.bytes }

// Generation counts how many times Replace has installed a new generation.
func (r *Registry) Generation() uint64 { return r.gen }
