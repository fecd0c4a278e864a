// Package verify checks the invariants that tie the collector's registry to
// the host allocator. These helpers are used in tests and by gcctl.
package verify

import (
	"fmt"

	"github.com/joshuapare/simplegc/gc/alloc"
	"github.com/joshuapare/simplegc/gc/registry"
	"github.com/joshuapare/simplegc/gc/space"
)

// ValidationError describes the first invariant violation found.
type ValidationError struct {
	Type    string
	Message string
	Addr    space.Addr
}

func (e *ValidationError) Error() string {
	if e.Addr != 0 {
		return fmt.Sprintf("%s at %s: %s", e.Type, e.Addr, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Collector is the view of a collector the checks need.
type Collector interface {
	Blocks() []registry.Block
	Allocated() uint64
}

// Host is the view of the host allocator the checks need.
type Host interface {
	CellSize(a space.Addr) (uint64, bool)
	Segment() space.Region
	Walk(fn func(alloc.Cell) bool) error
}

// AllInvariants validates every invariant in one call.
// Returns the first error encountered, or nil if all checks pass.
func AllInvariants(c Collector, h Host) error {
	blocks := c.Blocks()
	if err := Registry(blocks); err != nil {
		return err
	}
	if err := Accounting(blocks, c.Allocated()); err != nil {
		return err
	}
	if err := HostCells(h); err != nil {
		return err
	}
	if err := Ownership(blocks, h); err != nil {
		return err
	}
	return Orphans(blocks, h)
}

// Registry validates that blocks, sorted by address, do not overlap.
func Registry(blocks []registry.Block) error {
	for i := 1; i < len(blocks); i++ {
		prev, cur := blocks[i-1], blocks[i]
		if cur.Addr <= prev.Addr {
			return &ValidationError{
				Type:    "Registry",
				Message: fmt.Sprintf("blocks not strictly sorted: %s after %s", cur.Addr, prev.Addr),
				Addr:    cur.Addr,
			}
		}
		if cur.Addr < prev.End() {
			return &ValidationError{
				Type:    "Registry",
				Message: fmt.Sprintf("overlaps block %s (%d bytes)", prev.Addr, prev.Size),
				Addr:    cur.Addr,
			}
		}
	}
	return nil
}

// Accounting validates that the collector's live-byte counter equals the
// sum of registered block sizes.
func Accounting(blocks []registry.Block, allocated uint64) error {
	var sum uint64
	for _, b := range blocks {
		sum += b.Size
	}
	if sum != allocated {
		return &ValidationError{
			Type:    "Accounting",
			Message: fmt.Sprintf("registry holds %d bytes, counter says %d", sum, allocated),
		}
	}
	return nil
}

// Ownership validates that every registered block is a live host cell inside
// the heap segment and large enough for its recorded size.
func Ownership(blocks []registry.Block, h Host) error {
	seg := h.Segment()
	for _, b := range blocks {
		if !seg.Contains(b.Addr) {
			return &ValidationError{
				Type:    "Ownership",
				Message: fmt.Sprintf("outside heap segment %s", seg),
				Addr:    b.Addr,
			}
		}
		cell, ok := h.CellSize(b.Addr)
		if !ok {
			return &ValidationError{
				Type:    "Ownership",
				Message: "registered block is not allocated in the host heap",
				Addr:    b.Addr,
			}
		}
		if cell-alloc.HeaderSize < b.Size {
			return &ValidationError{
				Type:    "Ownership",
				Message: fmt.Sprintf("block of %d bytes in a %d-byte cell", b.Size, cell),
				Addr:    b.Addr,
			}
		}
	}
	return nil
}

// HostCells validates that the host heap's in-band headers tile the
// committed segment and agree with the allocator's indexes, and that no two
// free cells are adjacent.
func HostCells(h Host) error {
	var prevFree bool
	var verr error
	err := h.Walk(func(c alloc.Cell) bool {
		if !c.Allocated && prevFree {
			verr = &ValidationError{
				Type:    "HostCells",
				Message: "adjacent free cells were not coalesced",
				Addr:    c.Off,
			}
			return false
		}
		prevFree = !c.Allocated
		return true
	})
	if err != nil {
		return &ValidationError{Type: "HostCells", Message: err.Error()}
	}
	return verr
}

// Orphans validates that every allocated host cell is a registered block.
// It holds when the collector is the host heap's only client.
func Orphans(blocks []registry.Block, h Host) error {
	live := make(map[space.Addr]struct{}, len(blocks))
	for _, b := range blocks {
		live[b.Addr] = struct{}{}
	}
	var verr error
	err := h.Walk(func(c alloc.Cell) bool {
		if !c.Allocated {
			return true
		}
		if _, ok := live[c.Payload()]; !ok {
			verr = &ValidationError{
				Type:    "Orphans",
				Message: fmt.Sprintf("allocated %d-byte cell has no registered block", c.Size),
				Addr:    c.Payload(),
			}
			return false
		}
		return true
	})
	if err != nil {
		return &ValidationError{Type: "Orphans", Message: err.Error()}
	}
	return verr
}
