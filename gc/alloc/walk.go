package alloc

import (
	"fmt"

	"github.com/joshuapare/simplegc/gc/space"
)

// Cell describes one cell found while walking the committed segment.
type Cell struct {
	Off       space.Addr // header address
	Size      uint64     // total size including the header
	Allocated bool
}

// Payload returns the address handed out for the cell.
func (c Cell) Payload() space.Addr { return c.Off.Add(HeaderSize) }

// Walk visits every cell in the committed segment in address order by
// following the in-band headers. It stops early when fn returns false and
// returns an error when a header is inconsistent with the allocator's indexes.
func (fa *FastAllocator) Walk(fn func(Cell) bool) error {
	for off := fa.start; off < fa.top; {
		raw, err := fa.header(off)
		if err != nil {
			return err
		}
		c := Cell{Off: off, Allocated: raw < 0}
		if raw < 0 {
			c.Size = uint64(-raw)
		} else {
			c.Size = uint64(raw)
		}
		if c.Size < minCellSize || c.Size%HeaderSize != 0 || off.Add(c.Size) > fa.top {
			return fmt.Errorf("%w: corrupt header %d at %s", ErrBadRef, raw, off)
		}
		if c.Allocated {
			if sz, ok := fa.used[off]; !ok || sz != c.Size {
				return fmt.Errorf("%w: allocated header at %s not tracked", ErrBadRef, off)
			}
		} else if sz, ok := fa.startIdx[off]; !ok || sz != c.Size {
			return fmt.Errorf("%w: free header at %s not indexed", ErrBadRef, off)
		}
		if !fn(c) {
			return nil
		}
		off = off.Add(c.Size)
	}
	return nil
}
