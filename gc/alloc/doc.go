// Package alloc provides the raw-memory allocator that sits underneath the
// collector: it hands out zeroed blocks from a heap segment of a
// space.Space and takes them back when the collector sweeps them.
//
// # Overview
//
// FastAllocator uses a segregated free-list design: free cells are filed in
// min-heaps by size class, so the smallest cell that fits is found quickly,
// and adjacent free cells are coalesced on release through start/end indexes.
//
// # Cell Layout
//
// Every cell begins with an 8-byte little-endian header holding the total
// cell size, header included. The sign encodes the state:
//
//	size < 0   allocated
//	size > 0   free
//
// Alloc returns the address just past the header. Payloads are 8-byte
// aligned and zero-filled, matching calloc.
//
// # Growth
//
// The allocator commits its segment lazily, PageSize bytes at a time. When
// the committed range has no fitting cell and the segment cannot grow any
// further, Alloc returns ErrNoSpace. That is the "host exhausted" signal the
// collector reacts to.
//
// # Usage Example
//
//	fa, err := alloc.NewFast(sp, heapStart, heapSize, nil)
//	if err != nil {
//	    return err
//	}
//	p, err := fa.Alloc(1024)
//	if err != nil {
//	    return err
//	}
//	err = fa.Free(p)
//
// # Thread Safety
//
// Allocator instances are not thread-safe.
package alloc
