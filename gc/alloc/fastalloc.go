package alloc

import (
	"container/heap"
	"fmt"
	"os"

	"github.com/joshuapare/simplegc/gc/space"
	"github.com/joshuapare/simplegc/internal/word"
)

// Runtime debug flag for allocation logging - controlled by SIMPLEGC_LOG_ALLOC env var.
var logAlloc = os.Getenv("SIMPLEGC_LOG_ALLOC") != ""

const (
	// HeaderSize is the size of the in-band cell header that precedes every payload.
	HeaderSize = word.Size

	// minCellSize is the minimum total cell size (header plus one word).
	minCellSize = HeaderSize + word.Size

	// PageSize is the granularity by which the committed part of the segment grows.
	PageSize = 4096
)

// Memory is the byte-addressable memory a FastAllocator carves cells from.
// *space.Space satisfies it.
type Memory interface {
	Bytes(a space.Addr, n uint64) ([]byte, error)
}

// FastAllocator is a calloc-style allocator using min-heaps per size class.
//
// Each cell starts with an 8-byte little-endian header holding the cell size
// (header included): negative while allocated, positive while free. Payloads
// are 8-byte aligned and zeroed on allocation. The committed part of the
// segment grows page by page up to the segment limit; after that Alloc
// reports ErrNoSpace.
//
// A FastAllocator is not safe for concurrent use.
type FastAllocator struct {
	mem Memory

	start space.Addr // first byte of the segment
	limit space.Addr // first byte past the segment
	top   space.Addr // first byte past the committed part

	classes *classTable

	// Segregated free lists by size class; the last list holds large cells.
	freeLists []freeList

	// startIdx: free cell start -> size (forward coalesce lookup)
	// endIdx: free cell end -> start (backward coalesce lookup)
	startIdx map[space.Addr]uint64
	endIdx   map[space.Addr]space.Addr

	// byOff: free cell start -> heap entry, for heap.Remove during coalescing.
	byOff map[space.Addr]*freeCell

	// used: allocated cell start -> size.
	used map[space.Addr]uint64

	stats Stats

	// Test hook: called before the segment grows (nil in production)
	onGrow func(pages int)
}

// Stats holds allocator statistics for testing and instrumentation.
type Stats struct {
	AllocCalls       int    // Total Alloc() calls
	AllocFastPath    int    // Allocations served from a free list
	AllocSlowPath    int    // Allocations that required growth
	AllocFailures    int    // Allocations that returned ErrNoSpace
	FreeCalls        int    // Total successful Free() calls
	GrowCalls        int    // Number of growth steps
	GrowBytes        uint64 // Total bytes committed by growth
	BytesAllocated   uint64 // Total cell bytes handed out (headers included)
	BytesFreed       uint64 // Total cell bytes released
	SplitCount       int    // Number of cell splits
	CoalesceForward  int    // Forward coalesce operations
	CoalesceBackward int    // Backward coalesce operations
	HeapPushes       int    // heap.Push() calls
	HeapRemoves      int    // heap.Pop()/heap.Remove() calls
}

// freeList is a size-class-specific free list using a min-heap.
type freeList struct {
	heap freeCellHeap
}

// freeCell represents a free cell in the allocator.
type freeCell struct {
	off       space.Addr // Cell start (header address)
	size      uint64     // Size including header
	sc        int        // Size class (which heap this belongs to)
	heapIndex int        // Position in heap (for heap.Remove)
}

// freeCellHeap implements heap.Interface for a min-heap keyed on cell size.
// Smallest cells are at the top, giving best-fit allocation.
type freeCellHeap []*freeCell

func (h *freeCellHeap) Len() int { return len(*h) }

func (h *freeCellHeap) Less(i, j int) bool {
	if (*h)[i].size == (*h)[j].size {
		return (*h)[i].off < (*h)[j].off
	}
	return (*h)[i].size < (*h)[j].size
}

func (h *freeCellHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].heapIndex = i
	(*h)[j].heapIndex = j
}

func (h *freeCellHeap) Push(x any) {
	cell := x.(*freeCell) //nolint:errcheck // heap.Interface contract guarantees type
	cell.heapIndex = len(*h)
	*h = append(*h, cell)
}

func (h *freeCellHeap) Pop() any {
	old := *h
	n := len(old)
	cell := old[n-1]
	cell.heapIndex = -1
	*h = old[0 : n-1]
	return cell
}

// NewFast creates an allocator over the segment [start, start+size) of mem.
// No memory is committed until the first allocation.
//
// Parameters:
//   - mem: Memory holding the segment
//   - start: Segment start, must be word aligned
//   - size: Segment size in bytes, rounded down to whole pages
//   - classes: Free-list layout (nil for BalancedClasses)
func NewFast(mem Memory, start space.Addr, size uint64, classes *SizeClasses) (*FastAllocator, error) {
	if classes == nil {
		classes = &BalancedClasses
	}
	if err := classes.validate(); err != nil {
		return nil, err
	}
	size -= size % PageSize
	if size == 0 || !word.Aligned(uint64(start)) {
		return nil, fmt.Errorf("%w: start %s size %d", ErrBadSegment, start, size)
	}
	if _, err := mem.Bytes(start, size); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSegment, err)
	}

	table := newClassTable(*classes)

	return &FastAllocator{
		mem:       mem,
		start:     start,
		limit:     start.Add(size),
		top:       start,
		classes:   table,
		freeLists: make([]freeList, table.lists()),
		startIdx:  make(map[space.Addr]uint64),
		endIdx:    make(map[space.Addr]space.Addr),
		byOff:     make(map[space.Addr]*freeCell, 256),
		used:      make(map[space.Addr]uint64, 256),
	}, nil
}

// Alloc returns the address of a zeroed payload of at least n bytes.
// A zero-byte request still yields a unique address.
func (fa *FastAllocator) Alloc(n uint64) (space.Addr, error) {
	fa.stats.AllocCalls++

	need, ok := cellSizeFor(n)
	if !ok || need > uint64(fa.limit-fa.start) {
		fa.stats.AllocFailures++
		return 0, fmt.Errorf("%w: request of %d bytes", ErrNoSpace, n)
	}

	cell := fa.takeFreeCell(need)
	if cell == nil {
		if err := fa.growFor(need); err != nil {
			fa.stats.AllocFailures++
			return 0, err
		}
		cell = fa.takeFreeCell(need)
		if cell == nil {
			// growFor guarantees a trailing free cell of at least need bytes.
			fa.stats.AllocFailures++
			return 0, fmt.Errorf("%w: no fit after growth", ErrNoSpace)
		}
		fa.stats.AllocSlowPath++
	} else {
		fa.stats.AllocFastPath++
	}

	off, size := cell.off, cell.size
	if rem := size - need; rem >= minCellSize {
		fa.stats.SplitCount++
		fa.insertFreeCell(off.Add(need), rem)
		size = need
	}

	if err := fa.putHeader(off, -int64(size)); err != nil {
		return 0, err
	}
	payload := off.Add(HeaderSize)
	b, err := fa.mem.Bytes(payload, size-HeaderSize)
	if err != nil {
		return 0, err
	}
	clear(b)

	fa.used[off] = size
	fa.stats.BytesAllocated += size
	return payload, nil
}

// Free releases the cell whose payload starts at addr and coalesces it with
// free neighbours.
func (fa *FastAllocator) Free(addr space.Addr) error {
	if addr < fa.start.Add(HeaderSize) || addr >= fa.top {
		return fmt.Errorf("%w: %s", ErrBadRef, addr)
	}
	off := addr - HeaderSize
	sz, ok := fa.used[off]
	if !ok {
		if _, free := fa.startIdx[off]; free {
			return fmt.Errorf("%w: %s", ErrNotAllocated, addr)
		}
		return fmt.Errorf("%w: %s", ErrBadRef, addr)
	}
	delete(fa.used, off)
	fa.stats.FreeCalls++
	fa.stats.BytesFreed += sz

	// Forward: a free cell starting exactly at our end
	next := off.Add(sz)
	if nextSize, ok := fa.startIdx[next]; ok {
		fa.stats.CoalesceForward++
		fa.removeFreeCell(next, nextSize)
		sz += nextSize
	}

	// Backward: a free cell ending exactly at our start
	if prevOff, ok := fa.endIdx[off]; ok {
		prevSize := fa.startIdx[prevOff]
		fa.stats.CoalesceBackward++
		fa.removeFreeCell(prevOff, prevSize)
		sz += prevSize
		off = prevOff
	}

	fa.insertFreeCell(off, sz)
	return nil
}

// GrowByPages commits numPages more pages at the end of the segment.
func (fa *FastAllocator) GrowByPages(numPages int) error {
	if numPages <= 0 {
		return fmt.Errorf("%w: invalid page count %d", ErrNoSpace, numPages)
	}
	grow := uint64(numPages) * PageSize
	if grow > uint64(fa.limit-fa.top) {
		if logAlloc {
			fmt.Fprintf(os.Stderr, "[ALLOC] segment exhausted: top=%s limit=%s want=%d\n", fa.top, fa.limit, grow)
		}
		return fmt.Errorf("%w: %d pages requested, %d bytes left", ErrNoSpace, numPages, fa.limit-fa.top)
	}
	if fa.onGrow != nil {
		fa.onGrow(numPages)
	}

	off := fa.top
	fa.top = fa.top.Add(grow)
	fa.stats.GrowCalls++
	fa.stats.GrowBytes += grow

	if logAlloc {
		fmt.Fprintf(os.Stderr, "[ALLOC] grow: %d pages at %s\n", numPages, off)
	}

	// The new range joins a trailing free cell if there is one.
	size := grow
	if prevOff, ok := fa.endIdx[off]; ok {
		prevSize := fa.startIdx[prevOff]
		fa.stats.CoalesceBackward++
		fa.removeFreeCell(prevOff, prevSize)
		size += prevSize
		off = prevOff
	}
	fa.insertFreeCell(off, size)
	return nil
}

// IsAllocated reports whether addr is the payload address of a live cell.
func (fa *FastAllocator) IsAllocated(addr space.Addr) bool {
	_, ok := fa.used[addr-HeaderSize]
	return ok && addr >= fa.start.Add(HeaderSize)
}

// CellSize returns the total size of the live cell whose payload is at addr.
func (fa *FastAllocator) CellSize(addr space.Addr) (uint64, bool) {
	if addr < fa.start.Add(HeaderSize) {
		return 0, false
	}
	sz, ok := fa.used[addr-HeaderSize]
	return sz, ok
}

// Segment returns the whole segment the allocator may use.
func (fa *FastAllocator) Segment() space.Region {
	return space.Region{Start: fa.start, Len: uint64(fa.limit - fa.start)}
}

// Committed returns the part of the segment that has been grown into.
func (fa *FastAllocator) Committed() space.Region {
	return space.Region{Start: fa.start, Len: uint64(fa.top - fa.start)}
}

// InUse returns the number of live cells and their total size.
func (fa *FastAllocator) InUse() (cells int, bytes uint64) {
	for _, sz := range fa.used {
		bytes += sz
	}
	return len(fa.used), bytes
}

// FreeBytes returns the total size of free cells in the committed range.
func (fa *FastAllocator) FreeBytes() uint64 {
	var total uint64
	for _, sz := range fa.startIdx {
		total += sz
	}
	return total
}

// Stats returns a copy of the allocator statistics.
func (fa *FastAllocator) Stats() Stats {
	return fa.stats
}

// SizeClasses returns the name of the free-list layout.
func (fa *FastAllocator) SizeClasses() string {
	return fa.classes.String()
}

// growFor commits enough pages for a cell of need bytes, counting a trailing
// free cell that the new pages will coalesce with.
func (fa *FastAllocator) growFor(need uint64) error {
	var tail uint64
	if prevOff, ok := fa.endIdx[fa.top]; ok {
		tail = fa.startIdx[prevOff]
	}
	missing := need - min(need, tail)
	pages := int((missing + PageSize - 1) / PageSize)
	if pages == 0 {
		pages = 1
	}
	return fa.GrowByPages(pages)
}

// takeFreeCell removes and returns the best-fitting free cell of at least need bytes.
func (fa *FastAllocator) takeFreeCell(need uint64) *freeCell {
	for sc := fa.classes.classOf(need); sc < len(fa.freeLists); sc++ {
		if cell := fa.allocFromSizeClass(sc, need); cell != nil {
			return cell
		}
	}
	return nil
}

func (fa *FastAllocator) allocFromSizeClass(sc int, need uint64) *freeCell {
	list := &fa.freeLists[sc]
	if list.heap.Len() == 0 {
		return nil
	}

	// heap[0] is the smallest cell in this class; if it fits it is the best fit.
	idx := -1
	if list.heap[0].size >= need {
		idx = 0
	} else {
		// Cells in the requested class span a range of sizes; scan for the smallest fit.
		var best uint64
		for i := 1; i < list.heap.Len(); i++ {
			if s := list.heap[i].size; s >= need && (idx == -1 || s < best) {
				idx, best = i, s
			}
		}
		if idx == -1 {
			return nil
		}
	}

	fa.stats.HeapRemoves++
	cell := heap.Remove(&list.heap, idx).(*freeCell) //nolint:errcheck // heap contains only *freeCell
	delete(fa.byOff, cell.off)
	delete(fa.startIdx, cell.off)
	delete(fa.endIdx, cell.off.Add(cell.size))
	return cell
}

// insertFreeCell writes a free header and files the cell in its size class.
func (fa *FastAllocator) insertFreeCell(off space.Addr, size uint64) {
	if off < fa.start || off.Add(size) > fa.top {
		return
	}
	_ = fa.putHeader(off, int64(size))

	sc := fa.classes.classOf(size)
	cell := &freeCell{off: off, size: size, sc: sc}
	fa.stats.HeapPushes++
	heap.Push(&fa.freeLists[sc].heap, cell)

	fa.byOff[off] = cell
	fa.startIdx[off] = size
	fa.endIdx[off.Add(size)] = off
}

// removeFreeCell removes a free cell from its heap and the coalescing indexes.
func (fa *FastAllocator) removeFreeCell(off space.Addr, size uint64) {
	cell := fa.byOff[off]
	if cell == nil {
		return
	}
	fa.stats.HeapRemoves++
	heap.Remove(&fa.freeLists[cell.sc].heap, cell.heapIndex)
	delete(fa.byOff, off)
	delete(fa.startIdx, off)
	delete(fa.endIdx, off.Add(size))
}

func (fa *FastAllocator) putHeader(off space.Addr, v int64) error {
	b, err := fa.mem.Bytes(off, HeaderSize)
	if err != nil {
		return err
	}
	word.PutU64LE(b, uint64(v))
	return nil
}

// header reads the raw signed size stored at a cell start.
func (fa *FastAllocator) header(off space.Addr) (int64, error) {
	b, err := fa.mem.Bytes(off, HeaderSize)
	if err != nil {
		return 0, err
	}
	return int64(word.U64LE(b)), nil
}

// cellSizeFor converts a payload request to an aligned cell size.
func cellSizeFor(n uint64) (uint64, bool) {
	payload, ok := word.AddOverflowSafe(n, word.AlignMask)
	if !ok {
		return 0, false
	}
	payload = word.AlignDown(payload)
	need, ok := word.AddOverflowSafe(payload, HeaderSize)
	if !ok {
		return 0, false
	}
	return max(need, minCellSize), true
}
