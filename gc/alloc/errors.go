package alloc

import "errors"

var (
	// ErrNoSpace indicates that no free cell large enough was found and the heap segment cannot grow.
	ErrNoSpace = errors.New("alloc: heap segment exhausted")

	// ErrBadRef indicates an address that is not the payload of any cell.
	ErrBadRef = errors.New("alloc: bad cell address")

	// ErrNotAllocated indicates an attempt to free a cell that is already free.
	ErrNotAllocated = errors.New("alloc: cell is not allocated")

	// ErrBadSegment indicates a heap segment that is empty, misaligned, or outside memory.
	ErrBadSegment = errors.New("alloc: invalid heap segment")

	// ErrBadSizeClasses indicates an unknown or malformed size class layout.
	ErrBadSizeClasses = errors.New("alloc: invalid size classes")
)
