package gc

import "errors"

var (
	// ErrAllocationDenied is returned by Alloc when no memory is available now:
	// the heap budget would be exceeded or the host allocator is exhausted,
	// even after one collection and retry.
	ErrAllocationDenied = errors.New("gc: allocation denied")

	// ErrBudgetExceeded is the cause wrapped into ErrAllocationDenied when the
	// configured heap budget refused the request.
	ErrBudgetExceeded = errors.New("gc: heap budget exceeded")
)
