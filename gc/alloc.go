package gc

import (
	"fmt"

	"github.com/joshuapare/simplegc/gc/space"
)

// Alloc returns a zero-initialized block of at least size bytes. The caller
// never frees it; the block lives until a collection finds it unreachable.
//
// If the heap budget or the host allocator refuses the request, Alloc runs
// one collection and retries once. If that also fails it returns an error
// wrapping ErrAllocationDenied; nothing else is attempted.
func (c *Collector) Alloc(size uint64) (space.Addr, error) {
	c.stats.AllocCalls++
	if err := c.init(); err != nil {
		c.stats.Denied++
		return 0, fmt.Errorf("%w: %w", ErrAllocationDenied, err)
	}

	addr, err := c.hostAlloc(size)
	if err != nil {
		c.tracef("GC Allocation of %d bytes refused (%v), collecting", size, err)
		c.stats.Retried++
		c.Collect()
		addr, err = c.hostAlloc(size)
	}
	if err != nil {
		c.stats.Denied++
		c.tracef("GC Allocation of %d bytes denied", size)
		return 0, fmt.Errorf("%w: %d bytes: %w", ErrAllocationDenied, size, err)
	}

	c.reg.Register(addr, size)
	c.allocated += size
	c.stats.Granted++
	return addr, nil
}

// hostAlloc enforces the heap budget, then asks the host allocator.
func (c *Collector) hostAlloc(size uint64) (space.Addr, error) {
	if !c.fits(size) {
		c.stats.BudgetMisses++
		return 0, fmt.Errorf("%w: %d live + %d requested > %d", ErrBudgetExceeded, c.allocated, size, c.cfg.HeapBudget)
	}
	return c.host.Alloc(size)
}
