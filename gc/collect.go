package gc

import (
	"time"

	"github.com/joshuapare/simplegc/gc/registry"
	"github.com/joshuapare/simplegc/gc/space"
	"github.com/joshuapare/simplegc/internal/word"
)

// Collect runs one stop-the-world collection.
//
// Mark: every word-aligned word of the register spill, the in-use stack and
// the data segment is a candidate address. A candidate equal to the base of a
// live block marks that block, and the block's own words become candidates
// in turn. Sweep: every live block left unmarked is released to the host
// allocator. Install: the mark set replaces the registry.
//
// Only exact base addresses count; a value pointing into the middle of a
// block does not keep it alive. Values that merely look like a base address
// keep their block alive anyway.
func (c *Collector) Collect() {
	if err := c.init(); err != nil {
		return
	}
	start := time.Now()
	cycle := Cycle{Seq: c.stats.Collections + 1}

	c.tracef("GC START")

	m := &marker{c: c, marked: registry.New()}

	c.tracef("GC Marking registers")
	regs := c.roots.Registers()
	for i, v := range regs {
		m.candidate(v, location{reg: c.roots.RegisterName(i)})
	}
	cycle.RootWords += len(regs)
	m.scanned += uint64(len(regs)) * space.WordSize

	c.tracef("GC Marking stack")
	stack, err := c.roots.ActiveStack()
	if err != nil {
		c.tracef("GC Stack pointer outside stack (%v), scanning all of %s", err, stack)
	}
	cycle.RootWords += m.scanRegion(stack)

	c.tracef("GC Marking data segment")
	cycle.RootWords += m.scanRegion(c.roots.Data())

	m.drain()

	c.tracef("GC Sweeping garbage")
	for addr, size := range c.reg.All() {
		if m.marked.Contains(addr) {
			continue
		}
		c.tracef("GC Sweeping %s (%d bytes)", addr, size)
		if c.cfg.OverwriteOnReclaim {
			if err := c.mem.Fill(addr, size, ReclaimSentinel); err != nil {
				c.tracef("GC Cannot overwrite %s: %v", addr, err)
			}
		}
		if err := c.host.Free(addr); err != nil {
			c.tracef("GC Host refused to release %s: %v", addr, err)
		}
		cycle.SweptBlocks++
		cycle.SweptBytes += size
	}
	c.allocated -= cycle.SweptBytes
	c.tracef("GC Swept %d bytes", cycle.SweptBytes)

	cycle.MarkedBlocks = m.marked.Len()
	cycle.MarkedBytes = m.marked.Bytes()
	cycle.ScannedBytes = m.scanned
	c.reg.Replace(m.marked)

	cycle.Duration = time.Since(start)
	c.lastCycle = cycle
	c.stats.Collections++
	c.stats.TotalSwept += cycle.SweptBytes

	c.tracef("GC DONE")
}

// location is where a candidate word was read from: a named register, or
// a memory address when reg is empty.
type location struct {
	reg  string
	addr space.Addr
}

func (l location) String() string {
	if l.reg != "" {
		return l.reg
	}
	return l.addr.String()
}

// marker computes the transitive closure of blocks reachable from the roots.
// Pending blocks sit on an explicit worklist instead of the call stack, so
// deep reference chains cost heap memory bounded by the number of live blocks.
type marker struct {
	c       *Collector
	marked  *registry.Registry
	work    []space.Addr
	scanned uint64
}

// candidate marks the block based at v, if there is one and it is unmarked.
func (m *marker) candidate(v uint64, at location) {
	addr := space.Addr(v)
	size, ok := m.c.reg.Lookup(addr)
	if !ok {
		return
	}
	m.c.tracef("GC Valid block at %s (@%s) (%d bytes)", addr, at, size)
	if m.marked.Contains(addr) {
		return
	}
	m.c.tracef("GC Valid, unmarked block at %s (@%s) (%d bytes)", addr, at, size)
	m.marked.Register(addr, size)
	m.work = append(m.work, addr)
}

// scanRegion treats every word-aligned word of r as a candidate and returns
// how many words it read. Misaligned leading or trailing bytes are skipped.
func (m *marker) scanRegion(r space.Region) int {
	start := space.Addr(word.Align(uint64(r.Start)))
	end := r.End()
	if start >= end {
		return 0
	}
	n := word.AlignDown(uint64(end - start))
	b, err := m.c.mem.Bytes(start, n)
	if err != nil {
		m.c.tracef("GC Skipping unreadable range %s: %v", r, err)
		return 0
	}
	m.scanned += n
	words := 0
	word.Each(b, func(off int, v uint64) {
		words++
		m.candidate(v, location{addr: start.Add(uint64(off))})
	})
	return words
}

// drain scans marked blocks until no block is pending.
func (m *marker) drain() {
	for len(m.work) > 0 {
		addr := m.work[len(m.work)-1]
		m.work = m.work[:len(m.work)-1]
		size, _ := m.marked.Lookup(addr)
		m.scanRegion(space.Region{Start: addr, Len: size})
	}
}
