package gc

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/simplegc/gc/registry"
	"github.com/joshuapare/simplegc/gc/rootset"
	"github.com/joshuapare/simplegc/gc/space"
	"github.com/joshuapare/simplegc/internal/word"
)

// Memory gives the collector read/write access to managed blocks and root regions.
// *space.Space satisfies it.
type Memory interface {
	Bytes(a space.Addr, n uint64) ([]byte, error)
	Fill(a space.Addr, n uint64, v byte) error
}

// HostAllocator is the raw-memory allocator underneath the collector.
// Alloc must return zeroed memory; Free takes back a block Alloc returned.
// *alloc.FastAllocator satisfies it.
type HostAllocator interface {
	Alloc(n uint64) (space.Addr, error)
	Free(a space.Addr) error
}

// Cycle summarizes one collection.
type Cycle struct {
	Seq          int           // 1 for the first collection
	RootWords    int           // candidate words read from registers, stack and data
	ScannedBytes uint64        // bytes read, roots and marked blocks together
	MarkedBlocks int           // blocks that survived
	MarkedBytes  uint64        // their total size
	SweptBlocks  int           // blocks reclaimed
	SweptBytes   uint64        // their total size
	Duration     time.Duration // wall time of the whole cycle
}

// Stats counts front-end activity across the collector's lifetime.
type Stats struct {
	AllocCalls   int    // Alloc() calls
	Granted      int    // successful allocations
	Retried      int    // allocations that collected and retried
	Denied       int    // allocations that returned ErrAllocationDenied
	Collections  int    // completed collections
	TotalSwept   uint64 // bytes reclaimed by all collections
	BudgetMisses int    // host attempts refused by the heap budget
}

// Collector is a conservative, stop-the-world mark-and-sweep collector and
// the allocation front-end that feeds it.
//
// A Collector is not safe for concurrent use; it assumes one mutator thread,
// the one whose registers and stack the platform reports.
type Collector struct {
	mem   Memory
	host  HostAllocator
	roots *rootset.Provider
	reg   *registry.Registry

	allocated uint64

	cfg     Config
	log     *slog.Logger
	printer *message.Printer

	ready     bool
	failed    bool
	rootsErr  error
	lastCycle Cycle
	stats     Stats
}

// New returns a collector that allocates from host, reads and writes blocks
// through mem, and finds its roots through platform. Root discovery happens
// lazily on the first Alloc or Collect.
func New(mem Memory, host HostAllocator, platform rootset.Platform, cfg Config) *Collector {
	cfg = cfg.withDefaults()
	return &Collector{
		mem:     mem,
		host:    host,
		roots:   rootset.New(platform),
		reg:     registry.New(),
		cfg:     cfg,
		log:     cfg.Logger,
		printer: message.NewPrinter(language.English),
	}
}

// SetHeapBudget sets the heap budget in bytes; 0 means unlimited.
// It takes effect with the next allocation.
func (c *Collector) SetHeapBudget(bytes uint64) { c.cfg.HeapBudget = bytes }

// SetVerboseTracing turns phase and block tracing on or off.
func (c *Collector) SetVerboseTracing(enabled bool) { c.cfg.Verbose = enabled }

// SetOverwriteOnReclaim turns sentinel overwriting of reclaimed blocks on or off.
func (c *Collector) SetOverwriteOnReclaim(enabled bool) { c.cfg.OverwriteOnReclaim = enabled }

// Config returns the current configuration.
func (c *Collector) Config() Config { return c.cfg }

// Allocated returns the total size of live managed blocks.
func (c *Collector) Allocated() uint64 { return c.allocated }

// Live returns the number of live managed blocks.
func (c *Collector) Live() int { return c.reg.Len() }

// Lookup returns the size of the live block based exactly at addr.
func (c *Collector) Lookup(addr space.Addr) (uint64, bool) { return c.reg.Lookup(addr) }

// Blocks returns every live block sorted by address.
func (c *Collector) Blocks() []registry.Block { return c.reg.Blocks() }

// Generation returns the number of registry generations installed by collections.
func (c *Collector) Generation() uint64 { return c.reg.Generation() }

// LastCycle returns the summary of the most recent collection.
func (c *Collector) LastCycle() Cycle { return c.lastCycle }

// Stats returns the lifetime counters.
func (c *Collector) Stats() Stats { return c.stats }

// Roots returns the discovered stack and data regions. It triggers discovery
// if it has not happened yet.
func (c *Collector) Roots() (stack, data space.Region, err error) {
	if err := c.init(); err != nil {
		return space.Region{}, space.Region{}, err
	}
	return c.roots.Stack(), c.roots.Data(), nil
}

// init discovers the root set on first use. A failure is handed to
// Config.OnRootFailure once and then remembered.
func (c *Collector) init() error {
	if c.ready {
		return nil
	}
	if c.failed {
		return c.rootsErr
	}
	if err := c.roots.Init(); err != nil {
		c.failed = true
		c.rootsErr = err
		c.cfg.OnRootFailure(err)
		return err
	}
	c.ready = true
	stack, data := c.roots.Stack(), c.roots.Data()
	c.tracef("GC Stack: %s %d", stack.Start, stack.Len)
	c.tracef("GC Data:  %s %d", data.Start, data.Len)
	return nil
}

// tracef emits one human-readable trace record when verbose tracing is on.
func (c *Collector) tracef(format string, args ...any) {
	if !c.cfg.Verbose {
		return
	}
	c.log.Info(c.printer.Sprintf(format, args...))
}

// fits reports whether size more bytes stay within the heap budget.
func (c *Collector) fits(size uint64) bool {
	if c.cfg.HeapBudget == 0 {
		return true
	}
	total, ok := word.AddOverflowSafe(c.allocated, size)
	return ok && total <= c.cfg.HeapBudget
}

func (c *Collector) String() string {
	return fmt.Sprintf("gc: %d blocks, %d bytes live", c.reg.Len(), c.allocated)
}
