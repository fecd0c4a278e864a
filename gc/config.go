package gc

import (
	"log/slog"
	"os"

	"github.com/joshuapare/simplegc/gc/alloc"
)

// ReclaimSentinel is written over every byte of a reclaimed block when
// Config.OverwriteOnReclaim is set.
const ReclaimSentinel byte = 0xab

// Config configures a Collector. The zero value is usable.
type Config struct {
	// HeapBudget caps the total size of live managed blocks, simulating a
	// small heap. 0 means unlimited.
	// Default: 0
	HeapBudget uint64

	// Verbose emits a trace record for every phase and every block the
	// collector finds or reclaims.
	// Default: false
	Verbose bool

	// OverwriteOnReclaim fills reclaimed blocks with ReclaimSentinel before
	// releasing them, so tests can observe what was freed.
	// Default: false
	OverwriteOnReclaim bool

	// Logger receives trace records. Nothing is logged unless Verbose is set,
	// except a root discovery failure.
	// Default: text records on stdout
	Logger *slog.Logger

	// OnRootFailure is called once if the root set cannot be discovered.
	// If it returns, the collector stays unusable: Collect does nothing and
	// Alloc is denied.
	// Default: log the error and exit the process with status 1
	OnRootFailure func(error)

	// SizeClasses is the free-list layout NewSimulation gives the host
	// allocator. New ignores it; its caller owns the host.
	// Default: alloc.BalancedClasses
	SizeClasses *alloc.SizeClasses
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	if c.OnRootFailure == nil {
		log := c.Logger
		c.OnRootFailure = func(err error) {
			log.Error("GC cannot establish the root set", "err", err)
			os.Exit(1)
		}
	}
	return c
}
