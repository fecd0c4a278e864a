// Package gc implements a conservative mark-and-sweep collector: a
// replacement for manual allocation that periodically frees blocks no longer
// reachable from the program's registers, stack, or global data, without
// being told which words are pointers.
//
// # Overview
//
// The collector is built from four parts:
//
//   - rootset.Provider: finds the stack and data regions once and spills
//     the registers on every collection
//   - registry.Registry: maps every live block's base address to its size
//   - Collector.Collect: marks from the roots, sweeps the rest, installs the
//     mark set as the new registry
//   - Collector.Alloc: enforces the heap budget, collects and retries once
//     on pressure, and registers every granted block
//
// Host facilities sit behind two interfaces: HostAllocator for raw memory
// and rootset.Platform for root discovery. NewSimulation wires both to a
// simulated machine (gc/machine) over an mmap-backed address space.
//
// # Usage Example
//
//	sim, err := gc.NewSimulation(machine.DefaultConfig(), gc.Config{HeapBudget: 8 << 20})
//	if err != nil {
//	    return err
//	}
//	defer sim.Close()
//
//	p, err := sim.Alloc(1024)
//	if errors.Is(err, gc.ErrAllocationDenied) {
//	    // no memory right now
//	}
//	_ = sim.Machine.SetGlobal(0, uint64(p)) // p stays alive while the global holds it
//
// # Limitations
//
// The collector is conservative and has no type information:
//
//   - Only 8-byte-aligned words are read; misaligned copies of an address
//     are invisible.
//   - Only a block's exact base address keeps it alive. A pointer into the
//     middle of a block is not recognized, so a block reachable only through
//     an interior pointer is reclaimed.
//   - Any word equal to a live base address keeps that block alive, pointer
//     or not. Garbage may be retained; live data is never freed.
//   - One mutator thread. Other threads' stacks and registers are not roots.
//
// # Thread Safety
//
// Collector instances are not thread-safe.
package gc
