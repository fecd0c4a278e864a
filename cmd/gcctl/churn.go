package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/simplegc/gc"
	"github.com/joshuapare/simplegc/gc/verify"
)

var (
	churnBudget uint64
	churnSize   uint64
	churnCount  uint64
	churnKeep   uint64
	churnRing   int
)

func init() {
	cmd := newChurnCmd()
	cmd.Flags().Uint64Var(&churnBudget, "budget", 8<<20, "Heap budget in bytes")
	cmd.Flags().Uint64Var(&churnSize, "size", 1024, "Size of each block in bytes")
	cmd.Flags().Uint64Var(&churnCount, "count", 0, "Number of allocations (0: budget/size + 10240)")
	cmd.Flags().Uint64Var(&churnKeep, "keep", 0, "Keep every Nth block reachable from a global (0: keep none)")
	cmd.Flags().IntVar(&churnRing, "ring", 64, "Number of global slots kept blocks rotate through")
	rootCmd.AddCommand(cmd)
}

func newChurnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "churn",
		Short: "Allocate far past the heap budget",
		Long: `The churn command allocates blocks in a loop until it has asked for
well over the heap budget, relying on the collector to reclaim garbage
whenever the budget or the host heap runs out. With --keep, every Nth block
is stored in a ring of global slots, so a bounded working set stays live.

Example:
  gcctl churn
  gcctl churn --budget 1048576 --size 256 --keep 10
  gcctl churn --count 100000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChurn()
		},
	}
	return cmd
}

// ChurnResult summarizes a churn run.
type ChurnResult struct {
	Requested  uint64        `json:"requested"`
	Size       uint64        `json:"size"`
	Budget     uint64        `json:"budget"`
	Live       int           `json:"live"`
	Allocated  uint64        `json:"allocated"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Collector  gc.Stats      `json:"collector"`
	LastCycle  gc.Cycle      `json:"last_cycle"`
	Invariants string        `json:"invariants"`
}

func runChurn() error {
	if churnSize == 0 {
		return fmt.Errorf("block size must be positive")
	}
	if churnRing <= 0 {
		return fmt.Errorf("ring must hold at least one slot")
	}
	count := churnCount
	if count == 0 {
		count = churnBudget/churnSize + 10*1024
	}

	sim, err := newSimulation(churnBudget)
	if err != nil {
		return err
	}
	defer sim.Close()

	printVerbose("Churning %s blocks of %s\n", formatNumber(count), formatBytes(churnSize))

	start := time.Now()
	for i := uint64(0); i < count; i++ {
		p, err := sim.Alloc(churnSize)
		if err != nil {
			return fmt.Errorf("allocation %s of %s: %w", formatNumber(i+1), formatNumber(count), err)
		}
		if churnKeep > 0 && i%churnKeep == 0 {
			slot := int((i / churnKeep) % uint64(churnRing))
			if err := sim.Machine.SetGlobal(slot, uint64(p)); err != nil {
				return err
			}
		}
	}

	res := ChurnResult{
		Requested:  count,
		Size:       churnSize,
		Budget:     churnBudget,
		Live:       sim.Live(),
		Allocated:  sim.Allocated(),
		Elapsed:    time.Since(start),
		Collector:  sim.Stats(),
		LastCycle:  sim.LastCycle(),
		Invariants: "ok",
	}
	verr := verify.AllInvariants(sim, sim.Heap)
	if verr != nil {
		res.Invariants = verr.Error()
	}

	if jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
		return verr
	}

	printInfo("\nChurn Results:\n")
	printInfo("  Requested:    %s x %s (%s)\n", formatNumber(count), formatBytes(churnSize), formatBytes(count*churnSize))
	printInfo("  Budget:       %s\n", formatBytes(churnBudget))
	printInfo("  Granted:      %s\n", formatNumber(res.Collector.Granted))
	printInfo("  Retried:      %s\n", formatNumber(res.Collector.Retried))
	printInfo("  Denied:       %s\n", formatNumber(res.Collector.Denied))
	printInfo("  Collections:  %s\n", formatNumber(res.Collector.Collections))
	printInfo("  Reclaimed:    %s\n", formatBytes(res.Collector.TotalSwept))
	printInfo("  Live blocks:  %s (%s)\n", formatNumber(res.Live), formatBytes(res.Allocated))
	printInfo("  Elapsed:      %s\n", res.Elapsed.Round(time.Microsecond))
	printInfo("  Invariants:   %s\n", res.Invariants)
	return verr
}
