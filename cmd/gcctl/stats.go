package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/simplegc/gc"
	"github.com/joshuapare/simplegc/gc/alloc"
	"github.com/joshuapare/simplegc/gc/space"
	"github.com/joshuapare/simplegc/gc/verify"
)

var (
	statsNodes    int
	statsNodeSize uint64
	statsGarbage  int
	statsBlocks   bool
)

func init() {
	cmd := newStatsCmd()
	cmd.Flags().IntVar(&statsNodes, "nodes", 1000, "Length of the linked list rooted in a global")
	cmd.Flags().Uint64Var(&statsNodeSize, "node-size", 32, "Size of each list node in bytes")
	cmd.Flags().IntVar(&statsGarbage, "garbage", 1000, "Number of unreferenced blocks to allocate")
	cmd.Flags().BoolVar(&statsBlocks, "blocks", false, "List every live block after the collection")
	rootCmd.AddCommand(cmd)
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Collect once over a known heap and show detailed statistics",
		Long: `The stats command builds a linked list rooted in a global slot,
interleaves it with unreferenced blocks, runs one collection and reports
what the collector marked and swept alongside the host allocator's
counters and a heap consistency check.

Example:
  gcctl stats
  gcctl stats --nodes 50000 --garbage 0
  gcctl stats --nodes 4 --garbage 4 --blocks --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
	return cmd
}

// HeapStats is what the stats command reports.
type HeapStats struct {
	Layout struct {
		Data  string `json:"data"`
		Stack string `json:"stack"`
		Heap  string `json:"heap"`
	} `json:"layout"`
	SizeClasses string      `json:"size_classes"`
	Cycle       gc.Cycle    `json:"cycle"`
	Live        int         `json:"live"`
	Allocated   uint64      `json:"allocated"`
	Committed   uint64      `json:"committed"`
	FreeBytes   uint64      `json:"free_bytes"`
	Host        alloc.Stats `json:"host"`
	Blocks      []string    `json:"blocks,omitempty"`
	Invariants  string      `json:"invariants"`
}

// buildHeap allocates the list and the garbage, alternating between them.
func buildHeap(sim *gc.Simulation) error {
	if statsNodeSize < space.WordSize {
		return fmt.Errorf("node size %d cannot hold a pointer", statsNodeSize)
	}
	var tail space.Addr
	for i := 0; i < max(statsNodes, statsGarbage); i++ {
		if i < statsNodes {
			p, err := sim.Alloc(statsNodeSize)
			if err != nil {
				return err
			}
			if tail == 0 {
				err = sim.Machine.SetGlobal(0, uint64(p))
			} else {
				err = sim.Machine.Store(tail, uint64(p))
			}
			if err != nil {
				return err
			}
			tail = p
		}
		if i < statsGarbage {
			if _, err := sim.Alloc(statsNodeSize); err != nil {
				return err
			}
		}
	}
	return nil
}

func runStats() error {
	if statsNodes < 0 || statsGarbage < 0 {
		return fmt.Errorf("node and garbage counts must not be negative")
	}
	sim, err := newSimulation(0)
	if err != nil {
		return err
	}
	defer sim.Close()

	if err := buildHeap(sim); err != nil {
		return fmt.Errorf("failed to build heap: %w", err)
	}
	printVerbose("Built %s list nodes and %s garbage blocks\n", formatNumber(statsNodes), formatNumber(statsGarbage))
	sim.Collect()

	var st HeapStats
	data, stack, heap := sim.Machine.Layout()
	st.Layout.Data = data.String()
	st.Layout.Stack = stack.String()
	st.Layout.Heap = heap.String()
	st.SizeClasses = sim.Heap.SizeClasses()
	st.Cycle = sim.LastCycle()
	st.Live = sim.Live()
	st.Allocated = sim.Allocated()
	st.Committed = sim.Heap.Committed().Len
	st.FreeBytes = sim.Heap.FreeBytes()
	st.Host = sim.Heap.Stats()
	if statsBlocks {
		for _, b := range sim.Blocks() {
			st.Blocks = append(st.Blocks, fmt.Sprintf("%s %d", b.Addr, b.Size))
		}
	}
	st.Invariants = "ok"
	verr := verify.AllInvariants(sim, sim.Heap)
	if verr != nil {
		st.Invariants = verr.Error()
	}

	if jsonOut {
		if err := printJSON(st); err != nil {
			return err
		}
		return verr
	}

	printInfo("\nAddress Space:\n")
	printInfo("  Data:  %s\n", st.Layout.Data)
	printInfo("  Stack: %s\n", st.Layout.Stack)
	printInfo("  Heap:  %s\n\n", st.Layout.Heap)

	printInfo("Collection #%d:\n", st.Cycle.Seq)
	printInfo("  Root words:    %s\n", formatNumber(st.Cycle.RootWords))
	printInfo("  Scanned:       %s\n", formatBytes(st.Cycle.ScannedBytes))
	printInfo("  Marked:        %s blocks (%s)\n", formatNumber(st.Cycle.MarkedBlocks), formatBytes(st.Cycle.MarkedBytes))
	printInfo("  Swept:         %s blocks (%s)\n", formatNumber(st.Cycle.SweptBlocks), formatBytes(st.Cycle.SweptBytes))
	printInfo("  Duration:      %s\n\n", st.Cycle.Duration.Round(time.Microsecond))

	printInfo("Host Heap (%s):\n", st.SizeClasses)
	printInfo("  Committed:     %s\n", formatBytes(st.Committed))
	printInfo("  Free:          %s\n", formatBytes(st.FreeBytes))
	printInfo("  Live blocks:   %s (%s)\n", formatNumber(st.Live), formatBytes(st.Allocated))
	printInfo("  Alloc calls:   %s (%s from free lists, %s grew)\n",
		formatNumber(st.Host.AllocCalls), formatNumber(st.Host.AllocFastPath), formatNumber(st.Host.AllocSlowPath))
	printInfo("  Free calls:    %s\n", formatNumber(st.Host.FreeCalls))
	printInfo("  Coalesces:     %s forward, %s backward\n",
		formatNumber(st.Host.CoalesceForward), formatNumber(st.Host.CoalesceBackward))
	printInfo("  Invariants:    %s\n", st.Invariants)

	if len(st.Blocks) > 0 {
		printInfo("\nLive Blocks:\n")
		for _, b := range st.Blocks {
			printInfo("  %s\n", b)
		}
	}
	return verr
}
