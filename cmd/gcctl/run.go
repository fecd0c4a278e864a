package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/simplegc/gc"
	"github.com/joshuapare/simplegc/gc/space"
	"github.com/joshuapare/simplegc/gc/verify"
)

var (
	runBudget    uint64
	runBlockSize uint64
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().Uint64Var(&runBudget, "budget", 8<<20, "Heap budget in bytes")
	cmd.Flags().Uint64Var(&runBlockSize, "block-size", 1024, "Size of the blocks the scenarios allocate")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the collector scenario suite",
		Long: `The run command plays a fixed sequence of mutator scenarios against a
fresh collector with reclaimed-block overwriting turned on, and counts
passed and failed checks:

  - a block referenced from a live stack frame survives a collection
  - once the frame is gone the block is reclaimed and reads back 0xab
  - a block referenced from a global survives
  - after the global is scrambled the block is reclaimed
  - a two-node list rooted on the stack survives as a whole
  - allocating far more than the budget succeeds by collecting

Example:
  gcctl run
  gcctl run --trace
  gcctl run --budget 1048576 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite()
		},
	}
	return cmd
}

// SuiteResult is the outcome of one suite run.
type SuiteResult struct {
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
	Stats    gc.Stats `json:"stats"`
}

// suite holds the collector under test and the check counters.
type suite struct {
	sim *gc.Simulation
	res SuiteResult

	// scrambled is the first block's address plus one, a handle the
	// collector cannot recognize.
	scrambled space.Addr
}

func (s *suite) check(ok bool, format string, args ...any) {
	if ok {
		s.res.Passed++
		return
	}
	msg := fmt.Sprintf(format, args...)
	s.res.Failed++
	s.res.Failures = append(s.res.Failures, msg)
	if !jsonOut {
		fmt.Fprintln(os.Stderr, msg)
	}
}

// firstByte reads the first byte of a block. An unreadable block counts as
// a failed check and reads as 0xff.
func (s *suite) firstByte(p space.Addr) byte {
	b, err := s.sim.Machine.LoadByte(p)
	if err != nil {
		s.check(false, "Block %s unreadable: %v", p, err)
		return 0xff
	}
	return b
}

func (s *suite) alloc(size uint64) (space.Addr, error) {
	p, err := s.sim.Alloc(size)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %d bytes: %w", size, err)
	}
	return p, nil
}

func (s *suite) invariants(scenario string) {
	err := verify.AllInvariants(s.sim, s.sim.Heap)
	s.check(err == nil, "Heap invariants broken after %s: %v", scenario, err)
}

func (s *suite) notCollectingLocallyReferenced() error {
	return s.sim.Machine.Call(1, func(frame space.Addr) error {
		p, err := s.alloc(runBlockSize)
		if err != nil {
			return err
		}
		if err := s.sim.Machine.Store(frame, uint64(p)); err != nil {
			return err
		}
		printVerbose("Allocated %s (@%s)\n", p, frame)
		s.sim.Collect()
		s.check(s.firstByte(p) == 0, "Block %s was unexpectedly collected", p)
		s.scrambled = p + 1
		return nil
	})
}

func (s *suite) collectsLocallyUnreferenced() error {
	return s.sim.Machine.Call(1, func(frame space.Addr) error {
		p, err := s.alloc(runBlockSize)
		if err != nil {
			return err
		}
		if err := s.sim.Machine.Store(frame, uint64(p)); err != nil {
			return err
		}
		printVerbose("Allocated %s (@%s)\n", p, frame)
		s.sim.Collect()
		old := s.scrambled - 1
		s.check(s.firstByte(old) == gc.ReclaimSentinel, "Block %s unexpectedly NOT collected", old)
		s.check(s.firstByte(p) == 0, "Block %s was unexpectedly collected", p)
		return nil
	})
}

func (s *suite) notCollectingGloballyReferenced() error {
	p, err := s.alloc(runBlockSize)
	if err != nil {
		return err
	}
	if err := s.sim.Machine.SetGlobal(0, uint64(p)); err != nil {
		return err
	}
	slot, _ := s.sim.Machine.GlobalAddr(0)
	printVerbose("Allocated %s (@%s)\n", p, slot)
	s.sim.Collect()
	s.check(s.firstByte(p) == 0, "Block %s was unexpectedly collected", p)
	return s.sim.Machine.SetGlobal(0, uint64(p)+1)
}

func (s *suite) collectsGloballyUnreferenced() error {
	s.sim.Collect()
	v, err := s.sim.Machine.Global(0)
	if err != nil {
		return err
	}
	old := space.Addr(v - 1)
	s.check(s.firstByte(old) == gc.ReclaimSentinel, "Block %s unexpectedly NOT collected", old)
	return nil
}

func (s *suite) linkedList() error {
	return s.sim.Machine.Call(1, func(frame space.Addr) error {
		head, err := s.alloc(space.WordSize)
		if err != nil {
			return err
		}
		if err := s.sim.Machine.Store(frame, uint64(head)); err != nil {
			return err
		}
		next, err := s.alloc(space.WordSize)
		if err != nil {
			return err
		}
		if err := s.sim.Machine.Store(head, uint64(next)); err != nil {
			return err
		}
		s.sim.Collect()
		s.check(s.firstByte(head) != gc.ReclaimSentinel, "Block %s unexpectedly collected", head)
		s.check(s.firstByte(next) != gc.ReclaimSentinel, "Block %s unexpectedly collected", next)
		return nil
	})
}

func (s *suite) churnBeyondHeap() error {
	n := runBudget/runBlockSize + 10*1024
	for i := uint64(0); i < n; i++ {
		if _, err := s.alloc(runBlockSize); err != nil {
			s.check(false, "Churn stopped after %s of %s allocations: %v", formatNumber(i), formatNumber(n), err)
			return nil
		}
	}
	s.check(true, "")
	return nil
}

// clearStack zeroes the dead stack below the stack pointer so stale handles
// from returned frames do not keep blocks alive.
func (s *suite) clearStack() error {
	return s.sim.Machine.ClearStack(1024)
}

func runSuite() error {
	if runBlockSize == 0 || runBlockSize > runBudget {
		return fmt.Errorf("block size %d must be between 1 and the budget %d", runBlockSize, runBudget)
	}
	sim, err := newSimulation(runBudget)
	if err != nil {
		return err
	}
	defer sim.Close()

	s := &suite{sim: sim}
	printVerbose("Simulation: %s\n", sim.Collector)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"locally referenced block", s.notCollectingLocallyReferenced},
		{"locally unreferenced block", s.collectsLocallyUnreferenced},
		{"globally referenced block", s.notCollectingGloballyReferenced},
		{"globally unreferenced block", s.collectsGloballyUnreferenced},
		{"linked list", s.linkedList},
		{"churn beyond heap", s.churnBeyondHeap},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		if err := s.clearStack(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		s.invariants(step.name)
		printVerbose("%s: %s blocks live\n", step.name, formatNumber(sim.Live()))
	}

	s.res.Stats = sim.Stats()
	if jsonOut {
		if err := printJSON(s.res); err != nil {
			return err
		}
	} else {
		printInfo("%d passed, %d failed\n", s.res.Passed, s.res.Failed)
	}
	if s.res.Failed > 0 {
		return errors.New("scenario suite failed")
	}
	return nil
}
