package verify

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/simplegc/gc"
	"github.com/joshuapare/simplegc/gc/alloc"
	"github.com/joshuapare/simplegc/gc/machine"
	"github.com/joshuapare/simplegc/gc/registry"
	"github.com/joshuapare/simplegc/gc/space"
)

func newSim(t *testing.T) *gc.Simulation {
	t.Helper()
	return newSimWith(t, nil, 0)
}

func newSimWith(t *testing.T, classes *alloc.SizeClasses, budget uint64) *gc.Simulation {
	t.Helper()
	sim, err := gc.NewSimulation(
		machine.Config{DataSize: 4096, StackSize: 4096, HeapSize: 64 << 10},
		gc.Config{
			HeapBudget:    budget,
			Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
			OnRootFailure: func(err error) { t.Fatal(err) },
			SizeClasses:   classes,
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sim.Close() })
	return sim
}

// TestAllInvariants_AcrossCollections runs a mixed workload and checks after every step.
func TestAllInvariants_AcrossCollections(t *testing.T) {
	sim := newSim(t)
	require.NoError(t, AllInvariants(sim, sim.Heap))

	for i := 0; i < 200; i++ {
		p, err := sim.Alloc(uint64(8 + i%97))
		require.NoError(t, err)
		if i%3 == 0 {
			require.NoError(t, sim.Machine.SetGlobal(i%50, uint64(p)))
		}
		if i%25 == 0 {
			sim.Collect()
		}
		require.NoError(t, AllInvariants(sim, sim.Heap), "step %d", i)
	}
}

func TestRegistry_Overlap(t *testing.T) {
	err := Registry([]registry.Block{
		{Addr: 0x1000, Size: 32},
		{Addr: 0x1010, Size: 8},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "overlaps block 0x1000")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, space.Addr(0x1010), verr.Addr)

	require.NoError(t, Registry([]registry.Block{
		{Addr: 0x1000, Size: 16},
		{Addr: 0x1010, Size: 8},
	}), "touching blocks do not overlap")
}

func TestAccounting_Mismatch(t *testing.T) {
	blocks := []registry.Block{{Addr: 0x1000, Size: 16}, {Addr: 0x2000, Size: 8}}
	require.NoError(t, Accounting(blocks, 24))

	err := Accounting(blocks, 32)
	require.Error(t, err)
	require.Contains(t, err.Error(), "registry holds 24 bytes, counter says 32")
}

func TestOwnership_ForeignBlock(t *testing.T) {
	sim := newSim(t)
	p, err := sim.Alloc(64)
	require.NoError(t, err)

	require.NoError(t, Ownership([]registry.Block{{Addr: p, Size: 64}}, sim.Heap))

	err = Ownership([]registry.Block{{Addr: p, Size: 65}}, sim.Heap)
	require.Error(t, err)
	require.Contains(t, err.Error(), "in a 72-byte cell")

	err = Ownership([]registry.Block{{Addr: p + 8, Size: 8}}, sim.Heap)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not allocated in the host heap")

	data, _, _ := sim.Machine.Layout()
	err = Ownership([]registry.Block{{Addr: data.Start, Size: 8}}, sim.Heap)
	require.Error(t, err)
	require.Contains(t, err.Error(), "outside heap segment")
}

func TestHostCells_CorruptHeader(t *testing.T) {
	sim := newSim(t)
	p, err := sim.Alloc(64)
	require.NoError(t, err)
	require.NoError(t, HostCells(sim.Heap))

	require.NoError(t, sim.Machine.Store(p-8, 3))
	err = HostCells(sim.Heap)
	require.Error(t, err)
	require.Contains(t, err.Error(), "HostCells")
}

// TestAllInvariants_SizeClassPresets churns past the budget under every
// free-list layout, keeping a rotating set of blocks alive.
func TestAllInvariants_SizeClassPresets(t *testing.T) {
	for _, name := range []string{"fine", "balanced", "coarse"} {
		t.Run(name, func(t *testing.T) {
			classes, err := alloc.SizeClassesByName(name)
			require.NoError(t, err)
			sim := newSimWith(t, &classes, 16<<10)
			require.Equal(t, name, sim.Heap.SizeClasses())

			for i := 0; i < 2000; i++ {
				p, err := sim.Alloc(uint64(8 + (i*37)%400))
				require.NoError(t, err, "allocation %d", i)
				if i%7 == 0 {
					require.NoError(t, sim.Machine.SetGlobal(i%16, uint64(p)))
				}
			}
			require.Positive(t, sim.Stats().Collections)
			require.NoError(t, AllInvariants(sim, sim.Heap))

			sim.Collect()
			require.NoError(t, AllInvariants(sim, sim.Heap))
			require.LessOrEqual(t, sim.Live(), 16)
		})
	}
}

func TestOrphans_UnregisteredCell(t *testing.T) {
	sim := newSim(t)
	_, err := sim.Alloc(32)
	require.NoError(t, err)
	require.NoError(t, Orphans(sim.Blocks(), sim.Heap))

	stray, err := sim.Heap.Alloc(16)
	require.NoError(t, err)
	err = Orphans(sim.Blocks(), sim.Heap)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Orphans at "+stray.String())
	require.ErrorContains(t, AllInvariants(sim, sim.Heap), "no registered block")
}
