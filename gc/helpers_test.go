package gc

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/simplegc/gc/machine"
	"github.com/joshuapare/simplegc/gc/space"
)

// testMachineConfig is a small layout: 4 KiB data, 4 KiB stack, 64 KiB heap.
var testMachineConfig = machine.Config{
	DataSize:  4096,
	StackSize: 4096,
	HeapSize:  64 << 10,
}

// newTestSim builds a quiet simulation that fails the test on root discovery errors.
func newTestSim(t testing.TB, mcfg machine.Config, cfg Config) *Simulation {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.OnRootFailure == nil {
		cfg.OnRootFailure = func(err error) { t.Fatalf("root discovery: %v", err) }
	}
	sim, err := NewSimulation(mcfg, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sim.Close() })
	return sim
}

// mustAlloc allocates or fails the test.
func mustAlloc(t testing.TB, sim *Simulation, size uint64) space.Addr {
	t.Helper()
	p, err := sim.Alloc(size)
	require.NoError(t, err)
	return p
}

// firstByte reads the first payload byte of a block.
func firstByte(t testing.TB, sim *Simulation, p space.Addr) byte {
	t.Helper()
	b, err := sim.Machine.LoadByte(p)
	require.NoError(t, err)
	return b
}

// requireLive asserts p is (or is not) a live managed block.
func requireLive(t testing.TB, sim *Simulation, p space.Addr, live bool) {
	t.Helper()
	_, ok := sim.Lookup(p)
	require.Equal(t, live, ok, "block %s live", p)
	require.Equal(t, live, sim.Heap.IsAllocated(p), "block %s allocated in host heap", p)
}
