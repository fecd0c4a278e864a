package gc

import (
	"errors"
	"fmt"

	"github.com/joshuapare/simplegc/gc/alloc"
	"github.com/joshuapare/simplegc/gc/machine"
)

// Simulation bundles a collector with the simulated machine it collects for
// and the host allocator behind it.
type Simulation struct {
	*Collector

	Machine *machine.Machine
	Heap    *alloc.FastAllocator
}

// NewSimulation lays out a machine, puts a FastAllocator with
// cfg.SizeClasses over its heap segment and returns a collector wired to both.
func NewSimulation(mcfg machine.Config, cfg Config) (*Simulation, error) {
	m, err := machine.New(mcfg)
	if err != nil {
		return nil, err
	}
	heap := m.Heap()
	fa, err := alloc.NewFast(m.Space(), heap.Start, heap.Len, cfg.SizeClasses)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("gc: heap allocator: %w", err), m.Close())
	}
	return &Simulation{
		Collector: New(m.Space(), fa, m, cfg),
		Machine:   m,
		Heap:      fa,
	}, nil
}

// Close releases the simulated address space.
func (s *Simulation) Close() error {
	return s.Machine.Close()
}
