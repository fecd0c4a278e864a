// Package machine simulates the single mutator thread a collector runs
// against: a register file, a downward-growing stack, a relocated
// global-data segment and a heap segment, all laid out in one space.Space.
//
// Machine implements rootset.Platform, so it is the host layer the
// collector's root discovery talks to. Tests and the gcctl harness drive it
// as the "program": they keep handles in registers, stack slots, globals, or
// inside other blocks, and drop them again.
package machine

import (
	"fmt"

	"github.com/joshuapare/simplegc/gc/rootset"
	"github.com/joshuapare/simplegc/gc/space"
	"github.com/joshuapare/simplegc/internal/word"
)

// NumRegisters is the size of the general-purpose register file.
const NumRegisters = 14

// RegisterNames are the names used in traces, in register-file order.
var RegisterNames = [NumRegisters]string{
	"rax", "rbx", "rcx", "rdx", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

// DataSegmentName is the name the data segment is reported under.
const DataSegmentName = "__DATA"

// Config describes the address-space layout.
type Config struct {
	// Base is the address the image is loaded at. It must be page aligned.
	// Default: 0x100000
	Base space.Addr

	// ImageVMAddr is the link-time address of the data segment. The load
	// slide is Base - ImageVMAddr.
	// Default: 0x1000
	ImageVMAddr space.Addr

	// DataSize is the size of the global-data segment in bytes.
	// Default: 64 KiB
	DataSize uint64

	// StackSize is the size of the stack in bytes.
	// Default: 64 KiB
	StackSize uint64

	// HeapSize is the size of the heap segment in bytes.
	// Default: 16 MiB
	HeapSize uint64
}

// DefaultConfig returns the default layout.
func DefaultConfig() Config {
	return Config{
		Base:        0x100000,
		ImageVMAddr: 0x1000,
		DataSize:    64 << 10,
		StackSize:   64 << 10,
		HeapSize:    16 << 20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Base == 0 {
		c.Base = d.Base
	}
	if c.ImageVMAddr == 0 {
		c.ImageVMAddr = d.ImageVMAddr
	}
	if c.DataSize == 0 {
		c.DataSize = d.DataSize
	}
	if c.StackSize == 0 {
		c.StackSize = d.StackSize
	}
	if c.HeapSize == 0 {
		c.HeapSize = d.HeapSize
	}
	return c
}

// Machine is the simulated mutator. It is not safe for concurrent use.
type Machine struct {
	space *space.Space

	regs [NumRegisters]uint64
	sp   space.Addr

	data  space.Region
	stack space.Region
	heap  space.Region

	vmaddr space.Addr
	slide  int64
}

// New maps the address space and lays out data, stack and heap in that order.
func New(cfg Config) (*Machine, error) {
	cfg = cfg.withDefaults()
	for _, n := range []uint64{cfg.DataSize, cfg.StackSize, cfg.HeapSize} {
		if !word.Aligned(n) {
			return nil, fmt.Errorf("%w: segment size %d not word aligned", ErrLayout, n)
		}
	}
	total := cfg.DataSize + cfg.StackSize + cfg.HeapSize
	sp, err := space.New(cfg.Base, int(total))
	if err != nil {
		return nil, fmt.Errorf("machine: map %d bytes: %w", total, err)
	}

	m := &Machine{
		space:  sp,
		data:   space.Region{Start: cfg.Base, Len: cfg.DataSize},
		stack:  space.Region{Start: cfg.Base.Add(cfg.DataSize), Len: cfg.StackSize},
		heap:   space.Region{Start: cfg.Base.Add(cfg.DataSize + cfg.StackSize), Len: cfg.HeapSize},
		vmaddr: cfg.ImageVMAddr,
		slide:  int64(cfg.Base) - int64(cfg.ImageVMAddr),
	}
	m.sp = m.stack.End()
	return m, nil
}

// Close unmaps the address space.
func (m *Machine) Close() error {
	return m.space.Close()
}

// Space returns the address space the machine lives in.
func (m *Machine) Space() *space.Space { return m.space }

// Heap returns the heap segment.
func (m *Machine) Heap() space.Region { return m.heap }

// Layout returns the data, stack and heap segments.
func (m *Machine) Layout() (data, stack, heap space.Region) {
	return m.data, m.stack, m.heap
}

// StackPointer implements rootset.Platform.
func (m *Machine) StackPointer() space.Addr { return m.sp }

// StackRegion implements rootset.Platform. Only addresses inside the stack
// (or exactly at its top, for an empty stack) have a stack region.
func (m *Machine) StackRegion(sp space.Addr) (space.Region, error) {
	if m.stack.Contains(sp) || sp == m.stack.End() {
		return m.stack, nil
	}
	return space.Region{}, fmt.Errorf("%w: %s", ErrNoRegion, sp)
}

// DataSegment implements rootset.Platform. It reports the link-time address.
func (m *Machine) DataSegment() (rootset.Segment, error) {
	return rootset.Segment{Name: DataSegmentName, VMAddr: m.vmaddr, Size: m.data.Len}, nil
}

// ImageSlide implements rootset.Platform.
func (m *Machine) ImageSlide() int64 { return m.slide }

// NumRegisters implements rootset.Platform.
func (m *Machine) NumRegisters() int { return NumRegisters }

// CaptureRegisters implements rootset.Platform.
func (m *Machine) CaptureRegisters(buf []uint64) {
	copy(buf, m.regs[:])
}

// RegisterName implements rootset.Platform.
func (m *Machine) RegisterName(i int) string {
	if i < 0 || i >= NumRegisters {
		return fmt.Sprintf("reg%d", i)
	}
	return RegisterNames[i]
}

var _ rootset.Platform = (*Machine)(nil)
