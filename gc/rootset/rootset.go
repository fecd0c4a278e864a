// Package rootset discovers the memory that may hold references into the
// managed heap without being part of it: the register file, the in-use part
// of the stack, and the global-data segment.
//
// Everything host specific sits behind Platform. The Provider caches the
// stack and data extents on first use and takes a fresh register spill and
// stack pointer on every collection.
package rootset

import (
	"fmt"
	"sync"

	"github.com/joshuapare/simplegc/gc/space"
)

// Segment is a loaded image segment as linked, before relocation.
type Segment struct {
	Name   string
	VMAddr space.Addr
	Size   uint64
}

// Platform is the host facility the root set is built from.
type Platform interface {
	// StackPointer returns the current stack pointer of the mutator thread.
	StackPointer() space.Addr

	// StackRegion reports the memory region that contains sp.
	StackRegion(sp space.Addr) (space.Region, error)

	// DataSegment locates the image's read/write global-data segment at its
	// link-time address.
	DataSegment() (Segment, error)

	// ImageSlide returns the displacement applied when the image was loaded.
	ImageSlide() int64

	// NumRegisters returns the number of general-purpose registers.
	NumRegisters() int

	// CaptureRegisters spills every general-purpose register into buf.
	CaptureRegisters(buf []uint64)

	// RegisterName returns the name of register i for traces.
	RegisterName(i int) string
}

// Provider answers the three root-set questions for one mutator thread.
type Provider struct {
	platform Platform

	once  sync.Once
	err   error
	stack space.Region
	data  space.Region

	regs []uint64
}

// New returns a provider that will discover its extents lazily.
func New(p Platform) *Provider {
	return &Provider{platform: p}
}

// Init discovers the stack and data extents once. Later calls return the
// cached outcome. A failure wraps ErrRootDiscovery and is permanent.
func (p *Provider) Init() error {
	p.once.Do(func() {
		p.err = p.discover()
	})
	return p.err
}

func (p *Provider) discover() error {
	sp := p.platform.StackPointer()
	stack, err := p.platform.StackRegion(sp)
	if err != nil {
		return fmt.Errorf("%w: stack region for sp %s: %w", ErrRootDiscovery, sp, err)
	}
	if !stack.Contains(sp) && sp != stack.End() {
		return fmt.Errorf("%w: stack region %s does not contain sp %s", ErrRootDiscovery, stack, sp)
	}

	seg, err := p.platform.DataSegment()
	if err != nil {
		return fmt.Errorf("%w: data segment: %w", ErrRootDiscovery, err)
	}
	start, err := relocate(seg.VMAddr, p.platform.ImageSlide())
	if err != nil {
		return fmt.Errorf("%w: data segment %s: %w", ErrRootDiscovery, seg.Name, err)
	}

	p.stack = stack
	p.data = space.Region{Start: start, Len: seg.Size}
	p.regs = make([]uint64, p.platform.NumRegisters())
	return nil
}

// Stack returns the whole stack region recorded at discovery.
func (p *Provider) Stack() space.Region { return p.stack }

// Data returns the relocated global-data region.
func (p *Provider) Data() space.Region { return p.data }

// Registers spills the register file and returns the buffer holding it.
// The buffer is reused by the next call.
func (p *Provider) Registers() []uint64 {
	clear(p.regs)
	p.platform.CaptureRegisters(p.regs)
	return p.regs
}

// RegisterName returns the platform's name for register i.
func (p *Provider) RegisterName(i int) string { return p.platform.RegisterName(i) }

// ActiveStack returns the in-use part of the stack: from the current stack
// pointer up to the stack base. If the stack pointer has left the recorded
// region it returns the whole region together with ErrStackPointer.
func (p *Provider) ActiveStack() (space.Region, error) {
	sp := p.platform.StackPointer()
	if sp < p.stack.Start || sp > p.stack.End() {
		return p.stack, fmt.Errorf("%w: sp %s outside %s", ErrStackPointer, sp, p.stack)
	}
	return space.Region{Start: sp, Len: uint64(p.stack.End() - sp)}, nil
}

func relocate(vmaddr space.Addr, slide int64) (space.Addr, error) {
	switch {
	case slide >= 0 && uint64(vmaddr)+uint64(slide) < uint64(vmaddr):
		return 0, fmt.Errorf("slide %d overflows %s", slide, vmaddr)
	case slide < 0 && uint64(-slide) > uint64(vmaddr):
		return 0, fmt.Errorf("slide %d underflows %s", slide, vmaddr)
	}
	return space.Addr(int64(vmaddr) + slide), nil
}
