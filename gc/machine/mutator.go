package machine

import (
	"fmt"
	"math"

	"github.com/joshuapare/simplegc/gc/space"
	"github.com/joshuapare/simplegc/internal/word"
)

// SetRegister writes v into register i.
func (m *Machine) SetRegister(i int, v uint64) error {
	if i < 0 || i >= NumRegisters {
		return fmt.Errorf("%w: %d", ErrRegister, i)
	}
	m.regs[i] = v
	return nil
}

// Register returns the contents of register i.
func (m *Machine) Register(i int) (uint64, error) {
	if i < 0 || i >= NumRegisters {
		return 0, fmt.Errorf("%w: %d", ErrRegister, i)
	}
	return m.regs[i], nil
}

// ClearRegisters zeroes the register file.
func (m *Machine) ClearRegisters() {
	m.regs = [NumRegisters]uint64{}
}

// Push stores v in a new stack slot and returns the slot address.
func (m *Machine) Push(v uint64) (space.Addr, error) {
	slot, err := m.Alloca(space.WordSize)
	if err != nil {
		return 0, err
	}
	return slot, m.space.Store(slot, v)
}

// Pop removes the top stack slot and returns its value. The slot's bytes
// stay in memory below the stack pointer.
func (m *Machine) Pop() (uint64, error) {
	if m.sp == m.stack.End() {
		return 0, ErrStackUnderflow
	}
	v, err := m.space.Load(m.sp)
	if err != nil {
		return 0, err
	}
	m.sp = m.sp.Add(space.WordSize)
	return v, nil
}

// Alloca moves the stack pointer down by n bytes, rounded up to whole words,
// and returns the new stack pointer. The bytes are not cleared.
func (m *Machine) Alloca(n uint64) (space.Addr, error) {
	size, ok := wholeWords(n)
	if !ok || size > uint64(m.sp-m.stack.Start) {
		return 0, fmt.Errorf("%w: need %d bytes, %d left", ErrStackOverflow, n, m.sp-m.stack.Start)
	}
	m.sp -= space.Addr(size)
	return m.sp, nil
}

// Release moves the stack pointer up by n bytes, rounded up to whole words.
func (m *Machine) Release(n uint64) error {
	size, ok := wholeWords(n)
	if !ok || size > uint64(m.stack.End()-m.sp) {
		return ErrStackUnderflow
	}
	m.sp = m.sp.Add(size)
	return nil
}

// Call runs fn with a fresh frame of the given number of zeroed word slots
// and pops the frame afterwards, leaving its bytes behind below the stack
// pointer the way a returning function does.
func (m *Machine) Call(slots int, fn func(frame space.Addr) error) error {
	if slots < 0 || uint64(slots) > math.MaxUint64/space.WordSize {
		return fmt.Errorf("%w: frame of %d slots", ErrStackOverflow, slots)
	}
	size := uint64(slots) * space.WordSize
	saved := m.sp
	frame, err := m.Alloca(size)
	if err != nil {
		return err
	}
	if err := m.space.Zero(frame, size); err != nil {
		return err
	}
	defer func() { m.sp = saved }()
	return fn(frame)
}

// ClearStack zeroes up to n bytes of dead stack just below the stack pointer,
// so stale handles left by returned frames cannot be found by a scan.
func (m *Machine) ClearStack(n uint64) error {
	n = min(n, uint64(m.sp-m.stack.Start))
	return m.space.Zero(m.sp-space.Addr(n), n)
}

// GlobalAddr returns the address of global slot i.
func (m *Machine) GlobalAddr(i int) (space.Addr, error) {
	if i < 0 || uint64(i) >= m.data.Len/space.WordSize {
		return 0, fmt.Errorf("%w: %d", ErrGlobal, i)
	}
	return m.data.Start.Add(uint64(i) * space.WordSize), nil
}

// SetGlobal stores v in global slot i.
func (m *Machine) SetGlobal(i int, v uint64) error {
	a, err := m.GlobalAddr(i)
	if err != nil {
		return err
	}
	return m.space.Store(a, v)
}

// Global loads global slot i.
func (m *Machine) Global(i int) (uint64, error) {
	a, err := m.GlobalAddr(i)
	if err != nil {
		return 0, err
	}
	return m.space.Load(a)
}

// Store writes v into the word at a.
func (m *Machine) Store(a space.Addr, v uint64) error {
	return m.space.Store(a, v)
}

// Load reads the word at a.
func (m *Machine) Load(a space.Addr) (uint64, error) {
	return m.space.Load(a)
}

// LoadByte reads the byte at a.
func (m *Machine) LoadByte(a space.Addr) (byte, error) {
	b, err := m.space.Bytes(a, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// wholeWords rounds n up to a multiple of the word size. It reports false
// if the rounding overflows.
func wholeWords(n uint64) (uint64, bool) {
	r, ok := word.AddOverflowSafe(n, word.AlignMask)
	return word.AlignDown(r), ok
}
