package machine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/simplegc/gc/rootset"
	"github.com/joshuapare/simplegc/gc/space"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := New(Config{DataSize: 4096, StackSize: 4096, HeapSize: 8192})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestNew_Layout(t *testing.T) {
	m := newTestMachine(t)
	data, stack, heap := m.Layout()

	assert.Equal(t, space.Region{Start: 0x100000, Len: 4096}, data)
	assert.Equal(t, space.Region{Start: 0x101000, Len: 4096}, stack)
	assert.Equal(t, space.Region{Start: 0x102000, Len: 8192}, heap)
	assert.Equal(t, heap, m.Heap())
	assert.Equal(t, stack.End(), m.StackPointer(), "stack starts empty")
	assert.Equal(t, int64(0x100000-0x1000), m.ImageSlide())
}

func TestNew_RejectsUnalignedSegments(t *testing.T) {
	_, err := New(Config{DataSize: 4097})
	require.ErrorIs(t, err, ErrLayout)
}

func TestPlatform_RootDiscovery(t *testing.T) {
	m := newTestMachine(t)
	p := rootset.New(m)
	require.NoError(t, p.Init())

	data, stack, _ := m.Layout()
	assert.Equal(t, data, p.Data(), "link address plus slide lands on the loaded segment")
	assert.Equal(t, stack, p.Stack())

	_, err := m.StackRegion(data.Start)
	require.ErrorIs(t, err, ErrNoRegion)
}

func TestStack_PushPop(t *testing.T) {
	m := newTestMachine(t)
	top := m.StackPointer()

	slot, err := m.Push(42)
	require.NoError(t, err)
	assert.Equal(t, top-8, slot)
	assert.Equal(t, slot, m.StackPointer())

	v, err := m.Pop()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)
	assert.Equal(t, top, m.StackPointer())

	_, err = m.Pop()
	require.ErrorIs(t, err, ErrStackUnderflow)

	stale, err := m.Load(slot)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), stale, "popped slots keep their bytes")
}

func TestStack_OverflowAndRelease(t *testing.T) {
	m := newTestMachine(t)
	_, err := m.Alloca(4096)
	require.NoError(t, err)
	_, err = m.Alloca(1)
	require.ErrorIs(t, err, ErrStackOverflow)

	require.NoError(t, m.Release(4096))
	require.ErrorIs(t, m.Release(8), ErrStackUnderflow)
}

func TestStack_HugeRequestsRejected(t *testing.T) {
	tests := []struct {
		name    string
		op      func(m *Machine) error
		wantErr error
	}{
		{"alloca max", func(m *Machine) error { _, err := m.Alloca(math.MaxUint64); return err }, ErrStackOverflow},
		{"alloca rounds past max", func(m *Machine) error { _, err := m.Alloca(math.MaxUint64 - 6); return err }, ErrStackOverflow},
		{"release max", func(m *Machine) error { return m.Release(math.MaxUint64) }, ErrStackUnderflow},
		{"call negative slots", func(m *Machine) error { return m.Call(-1, nil) }, ErrStackOverflow},
		{"call max slots", func(m *Machine) error { return m.Call(math.MaxInt, nil) }, ErrStackOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMachine(t)
			_, err := m.Alloca(64)
			require.NoError(t, err)
			sp := m.StackPointer()

			require.ErrorIs(t, tt.op(m), tt.wantErr)
			assert.Equal(t, sp, m.StackPointer(), "stack pointer must not move")
		})
	}
}

func TestCall_RestoresStackPointerAndLeavesDeadFrame(t *testing.T) {
	m := newTestMachine(t)
	top := m.StackPointer()

	var frameAddr space.Addr
	err := m.Call(4, func(frame space.Addr) error {
		frameAddr = frame
		assert.Equal(t, top-32, m.StackPointer())
		return m.Store(frame, 0xfeed)
	})
	require.NoError(t, err)
	assert.Equal(t, top, m.StackPointer())

	v, err := m.Load(frameAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xfeed), v)

	require.NoError(t, m.ClearStack(1024))
	v, err = m.Load(frameAddr)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestRegisters(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, m.SetRegister(3, 0xabc))
	require.ErrorIs(t, m.SetRegister(NumRegisters, 1), ErrRegister)

	buf := make([]uint64, NumRegisters)
	m.CaptureRegisters(buf)
	assert.Equal(t, uint64(0xabc), buf[3])

	v, err := m.Register(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xabc), v)

	m.ClearRegisters()
	v, err = m.Register(3)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestGlobals(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, m.SetGlobal(2, 7))

	v, err := m.Global(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	a, err := m.GlobalAddr(2)
	require.NoError(t, err)
	assert.Equal(t, space.Addr(0x100010), a)

	_, err = m.GlobalAddr(4096 / 8)
	require.ErrorIs(t, err, ErrGlobal)
	_, err = m.GlobalAddr(-1)
	require.ErrorIs(t, err, ErrGlobal)
}

func TestRegisterName(t *testing.T) {
	m := newTestMachine(t)
	assert.Equal(t, "rax", m.RegisterName(0))
	assert.Equal(t, "r15", m.RegisterName(NumRegisters-1))
	assert.Equal(t, "reg14", m.RegisterName(NumRegisters))
}
