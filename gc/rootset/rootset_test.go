package rootset

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/simplegc/gc/space"
)

type fakePlatform struct {
	sp        space.Addr
	stack     space.Region
	stackErr  error
	seg       Segment
	segErr    error
	slide     int64
	regs      []uint64
	stackHits int
}

func (f *fakePlatform) StackPointer() space.Addr { return f.sp }

func (f *fakePlatform) StackRegion(space.Addr) (space.Region, error) {
	f.stackHits++
	return f.stack, f.stackErr
}

func (f *fakePlatform) DataSegment() (Segment, error) { return f.seg, f.segErr }
func (f *fakePlatform) ImageSlide() int64            { return f.slide }
func (f *fakePlatform) NumRegisters() int            { return len(f.regs) }
func (f *fakePlatform) CaptureRegisters(buf []uint64) { copy(buf, f.regs) }
func (f *fakePlatform) RegisterName(i int) string     { return fmt.Sprintf("r%d", i) }

func newFake() *fakePlatform {
	return &fakePlatform{
		sp:    0x8f00,
		stack: space.Region{Start: 0x8000, Len: 0x1000},
		seg:   Segment{Name: "data", VMAddr: 0x1000, Size: 0x200},
		slide: 0x4000,
		regs:  []uint64{1, 2, 3},
	}
}

func TestProvider_DiscoversOnce(t *testing.T) {
	f := newFake()
	p := New(f)

	require.NoError(t, p.Init())
	require.NoError(t, p.Init())
	assert.Equal(t, 1, f.stackHits, "stack region is queried once")

	assert.Equal(t, space.Region{Start: 0x8000, Len: 0x1000}, p.Stack())
	assert.Equal(t, space.Region{Start: 0x5000, Len: 0x200}, p.Data(), "data segment is relocated by the slide")
}

func TestProvider_NegativeSlide(t *testing.T) {
	f := newFake()
	f.seg.VMAddr = 0x9000
	f.slide = -0x1000
	p := New(f)
	require.NoError(t, p.Init())
	assert.Equal(t, space.Addr(0x8000), p.Data().Start)

	f2 := newFake()
	f2.slide = -0x2000
	require.ErrorIs(t, New(f2).Init(), ErrRootDiscovery)
}

func TestProvider_StackFailureIsPermanent(t *testing.T) {
	f := newFake()
	f.stackErr = errors.New("no such region")
	p := New(f)

	err := p.Init()
	require.ErrorIs(t, err, ErrRootDiscovery)

	f.stackErr = nil
	require.ErrorIs(t, p.Init(), ErrRootDiscovery)
	assert.Equal(t, 1, f.stackHits)
}

func TestProvider_StackMustContainSP(t *testing.T) {
	f := newFake()
	f.sp = 0x7000
	require.ErrorIs(t, New(f).Init(), ErrRootDiscovery)
}

func TestProvider_DataFailure(t *testing.T) {
	f := newFake()
	f.segErr = errors.New("no __DATA")
	require.ErrorIs(t, New(f).Init(), ErrRootDiscovery)
}

func TestProvider_ActiveStackFollowsSP(t *testing.T) {
	f := newFake()
	p := New(f)
	require.NoError(t, p.Init())

	r, err := p.ActiveStack()
	require.NoError(t, err)
	assert.Equal(t, space.Region{Start: 0x8f00, Len: 0x100}, r)

	f.sp = 0x8800
	r, err = p.ActiveStack()
	require.NoError(t, err)
	assert.Equal(t, space.Region{Start: 0x8800, Len: 0x800}, r)

	f.sp = 0x9000
	r, err = p.ActiveStack()
	require.NoError(t, err)
	assert.Zero(t, r.Len, "empty stack")

	f.sp = 0x7ff8
	r, err = p.ActiveStack()
	require.ErrorIs(t, err, ErrStackPointer)
	assert.Equal(t, p.Stack(), r, "falls back to the whole region")
}

func TestProvider_RegistersAreFresh(t *testing.T) {
	f := newFake()
	p := New(f)
	require.NoError(t, p.Init())

	assert.Equal(t, []uint64{1, 2, 3}, p.Registers())
	f.regs = []uint64{9}
	assert.Equal(t, []uint64{9, 0, 0}, p.Registers(), "stale slots are cleared before each spill")
}

func TestProvider_RegisterName(t *testing.T) {
	p := New(newFake())
	assert.Equal(t, "r2", p.RegisterName(2))
}
