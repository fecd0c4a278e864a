package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/simplegc/gc/space"
)

const testBase space.Addr = 0x40000

// newTestAllocator maps a fresh space and builds an allocator over all of it.
func newTestAllocator(t testing.TB, pages int) (*FastAllocator, *space.Space) {
	t.Helper()
	sp, err := space.New(testBase, pages*PageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sp.Close() })

	fa, err := NewFast(sp, sp.Base(), uint64(pages*PageSize), nil)
	require.NoError(t, err)
	return fa, sp
}

// cells collects the committed segment as a slice.
func cells(t testing.TB, fa *FastAllocator) []Cell {
	t.Helper()
	var out []Cell
	require.NoError(t, fa.Walk(func(c Cell) bool {
		out = append(out, c)
		return true
	}))
	return out
}
