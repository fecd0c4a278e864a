package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSpace(t *testing.T, size int) *Space {
	t.Helper()
	s, err := New(0x10000, size)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_RejectsBadBase(t *testing.T) {
	_, err := New(0, 4096)
	require.ErrorIs(t, err, ErrMisaligned)

	_, err = New(0x10003, 4096)
	require.ErrorIs(t, err, ErrMisaligned)
}

func TestLoadStore_RoundTrip(t *testing.T) {
	s := newTestSpace(t, 4096)

	a := s.Base().Add(64)
	require.NoError(t, s.Store(a, 0xdeadbeefcafef00d))

	v, err := s.Load(a)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeefcafef00d), v)

	b, err := s.Bytes(a, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x0d), b[0], "words are little-endian")
}

func TestLoadStore_Misaligned(t *testing.T) {
	s := newTestSpace(t, 4096)
	_, err := s.Load(s.Base().Add(3))
	require.ErrorIs(t, err, ErrMisaligned)
	require.ErrorIs(t, s.Store(s.Base().Add(12), 1), ErrMisaligned)
}

func TestBytes_Bounds(t *testing.T) {
	s := newTestSpace(t, 4096)

	_, err := s.Bytes(s.Base()-8, 8)
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = s.Bytes(s.Bounds().End()-4, 8)
	require.ErrorIs(t, err, ErrOutOfRange)

	b, err := s.Bytes(s.Bounds().End()-8, 8)
	require.NoError(t, err)
	require.Len(t, b, 8)

	assert.False(t, s.Contains(s.Base(), ^uint64(0)))
}

func TestFillAndZero(t *testing.T) {
	s := newTestSpace(t, 4096)
	a := s.Base().Add(128)

	require.NoError(t, s.Fill(a, 16, 0xab))
	b, err := s.Bytes(a, 16)
	require.NoError(t, err)
	for _, x := range b {
		require.Equal(t, byte(0xab), x)
	}

	require.NoError(t, s.Zero(a, 16))
	for _, x := range b {
		require.Equal(t, byte(0), x)
	}
}

func TestRegion(t *testing.T) {
	r := Region{Start: 0x1000, Len: 0x100}
	assert.Equal(t, Addr(0x1100), r.End())
	assert.True(t, r.Contains(0x1000))
	assert.True(t, r.Contains(0x10ff))
	assert.False(t, r.Contains(0x1100))
	assert.Equal(t, "[0x1000, 0x1100) 256 bytes", r.String())
}
