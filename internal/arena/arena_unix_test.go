//go:build unix

package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMap_ZeroedAndPageRounded(t *testing.T) {
	data, release, err := Map(100)
	require.NoError(t, err)
	defer func() { require.NoError(t, release()) }()

	require.Equal(t, PageSize(), len(data))
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d not zero: %#x", i, b)
		}
	}

	data[0] = 0xab
	require.Equal(t, byte(0xab), data[0])
}

func TestMap_DoubleReleaseIsNoop(t *testing.T) {
	_, release, err := Map(PageSize())
	require.NoError(t, err)
	require.NoError(t, release())
	require.NoError(t, release())
}

func TestMap_RejectsInvalidSize(t *testing.T) {
	_, _, err := Map(0)
	require.Error(t, err)
}
