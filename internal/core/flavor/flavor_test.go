package flavor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_KnownFlavors(t *testing.T) {
	tests := []struct {
		ref      string
		cpus     int
		memoryMB int
		diskGB   int
	}{
		{"1", 1, 1024, 25},
		{"2", 1, 1024, 100},
		{"3", 1, 2048, 25},
		{"4", 1, 2048, 100},
		{"5", 2, 4096, 25},
		{"6", 2, 4096, 100},
		{"7", 4, 8192, 25},
		{"8", 4, 8192, 100},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			f, err := Resolve(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.ref, f.ID)
			assert.Equal(t, tt.cpus, f.CPUs)
			assert.Equal(t, tt.memoryMB, f.MemoryMB)
			assert.Equal(t, tt.diskGB, f.DiskGB)
			assert.True(t, f.LocalDisk())
		})
	}
}

func TestResolve_UnknownFlavor(t *testing.T) {
	for _, ref := range []string{"", "0", "9", "17", "invalid", " 1"} {
		t.Run(ref, func(t *testing.T) {
			_, err := Resolve(ref)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnknownFlavor)
		})
	}
}

func TestAll_OrderedByID(t *testing.T) {
	all := All()
	require.Len(t, all, 8)
	for i, f := range all {
		assert.Equal(t, string(rune('1'+i)), f.ID)
	}
}

func TestMatch(t *testing.T) {
	f, ok := Match(2, 4096, 100)
	require.True(t, ok)
	assert.Equal(t, "6", f.ID)

	f, ok = Match(2, 4096, 0)
	require.True(t, ok)
	assert.Equal(t, "5", f.ID)

	_, ok = Match(3, 4096, 0)
	assert.False(t, ok)
}
