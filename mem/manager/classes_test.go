package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/blockkit/mem/bitfield"
)

func TestParseClasses(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Class
		wantErr bool
	}{
		{"single", "16x4", []Class{{16, 4}}, false},
		{"list", "16x64,32x32", []Class{{16, 64}, {32, 32}}, false},
		{"spaces and trailing comma", " 64x2 , 16x8,", []Class{{64, 2}, {16, 8}}, false},
		{"empty", "", nil, true},
		{"missing count", "16", nil, true},
		{"not a number", "abcx4", nil, true},
		{"zero size", "0x4", nil, true},
		{"negative count", "16x-1", nil, true},
		{"duplicate", "16x4,16x8", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClasses(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidClass)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClass_StringRoundTrip(t *testing.T) {
	for _, c := range DefaultClasses {
		got, err := ParseClasses(c.String())
		require.NoError(t, err)
		assert.Equal(t, []Class{c}, got)
	}
}

func TestNormalize_SortsCopy(t *testing.T) {
	in := []Class{{64, 1}, {16, 2}}
	got, err := normalize(in)
	require.NoError(t, err)
	assert.Equal(t, []Class{{16, 2}, {64, 1}}, got)
	assert.Equal(t, []Class{{64, 1}, {16, 2}}, in, "input must not be reordered")
}

func TestNormalize_RejectsOverflow(t *testing.T) {
	_, err := normalize([]Class{{BlockSize: 1 << 20, BlockCount: 1 << 20}})
	require.ErrorIs(t, err, ErrInvalidClass)
}

func TestReservationSize(t *testing.T) {
	size, err := ReservationSize([]Class{{16, 4}, {24, 3}})
	require.NoError(t, err)

	want := placementSlack +
		bitfield.SizeOf(2) +
		bitfield.SizeOf(4) + 64 +
		bitfield.SizeOf(3) + 72
	assert.Equal(t, want, size)

	// Block regions that are not a multiple of 8 get padded.
	size, err = ReservationSize([]Class{{3, 3}})
	require.NoError(t, err)
	assert.Equal(t, placementSlack+bitfield.SizeOf(1)+bitfield.SizeOf(3)+16, size)

	_, err = ReservationSize(nil)
	require.ErrorIs(t, err, ErrInvalidClass)
}

// TestReservationSize_Tight tests that a reservation of exactly the computed
// size is enough even when the source hands out unaligned memory.
func TestReservationSize_Tight(t *testing.T) {
	classes := []Class{{3, 5}, {24, 3}, {40, 7}}
	size, err := ReservationSize(classes)
	require.NoError(t, err)

	backing := make([]byte, size+8)
	for off := range 8 {
		m, err := place(backing[off:off+size], classes, options{log: testEntry()})
		require.NoError(t, err, "offset %d", off)
		require.Len(t, m.pools, len(classes))
	}
}
