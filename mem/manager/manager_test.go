package manager

import (
	"io"
	"math/rand"
	"testing"
	"unsafe"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/joshuapare/blockkit/mem/alloc"
	"github.com/joshuapare/blockkit/mem/bitfield"
	"github.com/joshuapare/blockkit/mem/region"
)

var testClasses = []Class{
	{BlockSize: 64, BlockCount: 1},
	{BlockSize: 16, BlockCount: 2},
	{BlockSize: 32, BlockCount: 2},
}

func testEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// newTestManager creates a heap-backed Manager that is closed when the test ends.
func newTestManager(t *testing.T, classes []Class) *Manager {
	t.Helper()
	m, err := New(region.NewHeap(0), classes)
	require.NoError(t, err, "failed to create manager")
	t.Cleanup(func() { m.Close() })
	return m
}

// TestManager_ClassesSorted tests that classes come back in ascending size.
func TestManager_ClassesSorted(t *testing.T) {
	m := newTestManager(t, testClasses)
	assert.Equal(t, []Class{{16, 2}, {32, 2}, {64, 1}}, m.Classes())
	assert.Equal(t, 5, m.BlocksFree())
}

// TestManager_RoutesBySize tests best-fit class selection.
func TestManager_RoutesBySize(t *testing.T) {
	m := newTestManager(t, testClasses)

	tests := []struct {
		size int
		want int // block size of the serving class
	}{
		{0, 16},
		{10, 16},
		{17, 32},
		{33, 64},
	}
	for _, tt := range tests {
		addr, buf, err := m.Alloc(tt.size)
		require.NoError(t, err, "size %d", tt.size)
		c, ok := m.ClassOf(addr)
		require.True(t, ok)
		assert.Equal(t, tt.want, c.BlockSize, "size %d", tt.size)
		assert.Len(t, buf, tt.want)
		assert.True(t, m.Contains(addr))
	}

	_, _, err := m.Alloc(65)
	require.ErrorIs(t, err, alloc.ErrTooLarge)
	_, _, err = m.Alloc(-1)
	require.ErrorIs(t, err, alloc.ErrInvalidSize)
	require.NoError(t, m.Verify())
}

// TestManager_FallsThroughToLargerClass tests that an exhausted pool hands
// requests to the next class up.
func TestManager_FallsThroughToLargerClass(t *testing.T) {
	m := newTestManager(t, testClasses)

	var addrs []alloc.Addr
	for range 5 {
		addr, _, err := m.Alloc(8)
		require.NoError(t, err)
		addrs = append(addrs, addr)
	}

	sizes := make([]int, len(addrs))
	for i, addr := range addrs {
		c, ok := m.ClassOf(addr)
		require.True(t, ok)
		sizes[i] = c.BlockSize
	}
	assert.Equal(t, []int{16, 16, 32, 32, 64}, sizes)
	assert.Equal(t, 3, m.Stats().Fallthroughs)
	assert.False(t, m.HasSpace())

	_, _, err := m.Alloc(1)
	require.ErrorIs(t, err, alloc.ErrNoSpace)
	assert.Equal(t, 1, m.Stats().Exhausted)
	require.NoError(t, m.Verify())

	// Freeing a small block makes the best-fit pool usable again.
	require.NoError(t, m.Free(addrs[1]))
	assert.True(t, m.HasSpace())
	addr, _, err := m.Alloc(8)
	require.NoError(t, err)
	assert.Equal(t, addrs[1], addr)
	require.NoError(t, m.Verify())
}

// TestManager_FreeRejectsBadRefs tests routing of invalid frees.
func TestManager_FreeRejectsBadRefs(t *testing.T) {
	m := newTestManager(t, testClasses)
	other := newTestManager(t, testClasses)

	addr, _, err := m.Alloc(16)
	require.NoError(t, err)
	otherAddr, _, err := other.Alloc(16)
	require.NoError(t, err)

	require.ErrorIs(t, m.Free(otherAddr), alloc.ErrNotOwned)
	require.ErrorIs(t, m.Free(0), alloc.ErrNotOwned)
	require.ErrorIs(t, m.Free(addr+1), alloc.ErrMisaligned)
	require.ErrorIs(t, m.Free(addr+16), alloc.ErrDoubleFree)
	assert.False(t, m.Contains(otherAddr))

	require.NoError(t, m.Free(addr))
	require.ErrorIs(t, m.Free(addr), alloc.ErrDoubleFree)
	require.NoError(t, m.Verify())
}

// TestManager_Layout tests that the pool table and every pool live inside
// the single reservation, in class order.
func TestManager_Layout(t *testing.T) {
	m := newTestManager(t, testClasses)

	start := alloc.Addr(uintptr(unsafe.Pointer(unsafe.SliceData(m.mem))))
	end := start + alloc.Addr(len(m.mem))

	prev := start
	for i, pool := range m.pools {
		assert.Greater(t, pool.Base(), prev, "pool %d must follow the previous allocation", i)
		last := pool.Base() + alloc.Addr(pool.BlockSize()*pool.BlockCount())
		assert.LessOrEqual(t, last, end, "pool %d must fit in the reservation", i)
		prev = pool.Base()
	}
	assert.Equal(t, 3, m.exhausted.FieldSize())
}

// TestManager_RandomWorkload drives a deterministic mix of allocs and frees
// and checks bookkeeping after every step.
func TestManager_RandomWorkload(t *testing.T) {
	m := newTestManager(t, DefaultClasses)
	total := m.BlocksFree()
	rng := rand.New(rand.NewSource(42))

	live := map[alloc.Addr]bool{}
	var order []alloc.Addr
	for step := range 5000 {
		if len(order) > 0 && rng.Intn(3) == 0 {
			i := rng.Intn(len(order))
			addr := order[i]
			order[i] = order[len(order)-1]
			order = order[:len(order)-1]
			require.NoError(t, m.Free(addr), "step %d", step)
			delete(live, addr)
		} else {
			addr, buf, err := m.Alloc(1 + rng.Intn(256))
			if err != nil {
				require.ErrorIs(t, err, alloc.ErrNoSpace, "step %d", step)
				continue
			}
			require.False(t, live[addr], "step %d: address handed out twice", step)
			buf[0] = byte(step)
			live[addr] = true
			order = append(order, addr)
		}
		require.Equal(t, total-len(live), m.BlocksFree(), "step %d", step)
	}
	require.NoError(t, m.Verify())
}

// TestManager_VerifyDetectsStaleExhaustedBit tests that Verify reports a
// pool marked exhausted while it still has free blocks, and that Alloc
// trusts the mark.
func TestManager_VerifyDetectsStaleExhaustedBit(t *testing.T) {
	m := newTestManager(t, testClasses)
	require.NoError(t, m.Verify())

	require.NoError(t, m.exhausted.Set(0))
	err := m.Verify()
	require.ErrorIs(t, err, bitfield.ErrCorrupt)
	assert.Contains(t, err.Error(), "16x2")

	// The 16-byte pool is skipped, so the request lands in the 32-byte pool.
	addr, _, err := m.Alloc(8)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Stats().Fallthroughs)

	require.NoError(t, m.Free(addr))
	require.NoError(t, m.exhausted.Clear(0))
	require.NoError(t, m.Verify())
}

// TestManager_ReservationFails tests that a failed reservation reports exhaustion.
func TestManager_ReservationFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := region.NewMockSource(ctrl)

	size, err := ReservationSize(testClasses)
	require.NoError(t, err)
	src.EXPECT().Obtain(size).Return(nil, region.ErrExhausted)

	m, err := New(src, testClasses)
	require.ErrorIs(t, err, alloc.ErrNoSpace)
	require.ErrorIs(t, err, region.ErrExhausted)
	require.Nil(t, m)
}

// TestManager_PlacementFailsReleases tests that a reservation too small to
// hold the layout is released.
func TestManager_PlacementFailsReleases(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := region.NewMockSource(ctrl)

	size, err := ReservationSize(testClasses)
	require.NoError(t, err)
	src.EXPECT().Obtain(size).Return(make([]byte, 16), nil)
	src.EXPECT().Release(gomock.Any()).Return(nil)

	_, err = New(src, testClasses)
	require.ErrorIs(t, err, alloc.ErrNoSpace)
}

// TestManager_CloseReleasesOnce tests a single release of the reservation.
func TestManager_CloseReleasesOnce(t *testing.T) {
	src := region.NewHeap(1 << 20)
	m, err := New(src, DefaultClasses)
	require.NoError(t, err)

	size, err := ReservationSize(DefaultClasses)
	require.NoError(t, err)
	require.Equal(t, uint64(size), src.InUse())
	require.Equal(t, size, m.Stats().Reserved)

	addr, _, err := m.Alloc(16)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.Zero(t, src.InUse())
	require.NoError(t, m.Close())

	_, _, err = m.Alloc(16)
	require.ErrorIs(t, err, alloc.ErrClosed)
	require.ErrorIs(t, m.Free(addr), alloc.ErrClosed)
	assert.False(t, m.Contains(addr))
	assert.False(t, m.HasSpace())
	assert.Zero(t, m.BlocksFree())
}

// TestManager_InvalidClasses tests rejection of bad class tables.
func TestManager_InvalidClasses(t *testing.T) {
	for _, classes := range [][]Class{
		nil,
		{{BlockSize: 0, BlockCount: 4}},
		{{BlockSize: 16, BlockCount: 4}, {BlockSize: 16, BlockCount: 8}},
	} {
		_, err := New(region.NewHeap(0), classes)
		require.ErrorIs(t, err, ErrInvalidClass, "%v", classes)
	}
}

// TestManager_PoolOptions tests that pool options reach every pool.
func TestManager_PoolOptions(t *testing.T) {
	m, err := New(region.NewHeap(0), testClasses, WithPoolOptions(alloc.WithZeroOnFree()))
	require.NoError(t, err)
	defer m.Close()

	addr, buf, err := m.Alloc(32)
	require.NoError(t, err)
	for i := range buf {
		buf[i] = 0xFF
	}
	require.NoError(t, m.Free(addr))
	for _, v := range buf {
		require.Zero(t, v)
	}
}
