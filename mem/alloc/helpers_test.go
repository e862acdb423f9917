package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/blockkit/mem/region"
)

// newTestSBA creates a heap-backed SmallBlockAllocator that is closed when
// the test ends.
func newTestSBA(t testing.TB, blockSize, blockCount int, opts ...Option) *SmallBlockAllocator {
	t.Helper()

	a, err := NewSmallBlock(region.NewHeap(0), blockSize, blockCount, opts...)
	require.NoError(t, err, "failed to create small block allocator")

	t.Cleanup(func() { a.Close() })
	return a
}

// heapBuf returns a zeroed buffer that lives on the heap, so addresses
// taken from it stay valid for the whole test.
//
//go:noinline
func heapBuf(n int) []byte {
	return make([]byte, n)
}

// fillBlock writes pattern across every byte of buf.
func fillBlock(buf []byte, pattern byte) {
	for i := range buf {
		buf[i] = pattern
	}
}

// requireFilled asserts that every byte of buf equals pattern.
func requireFilled(t testing.TB, buf []byte, pattern byte) {
	t.Helper()
	for i, v := range buf {
		require.Equal(t, pattern, v, "byte %d", i)
	}
}
