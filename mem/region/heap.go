package region

import (
	"fmt"
	"math"
	"sync"

	"github.com/pbnjay/memory"
)

// Heap is a Source backed by the Go heap with a byte budget.
//
// Heap is safe for concurrent use so that one Heap can back several
// allocators owned by different goroutines.
//
// Every region stays reachable from the Heap until it is released, so a
// region the caller drops without Release is never collected and its
// address is never handed out again.
type Heap struct {
	mu    sync.Mutex
	limit uint64
	inUse uint64
	live  map[uintptr][]byte // region base -> region
}

// NewHeap returns a Heap that hands out at most limit bytes at once.
// A zero limit means the free memory reported by the operating system,
// falling back to total memory, and to no limit when neither is known.
func NewHeap(limit uint64) *Heap {
	if limit == 0 {
		limit = defaultLimit()
	}
	return &Heap{
		limit: limit,
		live:  make(map[uintptr][]byte),
	}
}

func defaultLimit() uint64 {
	if free := memory.FreeMemory(); free > 0 {
		return free
	}
	if total := memory.TotalMemory(); total > 0 {
		return total
	}
	return math.MaxUint64
}

// Obtain implements Source.
func (h *Heap) Obtain(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if uint64(size) > h.limit-h.inUse {
		return nil, fmt.Errorf("%w: requested %d bytes, %d of %d in use",
			ErrExhausted, size, h.inUse, h.limit)
	}

	buf := make([]byte, size)
	h.live[baseOf(buf)] = buf
	h.inUse += uint64(size)
	return buf, nil
}

// Release implements Source.
func (h *Heap) Release(buf []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	base := baseOf(buf)
	held, ok := h.live[base]
	if !ok || len(held) != len(buf) {
		return fmt.Errorf("%w: %#x (%d bytes)", ErrUnknownRegion, base, len(buf))
	}
	delete(h.live, base)
	h.inUse -= uint64(len(held))
	return nil
}

// Regions returns the number of regions currently handed out.
func (h *Heap) Regions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// InUse returns the number of bytes currently handed out.
func (h *Heap) InUse() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inUse
}

// Limit returns the byte budget.
func (h *Heap) Limit() uint64 { return h.limit }
