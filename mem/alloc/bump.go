package alloc

import "fmt"

// bumpAlign is the alignment of every bump allocation. It matches the word
// size of bitfield storage so trackers can be placed in bump allocations.
const bumpAlign = 8

// BumpAllocator is an append-only allocator over a caller-supplied buffer.
// It uses a simple bump pointer for O(1) allocation.
//
// Key characteristics:
//   - O(1) initialization and allocation
//   - Zero bookkeeping: no free lists, no bitmaps
//   - Free() is a no-op; space is only reclaimed by Reset()
//   - Every allocation starts on an 8-byte boundary
//
// It is the first phase of bootstrapping: a manager reserves space for its
// own trackers from a BumpAllocator and then places them there.
//
// Addresses are derived from buf on every call, never cached, so they stay
// consistent with the returned bytes even if buf is moved by a stack copy.
// Addresses handed out earlier do not follow such a move; see Addr.
type BumpAllocator struct {
	buf []byte

	// next is the bump pointer: the offset in buf where the next
	// allocation will start, before alignment.
	next int

	allocs int
}

// NewBump creates a BumpAllocator over buf. The allocator never releases buf.
func NewBump(buf []byte) *BumpAllocator {
	return &BumpAllocator{buf: buf}
}

// Alloc returns the next size bytes of the buffer, aligned to 8 bytes.
// It fails with ErrNoSpace when the buffer cannot hold the request.
func (ba *BumpAllocator) Alloc(size int) (Addr, []byte, error) {
	if size <= 0 {
		return 0, nil, fmt.Errorf("%w: request of %d bytes", ErrInvalidSize, size)
	}

	// Align on the absolute address, not the offset, so placement of
	// word-sized data works whatever the buffer's own alignment is.
	base := addrOf(ba.buf)
	cur := uintptr(base) + uintptr(ba.next)
	start := ba.next + int(((cur+bumpAlign-1)&^(bumpAlign-1))-cur)

	if start > len(ba.buf) || size > len(ba.buf)-start {
		return 0, nil, fmt.Errorf("%w: bump request of %d bytes, %d remaining",
			ErrNoSpace, size, ba.Remaining())
	}

	ba.next = start + size
	ba.allocs++
	return base + Addr(start), ba.buf[start : start+size : start+size], nil
}

// Free is a no-op for allocation tracking. It only validates that addr
// lies in the part of the buffer already handed out.
func (ba *BumpAllocator) Free(addr Addr) error {
	if !ba.Contains(addr) {
		return fmt.Errorf("%w: %#x", ErrNotOwned, uintptr(addr))
	}
	return nil
}

// Contains reports whether addr lies in the part of the buffer already
// handed out.
func (ba *BumpAllocator) Contains(addr Addr) bool {
	base := addrOf(ba.buf)
	return addr >= base && addr < base+Addr(ba.next)
}

// Used returns the number of bytes consumed, including alignment padding.
func (ba *BumpAllocator) Used() int { return ba.next }

// Remaining returns the number of bytes not yet consumed. An aligned
// request may fit in slightly less.
func (ba *BumpAllocator) Remaining() int { return len(ba.buf) - ba.next }

// Allocs returns the number of successful allocations since the last Reset.
func (ba *BumpAllocator) Allocs() int { return ba.allocs }

// Reset discards every allocation. Previously returned slices must no
// longer be used.
func (ba *BumpAllocator) Reset() {
	ba.next = 0
	ba.allocs = 0
}
