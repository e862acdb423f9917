package alloc

import "unsafe"

// Addr is the address of a block. Addresses are only meaningful to the
// allocator that returned them; compare them, never dereference them.
//
// An Addr is a plain integer and is not updated when the garbage collector
// or the runtime moves memory. Addresses are stable for regions from a
// region.Source (heap or mmap) and for other heap-allocated buffers. A
// buffer on a goroutine stack may be moved when the stack grows, after
// which earlier addresses no longer name its bytes.
type Addr uintptr

// Allocator defines the interface shared by the allocators in this package
// and by the manager built on top of them.
//
// Implementations:
//   - SmallBlockAllocator: fixed-size blocks tracked by a bitfield
//   - BumpAllocator: append-only linear allocation, Free is a no-op
type Allocator interface {
	// Alloc returns the address and bytes of an allocation of at least
	// size bytes. ErrNoSpace means the allocator is exhausted.
	Alloc(size int) (Addr, []byte, error)

	// Free releases an allocation previously returned by Alloc.
	Free(addr Addr) error

	// Contains reports whether addr names a live allocation of this allocator.
	Contains(addr Addr) bool
}

var (
	_ Allocator = (*SmallBlockAllocator)(nil)
	_ Allocator = (*BumpAllocator)(nil)
)

// addrOf returns the address of buf's first byte, or 0 for an empty slice.
func addrOf(buf []byte) Addr {
	if len(buf) == 0 {
		return 0
	}
	return Addr(unsafe.Pointer(unsafe.SliceData(buf)))
}
