// Package alloc provides fixed-size block allocation over raw memory regions.
//
// # Overview
//
// The central type is SmallBlockAllocator: one contiguous region divided
// into blockCount blocks of blockSize bytes, with a bitfield recording which
// blocks are in use. Requests of up to blockSize bytes take the lowest free
// block; frees clear its bit. There is no splitting, no coalescing, and no
// request ever spans two blocks.
//
// # Allocator Interface
//
// The Allocator interface is shared by every allocator in this package and
// by mem/manager:
//
//   - Alloc(size): reserve an allocation of at least size bytes
//   - Free(addr): release an allocation
//   - Contains(addr): does addr name a live allocation here?
//
// # Implementations
//
// SmallBlockAllocator: bitfield-tracked fixed blocks
//
//   - O(words) allocation via a word-granular free-bit scan
//   - O(1) free and O(1) BlocksFree
//   - Lowest-free-index policy, so allocation order is deterministic
//   - Region and bitfield acquired and released as one unit
//
// BumpAllocator: append-only linear allocation
//
//   - O(1) allocation, Free() is a no-op
//   - Used to reserve space for trackers before placing them
//
// # Usage Example
//
//	src := region.NewHeap(0)
//	sba, err := alloc.NewSmallBlock(src, 16, 4)
//	if err != nil {
//	    return err
//	}
//	defer sba.Close()
//
//	addr, buf, err := sba.Alloc(12)
//	if errors.Is(err, alloc.ErrNoSpace) {
//	    // exhausted: fall back to another allocator
//	}
//	copy(buf, payload)
//
//	err = sba.Free(addr)
//
// # Addresses
//
// Addr values are absolute addresses of block starts. Block i of an
// allocator starts at Base() + i*BlockSize(). Because they are absolute, a
// manager can ask each of several allocators whether it Contains an address
// and route a Free to the right one.
//
// # Errors
//
// Capacity exhaustion (ErrNoSpace) is recoverable and distinct from usage
// errors. Frees of foreign, misaligned or already-free addresses are
// rejected (ErrNotOwned, ErrMisaligned, ErrDoubleFree, all matching
// ErrBadRef) before the bitfield is touched.
//
// # Thread Safety
//
// Allocator instances are not thread-safe. Callers must synchronize access
// externally, for example with one mutex per allocator.
//
// # Related Packages
//
//   - github.com/joshuapare/blockkit/mem/bitfield: occupancy tracking
//   - github.com/joshuapare/blockkit/mem/region: raw memory sources
//   - github.com/joshuapare/blockkit/mem/manager: pools of several block sizes
package alloc
