package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSpace indicates that no free block is available, or that the
	// memory for a new allocator could not be obtained. It is recoverable:
	// callers are expected to fall back to another allocator.
	ErrNoSpace = errors.New("alloc: no free block")

	// ErrBadRef indicates an address that does not name a live block of
	// this allocator. ErrNotOwned, ErrMisaligned and ErrDoubleFree all wrap it.
	ErrBadRef = errors.New("alloc: bad block reference")

	// ErrNotOwned indicates an address outside the allocator's region.
	ErrNotOwned = fmt.Errorf("%w: address outside allocator region", ErrBadRef)

	// ErrMisaligned indicates an address inside the region but not at the
	// start of a block.
	ErrMisaligned = fmt.Errorf("%w: address not on a block boundary", ErrBadRef)

	// ErrDoubleFree indicates a free of a block that is not allocated.
	ErrDoubleFree = fmt.Errorf("%w: block already free", ErrBadRef)

	// ErrTooLarge indicates a request larger than one block.
	ErrTooLarge = errors.New("alloc: request larger than block size")

	// ErrInvalidSize indicates a non-positive block size or count, or a
	// negative request.
	ErrInvalidSize = errors.New("alloc: invalid size")

	// ErrClosed indicates use of an allocator after Close.
	ErrClosed = errors.New("alloc: allocator closed")
)
