package alloc

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/joshuapare/blockkit/internal/logger"
	"github.com/joshuapare/blockkit/mem/bitfield"
	"github.com/joshuapare/blockkit/mem/region"
)

// SmallBlockAllocator serves requests of up to blockSize bytes from one
// contiguous region split into blockCount equal blocks. A bitfield records
// which blocks are in use; bit i covers [Base()+i*blockSize, Base()+(i+1)*blockSize).
//
// The region and the bitfield are acquired together and released together
// by Close. There is no partially constructed or partially closed state.
//
// SmallBlockAllocator is not thread-safe.
type SmallBlockAllocator struct {
	// src is nil when the memory belongs to the caller (NewSmallBlockAt).
	src region.Source

	blocks []byte // blockSize*blockCount bytes
	meta   []byte // bitfield word storage

	blockSize  int
	blockCount int
	used       *bitfield.Bitfield

	zeroOnFree bool
	log        *logrus.Entry
	stats      Stats
	closed     bool
}

// Stats holds counters for one SmallBlockAllocator.
type Stats struct {
	BlockSize  int
	BlockCount int
	BlocksFree int
	InUse      int
	HighWater  int // most blocks in use at once

	AllocCalls int
	FreeCalls  int
	Exhausted  int // Alloc calls that found no free block
	Rejected   int // Free calls rejected as bad references
}

// NewSmallBlock obtains a region of blockSize*blockCount bytes and the
// bitfield storage for blockCount blocks from src.
//
// Both acquisitions must succeed. If the bitfield storage cannot be obtained
// the region is released before the error is returned, so a failed call
// leaves nothing reserved. Acquisition failures wrap ErrNoSpace.
func NewSmallBlock(src region.Source, blockSize, blockCount int, opts ...Option) (*SmallBlockAllocator, error) {
	if err := checkGeometry(blockSize, blockCount); err != nil {
		return nil, err
	}
	b, err := bitfield.NewBuilder(blockCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSize, err)
	}

	regionSize := blockSize * blockCount
	blocks, err := src.Obtain(regionSize)
	if err != nil {
		return nil, fmt.Errorf("%w: block region of %d bytes: %w", ErrNoSpace, regionSize, err)
	}

	meta, err := src.Obtain(b.Size())
	if err != nil {
		err = fmt.Errorf("%w: bitfield of %d bytes: %w", ErrNoSpace, b.Size(), err)
		if rerr := src.Release(blocks); rerr != nil {
			err = multierror.Append(err, fmt.Errorf("alloc: releasing block region: %w", rerr))
		}
		return nil, err
	}

	a, err := newSmallBlock(blocks, meta, b, blockSize, newOptions(opts))
	if err != nil {
		var result *multierror.Error
		result = multierror.Append(result, err)
		if rerr := src.Release(meta); rerr != nil {
			result = multierror.Append(result, fmt.Errorf("alloc: releasing bitfield: %w", rerr))
		}
		if rerr := src.Release(blocks); rerr != nil {
			result = multierror.Append(result, fmt.Errorf("alloc: releasing block region: %w", rerr))
		}
		return nil, result.ErrorOrNil()
	}
	a.src = src

	a.log.WithFields(logrus.Fields{
		"block_size":  blockSize,
		"block_count": blockCount,
		"base":        fmt.Sprintf("%#x", uintptr(a.Base())),
	}).Debug("small block allocator constructed")
	return a, nil
}

// NewSmallBlockAt builds an allocator over memory the caller already owns.
// The memory should not live on a goroutine stack (see Addr):
// blocks must hold at least blockSize*blockCount bytes and meta at least
// bitfield.SizeOf(blockCount) word-aligned bytes.
//
// The allocator never releases this memory; Close only marks it closed.
// This is the placement path used when a manager carves several allocators
// out of a single reservation.
func NewSmallBlockAt(blocks, meta []byte, blockSize, blockCount int, opts ...Option) (*SmallBlockAllocator, error) {
	if err := checkGeometry(blockSize, blockCount); err != nil {
		return nil, err
	}
	if len(blocks) < blockSize*blockCount {
		return nil, fmt.Errorf("%w: block region has %d bytes, need %d",
			ErrInvalidSize, len(blocks), blockSize*blockCount)
	}
	b, err := bitfield.NewBuilder(blockCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSize, err)
	}
	return newSmallBlock(blocks, meta, b, blockSize, newOptions(opts))
}

func checkGeometry(blockSize, blockCount int) error {
	if blockSize <= 0 || blockCount <= 0 {
		return fmt.Errorf("%w: block size %d, block count %d", ErrInvalidSize, blockSize, blockCount)
	}
	if blockCount > math.MaxInt/blockSize {
		return fmt.Errorf("%w: %d blocks of %d bytes overflows", ErrInvalidSize, blockCount, blockSize)
	}
	return nil
}

func newSmallBlock(blocks, meta []byte, b bitfield.Builder, blockSize int, o options) (*SmallBlockAllocator, error) {
	used, err := b.Place(meta)
	if err != nil {
		return nil, fmt.Errorf("alloc: placing bitfield: %w", err)
	}

	regionSize := blockSize * b.FieldSize()
	blocks = blocks[:regionSize:regionSize]
	return &SmallBlockAllocator{
		blocks:     blocks,
		meta:       meta,
		blockSize:  blockSize,
		blockCount: b.FieldSize(),
		used:       used,
		zeroOnFree: o.zeroOnFree,
		log:        o.log,
		stats: Stats{
			BlockSize:  blockSize,
			BlockCount: b.FieldSize(),
		},
	}, nil
}

// Alloc reserves the lowest free block and returns its address and bytes.
// size must not exceed BlockSize. When every block is in use Alloc returns
// ErrNoSpace, which is not fatal; the caller should try another allocator.
func (a *SmallBlockAllocator) Alloc(size int) (Addr, []byte, error) {
	if a.closed {
		return 0, nil, ErrClosed
	}
	if size < 0 {
		return 0, nil, fmt.Errorf("%w: request of %d bytes", ErrInvalidSize, size)
	}
	if size > a.blockSize {
		return 0, nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, size, a.blockSize)
	}

	a.stats.AllocCalls++
	idx, ok := a.used.FirstFree()
	if !ok {
		a.stats.Exhausted++
		if logger.AllocTrace {
			a.log.WithField("size", size).Debug("alloc: no free block")
		}
		return 0, nil, ErrNoSpace
	}
	if err := a.used.Set(idx); err != nil {
		return 0, nil, err
	}

	if inUse := a.blockCount - a.used.FreeBits(); inUse > a.stats.HighWater {
		a.stats.HighWater = inUse
	}

	off := idx * a.blockSize
	addr := a.Base() + Addr(off)
	if logger.AllocTrace {
		a.log.WithFields(logrus.Fields{"addr": fmt.Sprintf("%#x", uintptr(addr)), "block": idx}).Debug("alloc")
	}
	return addr, a.blocks[off : off+a.blockSize : off+a.blockSize], nil
}

// Free releases the block starting at addr.
//
// addr must be exactly an address returned by Alloc and not yet freed.
// Addresses outside the region, inside a block, or naming a free block are
// rejected with ErrNotOwned, ErrMisaligned or ErrDoubleFree before any
// state changes.
func (a *SmallBlockAllocator) Free(addr Addr) error {
	if a.closed {
		return ErrClosed
	}
	a.stats.FreeCalls++

	idx, err := a.blockIndex(addr)
	if err == nil {
		var set bool
		if set, err = a.used.IsSet(idx); err == nil && !set {
			err = fmt.Errorf("%w: %#x", ErrDoubleFree, uintptr(addr))
		}
	}
	if err != nil {
		a.stats.Rejected++
		a.log.WithError(err).Warn("rejected free")
		return err
	}

	if a.zeroOnFree {
		off := idx * a.blockSize
		clear(a.blocks[off : off+a.blockSize])
	}
	if logger.AllocTrace {
		a.log.WithFields(logrus.Fields{"addr": fmt.Sprintf("%#x", uintptr(addr)), "block": idx}).Debug("free")
	}
	return a.used.Clear(idx)
}

// blockIndex maps a block start address to its bit index.
func (a *SmallBlockAllocator) blockIndex(addr Addr) (int, error) {
	base := a.Base()
	if addr < base || addr >= base+Addr(len(a.blocks)) {
		return 0, fmt.Errorf("%w: %#x", ErrNotOwned, uintptr(addr))
	}
	off := int(addr - base)
	if off%a.blockSize != 0 {
		return 0, fmt.Errorf("%w: %#x is %d bytes into block %d",
			ErrMisaligned, uintptr(addr), off%a.blockSize, off/a.blockSize)
	}
	return off / a.blockSize, nil
}

// Contains reports whether addr is the start of a block that is currently
// allocated. Interior addresses and free blocks report false.
func (a *SmallBlockAllocator) Contains(addr Addr) bool {
	if a.closed {
		return false
	}
	idx, err := a.blockIndex(addr)
	if err != nil {
		return false
	}
	set, err := a.used.IsSet(idx)
	return err == nil && set
}

// InRange reports whether addr falls anywhere inside the block region,
// regardless of alignment or allocation state.
func (a *SmallBlockAllocator) InRange(addr Addr) bool {
	base := a.Base()
	return !a.closed && addr >= base && addr < base+Addr(len(a.blocks))
}

// Bytes returns the bytes of the live block starting at addr.
func (a *SmallBlockAllocator) Bytes(addr Addr) ([]byte, error) {
	if a.closed {
		return nil, ErrClosed
	}
	if !a.Contains(addr) {
		if _, err := a.blockIndex(addr); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: block at %#x is not allocated", ErrBadRef, uintptr(addr))
	}
	off := int(addr - a.Base())
	return a.blocks[off : off+a.blockSize : off+a.blockSize], nil
}

// BlocksFree returns the number of unallocated blocks. O(1).
func (a *SmallBlockAllocator) BlocksFree() int {
	if a.closed {
		return 0
	}
	return a.used.FreeBits()
}

// BlockSize returns the size of each block in bytes.
func (a *SmallBlockAllocator) BlockSize() int { return a.blockSize }

// BlockCount returns the number of blocks.
func (a *SmallBlockAllocator) BlockCount() int { return a.blockCount }

// Base returns the address of block 0, derived from the block region on
// every call. It is 0 after Close.
func (a *SmallBlockAllocator) Base() Addr { return addrOf(a.blocks) }

// Stats returns a snapshot of the allocator's counters.
func (a *SmallBlockAllocator) Stats() Stats {
	s := a.stats
	s.BlocksFree = a.BlocksFree()
	if !a.closed {
		s.InUse = a.blockCount - s.BlocksFree
	}
	return s
}

// Verify checks the bitfield's cached free count against its stored bits.
func (a *SmallBlockAllocator) Verify() error {
	if a.closed {
		return ErrClosed
	}
	return a.used.Verify()
}

// Close releases the block region and the bitfield storage together.
// Closing twice is a no-op.
func (a *SmallBlockAllocator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	var result *multierror.Error
	if a.src != nil {
		if err := a.src.Release(a.meta); err != nil {
			result = multierror.Append(result, fmt.Errorf("alloc: releasing bitfield: %w", err))
		}
		if err := a.src.Release(a.blocks); err != nil {
			result = multierror.Append(result, fmt.Errorf("alloc: releasing block region: %w", err))
		}
	}
	a.blocks, a.meta, a.used = nil, nil, nil

	a.log.Debug("small block allocator closed")
	return result.ErrorOrNil()
}
