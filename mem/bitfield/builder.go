package bitfield

import (
	"fmt"
	"unsafe"

	"github.com/bits-and-blooms/bitset"
)

// Builder constructs a Bitfield in two phases: Size reports the bytes of
// word storage required, and Place builds the Bitfield over a buffer the
// caller has reserved. This lets a memory manager keep a tracker's storage
// inside the very region it manages.
type Builder struct {
	fieldSize int
	words     int
}

// NewBuilder returns a Builder for a Bitfield of fieldSize bits.
func NewBuilder(fieldSize int) (Builder, error) {
	if fieldSize <= 0 {
		return Builder{}, fmt.Errorf("%w: %d", ErrInvalidSize, fieldSize)
	}
	return Builder{fieldSize: fieldSize, words: WordsFor(fieldSize)}, nil
}

// FieldSize returns the number of bits the built Bitfield will track.
func (b Builder) FieldSize() int { return b.fieldSize }

// Size returns the number of bytes Place needs.
func (b Builder) Size() int { return b.words * bytesPerWord }

// Place zeroes buf[:Size()] and returns a Bitfield whose storage aliases it.
// buf must stay alive and untouched by anyone else for the Bitfield's lifetime.
func (b Builder) Place(buf []byte) (*Bitfield, error) {
	if b.fieldSize <= 0 {
		return nil, ErrInvalidSize
	}
	if len(buf) < b.Size() {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(buf), b.Size())
	}
	p := unsafe.Pointer(unsafe.SliceData(buf))
	if uintptr(p)%bytesPerWord != 0 {
		return nil, fmt.Errorf("%w: address %#x", ErrMisaligned, uintptr(p))
	}
	return b.build(unsafe.Slice((*uint64)(p), b.words)), nil
}

// PlaceInto behaves like Place but stores the result in *out, which is left
// untouched on error.
//
// Use it only when the caller has already proven buf is large enough, such
// as while bootstrapping a memory manager; it performs no checks beyond Place.
func (b Builder) PlaceInto(buf []byte, out **Bitfield) error {
	bf, err := b.Place(buf)
	if err != nil {
		return err
	}
	*out = bf
	return nil
}

func (b Builder) build(words []uint64) *Bitfield {
	clear(words)
	return &Bitfield{
		bits:      bitset.FromWithLength(uint(b.fieldSize), words),
		words:     words,
		fieldSize: b.fieldSize,
		freeBits:  b.fieldSize,
	}
}
