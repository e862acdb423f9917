package bitfield

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

const (
	// bitsPerWord is the number of bits in one storage word.
	bitsPerWord = 64

	// bytesPerWord is the size of one storage word in bytes.
	bytesPerWord = 8
)

// Bitfield tracks occupancy of fieldSize slots, one bit per slot.
// A set bit means the slot is occupied.
type Bitfield struct {
	bits *bitset.BitSet

	// words is the storage behind bits. It may alias memory owned by the
	// caller when the Bitfield was built by Builder.Place.
	words []uint64

	fieldSize int
	freeBits  int // always fieldSize - popcount(words)
}

// New creates a Bitfield of fieldSize bits, all free.
func New(fieldSize int) (*Bitfield, error) {
	b, err := NewBuilder(fieldSize)
	if err != nil {
		return nil, err
	}
	return b.build(make([]uint64, b.words)), nil
}

// WordsFor returns the number of 64-bit words needed to hold fieldSize bits.
func WordsFor(fieldSize int) int {
	if fieldSize <= 0 {
		return 0
	}
	return (fieldSize + bitsPerWord - 1) / bitsPerWord
}

// SizeOf returns the number of bytes of word storage needed for fieldSize bits.
func SizeOf(fieldSize int) int {
	return WordsFor(fieldSize) * bytesPerWord
}

// FieldSize returns the number of trackable bits.
func (b *Bitfield) FieldSize() int { return b.fieldSize }

// FreeBits returns the number of clear bits. O(1).
func (b *Bitfield) FreeBits() int { return b.freeBits }

// SetBits returns the number of set bits. O(1).
func (b *Bitfield) SetBits() int { return b.fieldSize - b.freeBits }

func (b *Bitfield) check(index int) error {
	if index < 0 || index >= b.fieldSize {
		return fmt.Errorf("%w: index %d, field size %d", ErrOutOfRange, index, b.fieldSize)
	}
	return nil
}

// IsSet reports whether the bit at index is set.
func (b *Bitfield) IsSet(index int) (bool, error) {
	if err := b.check(index); err != nil {
		return false, err
	}
	return b.bits.Test(uint(index)), nil
}

// FirstFree returns the lowest clear bit. The boolean is false when every
// bit is set.
//
// The scan skips any word whose complement is zero, so it costs one
// comparison per full word rather than one per bit.
func (b *Bitfield) FirstFree() (int, bool) {
	if b.freeBits == 0 {
		return 0, false
	}
	i, ok := b.bits.NextClear(0)
	if !ok || int(i) >= b.fieldSize {
		return 0, false
	}
	return int(i), true
}

// FirstSet returns the lowest set bit. The boolean is false when no bit is set.
func (b *Bitfield) FirstSet() (int, bool) {
	if b.freeBits == b.fieldSize {
		return 0, false
	}
	i, ok := b.bits.NextSet(0)
	if !ok || int(i) >= b.fieldSize {
		return 0, false
	}
	return int(i), true
}

// Set marks the bit at index occupied. Setting a set bit is a no-op.
func (b *Bitfield) Set(index int) error {
	if err := b.check(index); err != nil {
		return err
	}
	if b.bits.Test(uint(index)) {
		return nil
	}
	b.bits.Set(uint(index))
	b.freeBits--
	return nil
}

// Clear marks the bit at index free. Clearing a clear bit is a no-op.
func (b *Bitfield) Clear(index int) error {
	if err := b.check(index); err != nil {
		return err
	}
	if !b.bits.Test(uint(index)) {
		return nil
	}
	b.bits.Clear(uint(index))
	b.freeBits++
	return nil
}

// Toggle flips the bit at index.
func (b *Bitfield) Toggle(index int) error {
	if err := b.check(index); err != nil {
		return err
	}
	if b.bits.Test(uint(index)) {
		b.freeBits++
	} else {
		b.freeBits--
	}
	b.bits.Flip(uint(index))
	return nil
}

// Reset clears every bit.
func (b *Bitfield) Reset() {
	b.bits.ClearAll()
	b.freeBits = b.fieldSize
}

// Verify recounts the stored bits and checks them against the cached free
// count. It does not modify the Bitfield.
func (b *Bitfield) Verify() error {
	set := int(b.bits.Count())
	if set != b.fieldSize-b.freeBits {
		return fmt.Errorf("%w: %d bits set, cached free count %d of %d",
			ErrCorrupt, set, b.freeBits, b.fieldSize)
	}
	return nil
}

// String returns a short description for logs.
func (b *Bitfield) String() string {
	return fmt.Sprintf("Bitfield{size=%d free=%d}", b.fieldSize, b.freeBits)
}
