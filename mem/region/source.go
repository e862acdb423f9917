package region

import (
	"fmt"
	"unsafe"
)

//go:generate mockgen -source=source.go -destination=source_mocks.go -package=region

// Source obtains and releases contiguous byte regions.
type Source interface {
	// Obtain returns a zeroed region of exactly size bytes whose address
	// stays fixed until Release. It fails with ErrExhausted when the
	// source cannot supply the bytes.
	Obtain(size int) ([]byte, error)

	// Release returns a region previously handed out by Obtain.
	Release(buf []byte) error
}

// Source kinds accepted by New.
const (
	KindHeap = "heap"
	KindMmap = "mmap"
)

// New returns a Source of the given kind with default settings.
func New(kind string) (Source, error) {
	switch kind {
	case KindHeap, "":
		return NewHeap(0), nil
	case KindMmap:
		return NewMmap(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// baseOf returns the address of buf's first byte, or 0 for an empty slice.
func baseOf(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}
