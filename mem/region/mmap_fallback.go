//go:build !unix

package region

// Mmap falls back to a Heap where anonymous mappings are not available.
type Mmap struct {
	*Heap
}

// NewMmap returns an Mmap source.
func NewMmap() *Mmap {
	return &Mmap{Heap: NewHeap(0)}
}
