//go:build unix

package region

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Mmap is a Source backed by anonymous private memory mappings.
// Regions are page aligned and live outside the Go heap.
type Mmap struct {
	mu   sync.Mutex
	live map[uintptr]int // region base -> size
}

// NewMmap returns an Mmap source.
func NewMmap() *Mmap {
	return &Mmap{live: make(map[uintptr]int)}
}

// Obtain implements Source.
func (m *Mmap) Obtain(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %d bytes: %w", ErrExhausted, size, err)
	}

	m.mu.Lock()
	m.live[baseOf(data)] = size
	m.mu.Unlock()
	return data, nil
}

// Release implements Source.
func (m *Mmap) Release(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := baseOf(buf)
	size, ok := m.live[base]
	if !ok || size != len(buf) {
		return fmt.Errorf("%w: %#x (%d bytes)", ErrUnknownRegion, base, len(buf))
	}
	if err := unix.Munmap(buf); err != nil {
		return fmt.Errorf("region: munmap %#x: %w", base, err)
	}
	delete(m.live, base)
	return nil
}
