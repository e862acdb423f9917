// Package manager combines several small block allocators of graded block
// sizes into one memory manager.
//
// A Manager makes a single reservation from its Source and lays everything
// out inside it: first its own record of exhausted pools, then, for each
// class, the pool's bitfield storage followed by its blocks. Space is
// reserved with a bump allocator and the bitfields are placed into it, so
// the manager's bookkeeping lives in the memory it manages.
//
// Alloc picks the smallest class whose blocks fit the request and falls
// through to larger classes when that pool is exhausted. Free is routed to
// the pool whose region holds the address.
//
// Manager is not thread-safe.
package manager

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/joshuapare/blockkit/internal/logger"
	"github.com/joshuapare/blockkit/mem/alloc"
	"github.com/joshuapare/blockkit/mem/bitfield"
	"github.com/joshuapare/blockkit/mem/region"
)

// placementSlack covers the alignment padding the bump allocator may insert
// before the first allocation when the source returns an unaligned region.
const placementSlack = 8

// Manager routes allocations across pools of increasing block size.
type Manager struct {
	src     region.Source
	mem     []byte
	classes []Class
	pools   []*alloc.SmallBlockAllocator

	// exhausted has bit i set while pools[i] has no free block. Its storage
	// is the first allocation inside mem.
	exhausted *bitfield.Bitfield

	log    *logrus.Entry
	stats  Stats
	closed bool
}

// Stats holds manager-wide counters and a snapshot of each pool.
type Stats struct {
	Reserved     int // bytes obtained from the source
	Fallthroughs int // allocations served by a larger class than the best fit
	Exhausted    int // allocations no class could serve
	Pools        []alloc.Stats
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	log      *logrus.Entry
	poolOpts []alloc.Option
}

// WithLogger sets the log entry the manager and its pools write to.
func WithLogger(e *logrus.Entry) Option {
	return func(o *options) { o.log = e }
}

// WithPoolOptions passes options to every pool.
func WithPoolOptions(opts ...alloc.Option) Option {
	return func(o *options) { o.poolOpts = append(o.poolOpts, opts...) }
}

var _ alloc.Allocator = (*Manager)(nil)

// New reserves memory for every class from src and builds the pools.
// On failure nothing stays reserved.
func New(src region.Source, classes []Class, opts ...Option) (*Manager, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Component("manager")
	}

	sorted, err := normalize(classes)
	if err != nil {
		return nil, err
	}

	size, err := ReservationSize(sorted)
	if err != nil {
		return nil, err
	}
	mem, err := src.Obtain(size)
	if err != nil {
		return nil, fmt.Errorf("%w: manager reservation of %d bytes: %w", alloc.ErrNoSpace, size, err)
	}

	m, err := place(mem, sorted, o)
	if err != nil {
		if rerr := src.Release(mem); rerr != nil {
			err = multierror.Append(err, fmt.Errorf("manager: releasing reservation: %w", rerr))
		}
		return nil, err
	}
	m.src = src
	m.stats.Reserved = size

	m.log.WithFields(logrus.Fields{
		"classes":  len(sorted),
		"reserved": size,
	}).Debug("manager constructed")
	return m, nil
}

// ReservationSize returns the bytes New obtains for the given classes.
func ReservationSize(classes []Class) (int, error) {
	sorted, err := normalize(classes)
	if err != nil {
		return 0, err
	}
	size := placementSlack + bitfield.SizeOf(len(sorted))
	for _, c := range sorted {
		size += bitfield.SizeOf(c.BlockCount) + roundUp8(c.BlockSize*c.BlockCount)
	}
	return size, nil
}

func roundUp8(n int) int {
	return (n + 7) &^ 7
}

// place lays out the manager's bitfield and every pool inside mem.
func place(mem []byte, classes []Class, o options) (*Manager, error) {
	bump := alloc.NewBump(mem)
	m := &Manager{
		mem:     mem,
		classes: classes,
		pools:   make([]*alloc.SmallBlockAllocator, 0, len(classes)),
		log:     o.log,
	}

	fb, err := bitfield.NewBuilder(len(classes))
	if err != nil {
		return nil, err
	}
	_, buf, err := bump.Alloc(fb.Size())
	if err != nil {
		return nil, fmt.Errorf("manager: reserving pool table: %w", err)
	}
	if err := fb.PlaceInto(buf, &m.exhausted); err != nil {
		return nil, fmt.Errorf("manager: placing pool table: %w", err)
	}

	for _, c := range classes {
		_, meta, err := bump.Alloc(bitfield.SizeOf(c.BlockCount))
		if err != nil {
			return nil, fmt.Errorf("manager: reserving bitfield for %s: %w", c, err)
		}
		_, blocks, err := bump.Alloc(c.BlockSize * c.BlockCount)
		if err != nil {
			return nil, fmt.Errorf("manager: reserving blocks for %s: %w", c, err)
		}

		poolOpts := append([]alloc.Option{
			alloc.WithLogger(o.log.WithField("class", c.String())),
		}, o.poolOpts...)
		pool, err := alloc.NewSmallBlockAt(blocks, meta, c.BlockSize, c.BlockCount, poolOpts...)
		if err != nil {
			return nil, fmt.Errorf("manager: building pool %s: %w", c, err)
		}
		m.pools = append(m.pools, pool)
	}
	return m, nil
}

// Alloc serves size bytes from the smallest class that fits and has a free
// block. It fails with alloc.ErrTooLarge when size exceeds the largest
// class and alloc.ErrNoSpace when every fitting pool is exhausted.
func (m *Manager) Alloc(size int) (alloc.Addr, []byte, error) {
	if m.closed {
		return 0, nil, alloc.ErrClosed
	}
	if size < 0 {
		return 0, nil, fmt.Errorf("%w: request of %d bytes", alloc.ErrInvalidSize, size)
	}

	first := sort.Search(len(m.classes), func(i int) bool {
		return m.classes[i].BlockSize >= size
	})
	if first == len(m.classes) {
		return 0, nil, fmt.Errorf("%w: %d bytes exceeds largest class %s",
			alloc.ErrTooLarge, size, m.classes[len(m.classes)-1])
	}

	for i := first; i < len(m.pools); i++ {
		full, err := m.exhausted.IsSet(i)
		if err != nil {
			return 0, nil, fmt.Errorf("exhausted table: %w", err)
		}
		if full {
			continue
		}

		pool := m.pools[i]
		addr, buf, err := pool.Alloc(size)
		if errors.Is(err, alloc.ErrNoSpace) {
			if err := m.exhausted.Set(i); err != nil {
				return 0, nil, fmt.Errorf("exhausted table: %w", err)
			}
			continue
		}
		if err != nil {
			return 0, nil, err
		}

		if pool.BlocksFree() == 0 {
			if err := m.exhausted.Set(i); err != nil {
				// Leave the pool as it was so the table still matches it.
				return 0, nil, multierror.Append(fmt.Errorf("exhausted table: %w", err), pool.Free(addr)).ErrorOrNil()
			}
		}
		if i != first {
			m.stats.Fallthroughs++
		}
		return addr, buf, nil
	}

	m.stats.Exhausted++
	m.log.WithField("size", size).Debug("no pool can serve request")
	return 0, nil, fmt.Errorf("%w: no pool for %d bytes", alloc.ErrNoSpace, size)
}

// Free releases addr to the pool whose region holds it.
func (m *Manager) Free(addr alloc.Addr) error {
	if m.closed {
		return alloc.ErrClosed
	}
	i, ok := m.poolIndex(addr)
	if !ok {
		return fmt.Errorf("%w: %#x", alloc.ErrNotOwned, uintptr(addr))
	}
	if err := m.pools[i].Free(addr); err != nil {
		return err
	}
	return m.exhausted.Clear(i)
}

// poolIndex finds the pool whose block region holds addr.
func (m *Manager) poolIndex(addr alloc.Addr) (int, bool) {
	for i, pool := range m.pools {
		if pool.InRange(addr) {
			return i, true
		}
	}
	return 0, false
}

// Contains reports whether addr is a live allocation of any pool.
func (m *Manager) Contains(addr alloc.Addr) bool {
	if m.closed {
		return false
	}
	i, ok := m.poolIndex(addr)
	return ok && m.pools[i].Contains(addr)
}

// ClassOf returns the class of the pool holding addr.
func (m *Manager) ClassOf(addr alloc.Addr) (Class, bool) {
	if m.closed {
		return Class{}, false
	}
	i, ok := m.poolIndex(addr)
	if !ok {
		return Class{}, false
	}
	return m.classes[i], true
}

// HasSpace reports whether any pool has a free block.
func (m *Manager) HasSpace() bool {
	if m.closed {
		return false
	}
	_, ok := m.exhausted.FirstFree()
	return ok
}

// BlocksFree returns the free blocks across all pools.
func (m *Manager) BlocksFree() int {
	if m.closed {
		return 0
	}
	total := 0
	for _, pool := range m.pools {
		total += pool.BlocksFree()
	}
	return total
}

// Classes returns the classes in ascending block size.
func (m *Manager) Classes() []Class {
	return append([]Class(nil), m.classes...)
}

// Stats returns manager counters and a snapshot of every pool.
func (m *Manager) Stats() Stats {
	s := m.stats
	s.Pools = make([]alloc.Stats, len(m.pools))
	for i, pool := range m.pools {
		s.Pools[i] = pool.Stats()
	}
	return s
}

// Verify checks every pool's bitfield and that the exhausted-pool table
// agrees with the pools.
func (m *Manager) Verify() error {
	if m.closed {
		return alloc.ErrClosed
	}
	var result *multierror.Error
	if err := m.exhausted.Verify(); err != nil {
		result = multierror.Append(result, err)
	}
	for i, pool := range m.pools {
		if err := pool.Verify(); err != nil {
			result = multierror.Append(result, fmt.Errorf("pool %s: %w", m.classes[i], err))
		}
		full, err := m.exhausted.IsSet(i)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("pool %s: exhausted table: %w", m.classes[i], err))
			continue
		}
		if full != (pool.BlocksFree() == 0) {
			result = multierror.Append(result, fmt.Errorf("%w: pool %s marked exhausted=%t with %d free",
				bitfield.ErrCorrupt, m.classes[i], full, pool.BlocksFree()))
		}
	}
	return result.ErrorOrNil()
}

// Close closes every pool and releases the reservation. Closing twice is a no-op.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	var result *multierror.Error
	for _, pool := range m.pools {
		if err := pool.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if m.src != nil {
		if err := m.src.Release(m.mem); err != nil {
			result = multierror.Append(result, fmt.Errorf("manager: releasing reservation: %w", err))
		}
	}
	m.mem, m.exhausted = nil, nil

	m.log.Debug("manager closed")
	return result.ErrorOrNil()
}
