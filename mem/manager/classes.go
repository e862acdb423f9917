package manager

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidClass indicates a malformed or conflicting class table.
var ErrInvalidClass = errors.New("manager: invalid class")

// Class describes one pool: blocks of BlockSize bytes, BlockCount of them.
type Class struct {
	BlockSize  int
	BlockCount int
}

// String returns the class in the "SIZExCOUNT" form accepted by ParseClasses.
func (c Class) String() string {
	return fmt.Sprintf("%dx%d", c.BlockSize, c.BlockCount)
}

// DefaultClasses is a graded table of small block sizes: doubling sizes,
// halving counts, 4KB of blocks per class.
var DefaultClasses = []Class{
	{BlockSize: 16, BlockCount: 256},
	{BlockSize: 32, BlockCount: 128},
	{BlockSize: 64, BlockCount: 64},
	{BlockSize: 128, BlockCount: 32},
	{BlockSize: 256, BlockCount: 16},
}

// ParseClasses parses a comma-separated list such as "16x64,32x32".
func ParseClasses(s string) ([]Class, error) {
	var classes []Class
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		sizeStr, countStr, ok := strings.Cut(field, "x")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not SIZExCOUNT", ErrInvalidClass, field)
		}
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return nil, fmt.Errorf("%w: block size in %q: %w", ErrInvalidClass, field, err)
		}
		count, err := strconv.Atoi(countStr)
		if err != nil {
			return nil, fmt.Errorf("%w: block count in %q: %w", ErrInvalidClass, field, err)
		}
		classes = append(classes, Class{BlockSize: size, BlockCount: count})
	}
	if _, err := normalize(classes); err != nil {
		return nil, err
	}
	return classes, nil
}

// normalize returns a sorted copy of classes after validating them.
func normalize(classes []Class) ([]Class, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: no classes", ErrInvalidClass)
	}
	sorted := slices.Clone(classes)
	slices.SortFunc(sorted, func(a, b Class) int { return a.BlockSize - b.BlockSize })

	for i, c := range sorted {
		if c.BlockSize <= 0 || c.BlockCount <= 0 || c.BlockCount > math.MaxInt32/c.BlockSize {
			return nil, fmt.Errorf("%w: %s", ErrInvalidClass, c)
		}
		if i > 0 && sorted[i-1].BlockSize == c.BlockSize {
			return nil, fmt.Errorf("%w: duplicate block size %d", ErrInvalidClass, c.BlockSize)
		}
	}
	return sorted, nil
}
