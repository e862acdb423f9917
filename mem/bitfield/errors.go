package bitfield

import "errors"

var (
	// ErrOutOfRange indicates a bit index outside [0, FieldSize()).
	ErrOutOfRange = errors.New("bitfield: index out of range")

	// ErrInvalidSize indicates a field size that is not positive.
	ErrInvalidSize = errors.New("bitfield: field size must be positive")

	// ErrShortBuffer indicates a placement buffer smaller than Builder.Size().
	ErrShortBuffer = errors.New("bitfield: placement buffer too small")

	// ErrMisaligned indicates a placement buffer that does not start on a word boundary.
	ErrMisaligned = errors.New("bitfield: placement buffer not word aligned")

	// ErrCorrupt indicates the cached free count disagrees with the stored bits.
	ErrCorrupt = errors.New("bitfield: free count does not match stored bits")
)
