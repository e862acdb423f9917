package region

import "errors"

var (
	// ErrExhausted indicates the source cannot supply the requested bytes.
	ErrExhausted = errors.New("region: source exhausted")

	// ErrInvalidSize indicates a request for zero or negative bytes.
	ErrInvalidSize = errors.New("region: size must be positive")

	// ErrUnknownRegion indicates a release of a region this source did not
	// hand out, or one already released.
	ErrUnknownRegion = errors.New("region: unknown or already released region")

	// ErrUnknownKind indicates an unsupported source name passed to New.
	ErrUnknownKind = errors.New("region: unknown source kind")
)
