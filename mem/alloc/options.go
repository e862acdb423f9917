package alloc

import (
	"github.com/sirupsen/logrus"

	"github.com/joshuapare/blockkit/internal/logger"
)

// Option configures a SmallBlockAllocator.
type Option func(*options)

type options struct {
	log        *logrus.Entry
	zeroOnFree bool
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Component("sba")
	}
	return o
}

// WithLogger sets the log entry the allocator writes to.
func WithLogger(e *logrus.Entry) Option {
	return func(o *options) { o.log = e }
}

// WithZeroOnFree scrubs each block as it is freed.
func WithZeroOnFree() Option {
	return func(o *options) { o.zeroOnFree = true }
}
