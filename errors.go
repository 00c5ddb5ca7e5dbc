package logger

import "github.com/pkg/errors"

// Error kinds reported across the sink I/O and config-load boundaries.
// The hot path (Push, Alloc, record construction) never returns one of
// these; failures there are absorbed into dropCount instead.
var (
	ErrSinkIO     = errors.New("logger: sink i/o failure")
	ErrConfig     = errors.New("logger: invalid configuration")
	ErrNotRunning = errors.New("logger: not running")
	ErrRotateFail = errors.New("logger: rotation failed")

	// ErrBackpressure and ErrBufferPool name the two kinds spec.md §7
	// documents as "never thrown" — backpressure exhaustion only ever
	// increments dropCount, and buffer-pool exhaustion only ever falls
	// back to a fresh heap allocation. Both sentinels exist so callers
	// that errors.Is against the full taxonomy compile, but neither is
	// ever returned by this package.
	ErrBackpressure = errors.New("logger: backpressure exhaustion")
	ErrBufferPool   = errors.New("logger: buffer pool exhaustion")
)

// wrapSinkErr annotates err with the sink name for diagnostics while
// preserving the original cause for errors.Unwrap/errors.As.
func wrapSinkErr(sink string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "sink %s", sink)
}
