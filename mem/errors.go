package mem

import "errors"

var (
	// ErrOutOfMemory indicates that the allocator cannot satisfy the request.
	// It is always recoverable by the caller.
	ErrOutOfMemory = errors.New("mem: out of memory")

	// ErrBadAlign indicates an alignment that is zero or not a power of two.
	ErrBadAlign = errors.New("mem: alignment must be a power of two")

	// ErrBadRegion indicates a Region that does not belong to the allocator's
	// range.
	ErrBadRegion = errors.New("mem: region outside allocator range")

	// ErrZeroSize indicates a zero-byte allocation request.
	ErrZeroSize = errors.New("mem: must allocate at least 1 byte")
)
