package alloc

import "errors"

var (
	// ErrGrowFail indicates the address space could not be grown: the host
	// refused or the configured page limit was reached. Fatal for Malloc.
	ErrGrowFail = errors.New("alloc: grow failed")

	// ErrTooLarge indicates a request that cannot fit even in a fully grown
	// address space.
	ErrTooLarge = errors.New("alloc: request larger than address space")

	// ErrCorrupt indicates the block chain violates its invariants (a link
	// that does not point forward, a header outside the space, a size smaller
	// than a header).
	ErrCorrupt = errors.New("alloc: corrupt block chain")

	// ErrForeignGrowth indicates the address space was grown by someone other
	// than the allocator, leaving a gap after the tail block.
	ErrForeignGrowth = errors.New("alloc: address space grown outside the allocator")

	// ErrBadPtr indicates a pointer that is not the payload of a live block.
	ErrBadPtr = errors.New("alloc: bad pointer")

	// ErrBadPages indicates a non-positive page count.
	ErrBadPages = errors.New("alloc: page count must be positive")
)
