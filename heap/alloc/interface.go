package alloc

import (
	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/heap/dirty"
)

// DirtyTracker is a type alias for the canonical interface defined in heap/dirty.
type DirtyTracker = dirty.DirtyTracker

// Allocator defines the interface shared by the heap allocators.
//
// Implementations:
//   - Manager: first-fit allocator with splitting and coalescing
//   - BumpAllocator: append-only allocator that never reuses interior blocks
type Allocator interface {
	// Alloc returns the payload address of a block holding at least size bytes.
	Alloc(size uint32) (heap.Ptr, error)

	// Free releases the block whose payload starts at p. Pointers that were
	// not returned by Alloc are ignored.
	Free(p heap.Ptr) error

	// GrowByPages grows the address space by numPages pages up front and
	// folds them into the chain.
	GrowByPages(numPages int) error

	// Walk calls fn for every block in address order until fn returns false.
	Walk(fn func(Block) bool) error

	// Head returns the address of the first block and whether the heap has
	// been initialized.
	Head() (heap.Ptr, bool)

	// Space returns the address space being managed.
	Space() heap.Space

	// GetStats returns operation counters.
	GetStats() Stats
}
