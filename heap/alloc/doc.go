// Package alloc provides first-fit heap allocation over a page-growable
// linear address space.
//
// # Overview
//
// All bookkeeping lives inside the managed space. Every block starts with a
// 12-byte little-endian header:
//
//	+0  next   u32  address of the following block, 0 for the tail
//	+4  size   u32  total block size including the header
//	+8  flags  u32  bit 0 set when the block is free
//
// Blocks form a singly linked chain in address order. A block's next link is
// always its own end address, and the tail ends where the space ends, so the
// chain tiles the heap without gaps.
//
// # Allocator Interface
//
//   - Alloc(size): payload address of a block with room for size bytes
//   - Free(p): release the block whose payload starts at p
//   - GrowByPages(n): grow n pages up front
//   - Walk(fn): visit blocks in address order
//
// # Implementations
//
// Manager: first-fit allocator
//
//   - Lazy init: the first Alloc grows the first page
//   - Linear first-fit search from the head
//   - Growth one page at a time; a free tail absorbs the new page
//   - Split when the remainder can carry its own header
//   - Full coalescing pass after every release
//
// BumpAllocator: append-only baseline
//
//   - Allocates from the last block only
//   - Free flips the flag and never merges
//
// # Usage Example
//
//	sp := heap.NewSliceSpace(0, 16)
//	m := alloc.New(sp, nil, nil)
//
//	p, err := m.Alloc(100)
//	if err != nil {
//	    return err
//	}
//	buf, _ := m.Payload(p, 100)
//	copy(buf, "hello")
//
//	_ = m.Free(p)
//
// # Invalid Releases
//
// Free(p) only acts when p-12 is the head or the next link of some block.
// Null pointers, interior pointers, pointers from another heap, and repeated
// releases are ignored and counted in Stats.FreeIgnored / Stats.FreeRepeat.
//
// # Errors
//
// Alloc reports ErrGrowFail when the space cannot grow far enough and
// ErrTooLarge when the request exceeds the page limit outright. ErrCorrupt
// and ErrForeignGrowth mean the chain can no longer be trusted. Malloc and
// Release turn these into panics for callers that have no failure path.
//
// # Debugging
//
// Set HEAPKIT_LOG_ALLOC=1 to log page growth, exhaustion, and ignored
// releases to stderr, or pass a logger in Config.
//
// # Thread Safety
//
// Allocators are NOT thread-safe. Drive each heap from one goroutine at a
// time.
package alloc
