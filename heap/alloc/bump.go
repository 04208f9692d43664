package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/internal/format"
)

// BumpAllocator is an append-only allocator over the same in-band block
// format as Manager. It carves every allocation from the last block of the
// chain and never searches or coalesces, which makes it a baseline for
// workloads that allocate once and drop everything together.
//
// Key characteristics:
//   - O(1) allocation: the last block is the bump region
//   - Free only flips the free flag of a validated block; interior blocks are
//     never reused, so the space only grows
//   - Lazy init: the first allocation grows the first page
//   - The chain stays walkable and verifiable (verify.ChainStructure holds;
//     verify.Coalesced generally does not)
//
// NOT thread-safe.
type BumpAllocator struct {
	chain

	// last is the address of the final block in the chain: either the free
	// bump region or, when an allocation consumed it exactly, an in-use block.
	last heap.Ptr
}

// NewBump creates a BumpAllocator over sp.
//
// Parameters:
//   - sp: The address space to allocate from
//   - dt: Dirty tracker notified of every header write (can be nil)
//   - cfg: Limits and logging (use nil for DefaultConfig)
func NewBump(sp heap.Space, dt DirtyTracker, cfg *Config) *BumpAllocator {
	return &BumpAllocator{chain: newChain(sp, dt, cfg)}
}

// Alloc carves size bytes from the end of the chain, growing the space until
// the bump region is large enough.
func (ba *BumpAllocator) Alloc(size uint32) (heap.Ptr, error) {
	ba.stats.AllocCalls++

	needed := format.AlignWord(uint64(size)) + format.HeaderSize
	if needed > uint64(ba.cfg.MaxPages)*heap.PageSize {
		return heap.Null, fmt.Errorf("%w: %d bytes with a limit of %d pages", ErrTooLarge, size, ba.cfg.MaxPages)
	}

	if !ba.initialized {
		if err := ba.ensureInit(); err != nil {
			return heap.Null, err
		}
		ba.last = ba.head
	}

	grows := ba.stats.GrowCalls
	data := ba.sp.Bytes()
	h, err := ba.read(data, ba.last)
	if err != nil {
		return heap.Null, err
	}
	for !h.Free || uint64(h.Size) < needed {
		page, err := ba.growOnePage()
		if err != nil {
			return heap.Null, err
		}
		data = ba.sp.Bytes()
		if ba.last, err = ba.attach(data, ba.last, h, page); err != nil {
			return heap.Null, err
		}
		if h, err = ba.read(data, ba.last); err != nil {
			return heap.Null, err
		}
	}
	if ba.stats.GrowCalls == grows {
		ba.stats.AllocFastPath++
	} else {
		ba.stats.AllocSlowPath++
	}

	addr := ba.last
	used := uint32(needed)
	if leftover := h.Size - used; leftover >= format.HeaderSize {
		rest := addr + used
		if err := ba.write(data, rest, format.Header{Size: leftover, Free: true}); err != nil {
			return heap.Null, err
		}
		h.Next = rest
		h.Size = used
		ba.last = rest
		ba.stats.SplitCount++
	}
	h.Free = false
	if err := ba.write(data, addr, h); err != nil {
		return heap.Null, err
	}
	ba.stats.BytesAllocated += int64(h.Size)
	return addr + format.HeaderSize, nil
}

// Free marks the block at p free without reusing or merging it. Only the
// final block can be handed out again, because it becomes the bump region.
// Invalid pointers are ignored, as with Manager.
func (ba *BumpAllocator) Free(p heap.Ptr) error {
	ba.stats.FreeCalls++
	if !ba.initialized || p < format.HeaderSize {
		ba.stats.FreeIgnored++
		return nil
	}

	addr := p - format.HeaderSize
	data := ba.sp.Bytes()
	ok, err := ba.isBlock(data, addr)
	if err != nil {
		return err
	}
	if !ok {
		ba.stats.FreeIgnored++
		return nil
	}
	h, err := ba.read(data, addr)
	if err != nil {
		return err
	}
	if h.Free {
		ba.stats.FreeRepeat++
		return nil
	}
	h.Free = true
	ba.stats.BytesFreed += int64(h.Size)
	return ba.write(data, addr, h)
}

// GrowByPages grows the space and keeps the bump pointer on the last block.
func (ba *BumpAllocator) GrowByPages(numPages int) error {
	if err := ba.chain.GrowByPages(numPages); err != nil {
		return err
	}
	last, _, err := ba.tail(ba.sp.Bytes())
	if err != nil {
		return err
	}
	ba.last = last
	return nil
}

// Compile-time interface check
var _ Allocator = (*BumpAllocator)(nil)
