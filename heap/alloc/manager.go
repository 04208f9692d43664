package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/internal/format"
)

// Manager is a first-fit heap over a linear address space.
//   - The heap is created lazily: the first allocation grows the first page
//     and makes it the head block.
//   - Alloc walks the chain in address order and takes the first free block
//     that fits, growing one page at a time when nothing does.
//   - Fitting blocks are split when the remainder can carry its own header.
//   - Free validates the pointer against the chain, marks the block free,
//     and runs a full coalescing pass.
//
// NOT thread-safe.
type Manager struct {
	chain
}

// New creates a Manager over sp.
//
// Parameters:
//   - sp: The address space to manage. Pages it already has are left alone;
//     the heap starts at the first page the Manager grows.
//   - dt: Dirty tracker notified of every header write (can be nil)
//   - cfg: Limits and logging (use nil for DefaultConfig)
func New(sp heap.Space, dt DirtyTracker, cfg *Config) *Manager {
	return &Manager{chain: newChain(sp, dt, cfg)}
}

// Alloc returns the payload address of a block with room for at least size
// bytes. The payload is not zeroed. Alloc(0) returns a valid, non-null
// pointer to a header-only block.
//
// Errors:
//   - ErrTooLarge: the request cannot fit even at the page limit
//   - ErrGrowFail: the space could not grow far enough
//   - ErrCorrupt, ErrForeignGrowth: the chain can no longer be trusted
func (m *Manager) Alloc(size uint32) (heap.Ptr, error) {
	m.stats.AllocCalls++

	needed := format.AlignWord(uint64(size)) + format.HeaderSize
	if needed > uint64(m.cfg.MaxPages)*heap.PageSize {
		return heap.Null, fmt.Errorf("%w: %d bytes with a limit of %d pages", ErrTooLarge, size, m.cfg.MaxPages)
	}

	grows := m.stats.GrowCalls
	addr, h, err := m.findFit(uint32(needed))
	if err != nil {
		return heap.Null, err
	}
	if m.stats.GrowCalls == grows {
		m.stats.AllocFastPath++
	} else {
		m.stats.AllocSlowPath++
	}

	data := m.sp.Bytes()
	used := uint32(needed)
	if leftover := h.Size - used; leftover >= format.HeaderSize {
		rest := addr + used
		if err := m.write(data, rest, format.Header{Next: h.Next, Size: leftover, Free: true}); err != nil {
			return heap.Null, err
		}
		h.Next = rest
		h.Size = used
		m.stats.SplitCount++
	}
	h.Free = false
	if err := m.write(data, addr, h); err != nil {
		return heap.Null, err
	}
	m.stats.BytesAllocated += int64(h.Size)
	return addr + format.HeaderSize, nil
}

// Malloc is Alloc for callers that cannot handle failure. Exhaustion and
// corruption are unrecoverable for such callers, so Malloc panics with the
// underlying error instead of returning a null pointer.
func (m *Manager) Malloc(size uint32) heap.Ptr {
	p, err := m.Alloc(size)
	if err != nil {
		panic(err)
	}
	return p
}

// findFit returns the first free block of at least needed bytes, growing the
// space a page at a time until one exists. Every iteration either returns,
// advances along the chain, or grows the space, and growth stops at the page
// limit, so the loop is bounded.
func (m *Manager) findFit(needed uint32) (heap.Ptr, format.Header, error) {
	if err := m.ensureInit(); err != nil {
		return heap.Null, format.Header{}, err
	}

	data := m.sp.Bytes()
	cur := m.head
	for {
		h, err := m.read(data, cur)
		if err != nil {
			return heap.Null, h, err
		}
		if h.Free && h.Size >= needed {
			return cur, h, nil
		}
		if h.Next != format.NoNext {
			if err := checkLink(cur, h); err != nil {
				return heap.Null, h, err
			}
			cur = h.Next
			continue
		}

		// Tail reached without a fit. A single page may still be too small
		// for an oversized request, so keep growing.
		page, err := m.growOnePage()
		if err != nil {
			return heap.Null, h, err
		}
		data = m.sp.Bytes()
		if cur, err = m.attach(data, cur, h, page); err != nil {
			return heap.Null, h, err
		}
	}
}

// Free releases the block whose payload starts at p.
//
// Null pointers, pointers that are not the payload of a block in the chain,
// and calls made before the heap exists are silent no-ops. Releasing a block
// that is already free is accepted and changes nothing. Free only returns an
// error when the chain itself is corrupt.
func (m *Manager) Free(p heap.Ptr) error {
	m.stats.FreeCalls++

	if !m.initialized || p == heap.Null || p < format.HeaderSize {
		m.ignore(p)
		return nil
	}

	addr := p - format.HeaderSize
	data := m.sp.Bytes()
	ok, err := m.isBlock(data, addr)
	if err != nil {
		return err
	}
	if !ok {
		m.ignore(p)
		return nil
	}

	h, err := m.read(data, addr)
	if err != nil {
		return err
	}
	if h.Free {
		m.stats.FreeRepeat++
	} else {
		m.stats.BytesFreed += int64(h.Size)
	}
	h.Free = true
	if err := m.write(data, addr, h); err != nil {
		return err
	}
	return m.coalesceAll(data)
}

// Release is Free for callers that cannot handle failure; it panics only
// when the chain is corrupt.
func (m *Manager) Release(p heap.Ptr) {
	if err := m.Free(p); err != nil {
		panic(err)
	}
}

func (m *Manager) ignore(p heap.Ptr) {
	m.stats.FreeIgnored++
	m.log.Debug("ignored release", "ptr", p)
}

// coalesceAll walks the whole chain and merges every run of adjacent free
// blocks into its first block. After a merge the same block is examined
// again so runs of any length collapse in one pass.
func (m *Manager) coalesceAll(data []byte) error {
	cur := m.head
	for {
		h, err := m.read(data, cur)
		if err != nil {
			return err
		}
		if h.Next == format.NoNext {
			return nil
		}
		if err := checkLink(cur, h); err != nil {
			return err
		}
		next, err := m.read(data, h.Next)
		if err != nil {
			return err
		}
		if h.Free && next.Free {
			h.Size += next.Size
			h.Next = next.Next
			if err := m.write(data, cur, h); err != nil {
				return err
			}
			m.stats.MergeCount++
			continue
		}
		cur = h.Next
	}
}

// Compile-time interface check
var _ Allocator = (*Manager)(nil)
