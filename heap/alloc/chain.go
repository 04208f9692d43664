package alloc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/internal/format"
)

// chain is the in-band block list shared by the allocators. It owns the
// address space, the head pointer, page growth, and the header codec; the
// allocators add their placement policy on top.
//
// Every block header lives in the space itself. For any block b:
//   - b.Next is 0 (tail) or exactly b.Addr + b.Size
//   - the tail ends at the end of the space
type chain struct {
	sp  heap.Space
	dt  DirtyTracker // Dirty range tracker for header writes (nil when unused)
	cfg Config
	log *slog.Logger

	head        heap.Ptr
	initialized bool

	stats Stats

	// Test hook: called before each page is grown with the current page count (nil in production)
	onGrow func(pages uint32)
}

func newChain(sp heap.Space, dt DirtyTracker, cfg *Config) chain {
	c := cfg.normalize()
	return chain{
		sp:  sp,
		dt:  dt,
		cfg: c,
		log: c.Logger,
	}
}

// Space returns the managed address space.
func (c *chain) Space() heap.Space { return c.sp }

// Head returns the address of the first block and whether the heap exists yet.
func (c *chain) Head() (heap.Ptr, bool) { return c.head, c.initialized }

// Initialized reports whether the first allocation has created the heap.
func (c *chain) Initialized() bool { return c.initialized }

// GetStats returns a copy of the operation counters.
func (c *chain) GetStats() Stats { return c.stats }

// read decodes the header at addr and checks that it stays inside data.
func (c *chain) read(data []byte, addr heap.Ptr) (format.Header, error) {
	h, err := format.ReadHeader(data, addr)
	if err != nil {
		return h, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if h.End(addr) > uint64(len(data)) {
		return h, fmt.Errorf("%w: block 0x%X of %d bytes ends past the space (%d bytes)",
			ErrCorrupt, addr, h.Size, len(data))
	}
	return h, nil
}

// write encodes h at addr and reports the header to the dirty tracker.
func (c *chain) write(data []byte, addr heap.Ptr, h format.Header) error {
	if err := format.PutHeader(data, addr, h); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if c.dt != nil {
		c.dt.Add(int(addr), format.HeaderSize)
	}
	return nil
}

// checkLink verifies that a non-tail block links to the block immediately
// after it. A backward or skipping link would make every walk unbounded.
func checkLink(addr heap.Ptr, h format.Header) error {
	if uint64(h.Next) != h.End(addr) {
		return fmt.Errorf("%w: block 0x%X (size %d) links to 0x%X", ErrCorrupt, addr, h.Size, h.Next)
	}
	return nil
}

// growOnePage grows the space by exactly one page and writes a free block
// covering it. It returns the address of the new block.
func (c *chain) growOnePage() (heap.Ptr, error) {
	pages := c.sp.Pages()
	if pages >= c.cfg.MaxPages {
		c.log.Warn("address space exhausted", "pages", pages, "max_pages", c.cfg.MaxPages)
		return heap.Null, fmt.Errorf("%w: address space at %d of %d pages", ErrGrowFail, pages, c.cfg.MaxPages)
	}
	if c.onGrow != nil {
		c.onGrow(pages)
	}
	prev, ok := c.sp.Grow(1)
	if !ok {
		c.log.Warn("host refused to grow address space", "pages", pages)
		return heap.Null, fmt.Errorf("%w: host refused growth at %d pages", ErrGrowFail, pages)
	}

	addr := heap.Ptr(prev) * heap.PageSize
	if err := c.write(c.sp.Bytes(), addr, format.Header{Size: heap.PageSize, Free: true}); err != nil {
		return heap.Null, err
	}
	c.stats.GrowCalls++
	c.log.Debug("grew address space", "page", prev, "addr", addr)
	return addr, nil
}

// ensureInit creates the head block on first use.
func (c *chain) ensureInit() error {
	if c.initialized {
		return nil
	}
	addr, err := c.growOnePage()
	if err != nil {
		return err
	}
	c.head = addr
	c.initialized = true
	c.log.Debug("heap initialized", "head", addr)
	return nil
}

// attach folds the page grown at page into the chain after the tail block.
// A free tail absorbs the page in place; an in-use tail gets the page linked
// after it. attach returns the block a search should continue from.
func (c *chain) attach(data []byte, tail heap.Ptr, h format.Header, page heap.Ptr) (heap.Ptr, error) {
	if uint64(page) != h.End(tail) {
		return heap.Null, fmt.Errorf("%w: tail 0x%X ends at 0x%X but new page starts at 0x%X",
			ErrForeignGrowth, tail, h.End(tail), page)
	}
	if h.Free {
		h.Size += heap.PageSize
		c.stats.TailExtends++
		return tail, c.write(data, tail, h)
	}
	h.Next = page
	return page, c.write(data, tail, h)
}

// tail walks to the last block.
func (c *chain) tail(data []byte) (heap.Ptr, format.Header, error) {
	cur := c.head
	for {
		h, err := c.read(data, cur)
		if err != nil {
			return heap.Null, h, err
		}
		if h.Next == format.NoNext {
			return cur, h, nil
		}
		if err := checkLink(cur, h); err != nil {
			return heap.Null, h, err
		}
		cur = h.Next
	}
}

// GrowByPages grows the space by numPages pages immediately and folds each
// into the chain the same way an allocation that ran out of room would.
func (c *chain) GrowByPages(numPages int) error {
	if numPages <= 0 {
		return fmt.Errorf("%w: got %d", ErrBadPages, numPages)
	}
	for range numPages {
		if !c.initialized {
			if err := c.ensureInit(); err != nil {
				return err
			}
			continue
		}
		data := c.sp.Bytes()
		tail, h, err := c.tail(data)
		if err != nil {
			return err
		}
		page, err := c.growOnePage()
		if err != nil {
			return err
		}
		if _, err := c.attach(c.sp.Bytes(), tail, h, page); err != nil {
			return err
		}
	}
	return nil
}

// isBlock reports whether addr is the header of a block in the chain: the
// head itself, or the target of some block's next link. The walk stops at
// the tail or as soon as the links pass addr.
func (c *chain) isBlock(data []byte, addr heap.Ptr) (bool, error) {
	if !c.initialized {
		return false, nil
	}
	if addr == c.head {
		return true, nil
	}
	cur := c.head
	for {
		h, err := c.read(data, cur)
		if err != nil {
			return false, err
		}
		switch {
		case h.Next == format.NoNext:
			return false, nil
		case h.Next == addr:
			return true, nil
		case h.Next > addr:
			return false, nil
		}
		if err := checkLink(cur, h); err != nil {
			return false, err
		}
		cur = h.Next
	}
}

// Walk calls fn for every block from the head in address order until fn
// returns false. An uninitialized heap has no blocks.
func (c *chain) Walk(fn func(Block) bool) error {
	if !c.initialized {
		return nil
	}
	data := c.sp.Bytes()
	cur := c.head
	for {
		h, err := c.read(data, cur)
		if err != nil {
			return err
		}
		if !fn(Block{Addr: cur, Next: h.Next, Size: h.Size, Free: h.Free}) {
			return nil
		}
		if h.Next == format.NoNext {
			return nil
		}
		if err := checkLink(cur, h); err != nil {
			return err
		}
		cur = h.Next
	}
}

// WalkContext is Walk with cancellation checked between blocks.
func (c *chain) WalkContext(ctx context.Context, fn func(Block) bool) error {
	var ctxErr error
	err := c.Walk(func(b Block) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return false
		}
		return fn(b)
	})
	if err != nil {
		return err
	}
	return ctxErr
}

// Blocks returns a snapshot of the chain.
func (c *chain) Blocks() ([]Block, error) {
	var out []Block
	err := c.Walk(func(b Block) bool {
		out = append(out, b)
		return true
	})
	return out, err
}

// liveBlock returns the in-use block whose payload starts at p.
func (c *chain) liveBlock(p heap.Ptr) (heap.Ptr, format.Header, error) {
	if p < format.HeaderSize {
		return heap.Null, format.Header{}, fmt.Errorf("%w: 0x%X", ErrBadPtr, p)
	}
	addr := p - format.HeaderSize
	data := c.sp.Bytes()
	ok, err := c.isBlock(data, addr)
	if err != nil {
		return heap.Null, format.Header{}, err
	}
	if !ok {
		return heap.Null, format.Header{}, fmt.Errorf("%w: 0x%X is not a block payload", ErrBadPtr, p)
	}
	h, err := c.read(data, addr)
	if err != nil {
		return heap.Null, h, err
	}
	if h.Free {
		return heap.Null, h, fmt.Errorf("%w: 0x%X has been released", ErrBadPtr, p)
	}
	return addr, h, nil
}

// UsableSize returns the payload capacity of the live allocation at p. It can
// exceed the requested size when a split would have left a remainder too
// small to carry its own header.
func (c *chain) UsableSize(p heap.Ptr) (uint32, error) {
	_, h, err := c.liveBlock(p)
	if err != nil {
		return 0, err
	}
	return h.PayloadCap(), nil
}

// Payload returns a view of the first n payload bytes of the live
// allocation at p. The view never covers a header and is invalidated by any
// operation that grows the space.
func (c *chain) Payload(p heap.Ptr, n uint32) ([]byte, error) {
	_, h, err := c.liveBlock(p)
	if err != nil {
		return nil, err
	}
	if n > h.PayloadCap() {
		return nil, fmt.Errorf("%w: %d bytes requested from a %d byte payload", ErrBadPtr, n, h.PayloadCap())
	}
	data := c.sp.Bytes()
	return data[p : uint64(p)+uint64(n) : uint64(p)+uint64(n)], nil
}

// Usage summarizes the current chain.
func (c *chain) Usage() (Usage, error) {
	u := Usage{Pages: c.sp.Pages()}
	err := c.Walk(func(b Block) bool {
		u.Blocks++
		u.HeapBytes += uint64(b.Size)
		if b.Free {
			u.FreeBlocks++
			u.FreeBytes += uint64(b.Size)
			u.LargestFree = max(u.LargestFree, b.Size)
		} else {
			u.UsedBlocks++
			u.UsedBytes += uint64(b.Size)
		}
		return true
	})
	return u, err
}
