package alloc

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/heap/dirty"
	"github.com/joshuapare/heapkit/internal/format"
)

// TestManager_LazyInit tests that nothing is grown until the first allocation.
func TestManager_LazyInit(t *testing.T) {
	m, sp := newTestManager(t, 0)

	require.False(t, m.Initialized())
	require.Zero(t, sp.Pages(), "New must not grow the space")

	require.NoError(t, m.Free(12), "Free before init should be a no-op")
	require.Zero(t, sp.Pages())
	require.Equal(t, 1, m.GetStats().FreeIgnored)

	p, err := m.Alloc(100)
	require.NoError(t, err)
	require.Equal(t, heap.Ptr(12), p, "first payload follows the head header")
	require.True(t, m.Initialized())
	require.Equal(t, uint32(1), sp.Pages())

	head, ok := m.Head()
	require.True(t, ok)
	require.Equal(t, heap.Ptr(0), head)
	requireInvariants(t, m, true)
}

// TestManager_AllocSplits tests that a fitting block is split and the
// remainder becomes a free block right after it.
func TestManager_AllocSplits(t *testing.T) {
	m, _ := newTestManager(t, 0)

	_, err := m.Alloc(100)
	require.NoError(t, err)

	got := blocks(t, m)
	require.Len(t, got, 2)
	assert.Equal(t, Block{Addr: 0, Next: 112, Size: 112, Free: false}, got[0])
	assert.Equal(t, Block{Addr: 112, Next: 0, Size: heap.PageSize - 112, Free: true}, got[1])
	assert.Equal(t, 1, m.GetStats().SplitCount)
}

// TestManager_AllocZero tests that a zero-byte request yields a header-only block.
func TestManager_AllocZero(t *testing.T) {
	m, _ := newTestManager(t, 0)

	p, err := m.Alloc(0)
	require.NoError(t, err)
	require.NotEqual(t, heap.Null, p)

	got := blocks(t, m)
	require.Equal(t, uint32(HeaderSize), got[0].Size)

	n, err := m.UsableSize(p)
	require.NoError(t, err)
	require.Zero(t, n)

	q, err := m.Alloc(0)
	require.NoError(t, err)
	require.NotEqual(t, p, q, "distinct zero-size allocations get distinct pointers")
	requireInvariants(t, m, true)
}

// TestManager_WordAlignment tests that every payload and block size is word aligned.
func TestManager_WordAlignment(t *testing.T) {
	m, _ := newTestManager(t, 0)

	for size := uint32(1); size <= 33; size++ {
		p, err := m.Alloc(size)
		require.NoError(t, err, "Alloc(%d)", size)
		assert.Zero(t, p%format.WordAlignment, "payload for size %d", size)

		n, err := m.UsableSize(p)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, size)
		assert.Zero(t, n%format.WordAlignment)
	}
	requireInvariants(t, m, true)
}

// TestManager_NoSplitWhenRemainderTooSmall tests that a remainder that cannot
// carry its own header stays inside the allocated block.
func TestManager_NoSplitWhenRemainderTooSmall(t *testing.T) {
	m, _ := newTestManager(t, 0)

	// 12 + 65520 leaves 4 bytes in the first page.
	p, err := m.Alloc(65520)
	require.NoError(t, err)

	got := blocks(t, m)
	require.Len(t, got, 1)
	require.Equal(t, uint32(heap.PageSize), got[0].Size)
	require.False(t, got[0].Free)

	n, err := m.UsableSize(p)
	require.NoError(t, err)
	require.Equal(t, uint32(heap.PageSize-HeaderSize), n)
	require.Zero(t, m.GetStats().SplitCount)
}

// TestManager_SplitLeavesHeaderOnlyBlock tests a remainder of exactly one header.
func TestManager_SplitLeavesHeaderOnlyBlock(t *testing.T) {
	m, _ := newTestManager(t, 0)

	_, err := m.Alloc(65512)
	require.NoError(t, err)

	got := blocks(t, m)
	require.Len(t, got, 2)
	require.Equal(t, Block{Addr: 65524, Next: 0, Size: HeaderSize, Free: true}, got[1])
	requireInvariants(t, m, true)
}

// TestManager_DoubleReleaseIdempotent tests that releasing a block twice
// leaves the space byte-for-byte unchanged.
func TestManager_DoubleReleaseIdempotent(t *testing.T) {
	m, sp := newTestManager(t, 0)

	a, err := m.Alloc(40)
	require.NoError(t, err)
	b, err := m.Alloc(40)
	require.NoError(t, err)

	for _, p := range []heap.Ptr{a, b} {
		require.NoError(t, m.Free(p))
		before := snapshot(sp)
		require.NoError(t, m.Free(p))
		require.Equal(t, before, sp.Bytes(), "second release of 0x%X must change nothing", p)
		requireInvariants(t, m, true)
	}

	stats := m.GetStats()
	assert.Equal(t, 1, stats.FreeRepeat, "a is still a free block when released again")
	assert.Equal(t, 1, stats.FreeIgnored, "b was absorbed into a and is no longer a block")
}

// TestManager_RoundTripReuse tests that alloc/free/alloc of the same size
// returns the same pointer without growing.
func TestManager_RoundTripReuse(t *testing.T) {
	m, sp := newTestManager(t, 0)

	for _, size := range []uint32{0, 1, 64, 1000, 65000, 70000} {
		p, err := m.Alloc(size)
		require.NoError(t, err)
		pages := sp.Pages()

		require.NoError(t, m.Free(p))
		q, err := m.Alloc(size)
		require.NoError(t, err)

		assert.Equal(t, p, q, "size %d", size)
		assert.Equal(t, pages, sp.Pages(), "size %d must not grow again", size)
		require.NoError(t, m.Free(q))
	}
	requireInvariants(t, m, true)
}

// TestManager_CoalesceThreeBlocks tests that releasing three adjacent blocks
// in any order collapses the heap back to a single free block.
func TestManager_CoalesceThreeBlocks(t *testing.T) {
	orders := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	for _, order := range orders {
		m, _ := newTestManager(t, 0)
		var ptrs [3]heap.Ptr
		for i := range ptrs {
			p, err := m.Alloc(16)
			require.NoError(t, err)
			ptrs[i] = p
		}

		for _, i := range order {
			require.NoError(t, m.Free(ptrs[i]))
			requireInvariants(t, m, true)
		}

		got := blocks(t, m)
		require.Len(t, got, 1, "order %v", order)
		require.Equal(t, Block{Addr: 0, Size: heap.PageSize, Free: true}, got[0])
	}
}

// TestManager_CoalesceMergeCount tests the merge counter for a known sequence.
func TestManager_CoalesceMergeCount(t *testing.T) {
	m, _ := newTestManager(t, 0)
	a, _ := m.Alloc(16)
	b, _ := m.Alloc(16)
	c, _ := m.Alloc(16)

	require.NoError(t, m.Free(a)) // a stays alone
	require.Zero(t, m.GetStats().MergeCount)
	require.NoError(t, m.Free(c)) // c absorbs the tail
	require.Equal(t, 1, m.GetStats().MergeCount)
	require.NoError(t, m.Free(b)) // a absorbs b, then c
	require.Equal(t, 3, m.GetStats().MergeCount)
}

// TestManager_GrowthFreeTailExtends tests a page-plus request on a fresh heap:
// the free head absorbs the second page.
func TestManager_GrowthFreeTailExtends(t *testing.T) {
	m, sp := newTestManager(t, 0)

	p, err := m.Alloc(heap.PageSize)
	require.NoError(t, err)
	require.Equal(t, heap.Ptr(12), p)
	require.Equal(t, uint32(2), sp.Pages())

	got := blocks(t, m)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(heap.PageSize+HeaderSize), got[0].Size)
	assert.Equal(t, Block{Addr: heap.PageSize + HeaderSize, Size: heap.PageSize - HeaderSize, Free: true}, got[1])

	stats := m.GetStats()
	assert.Equal(t, 2, stats.GrowCalls)
	assert.Equal(t, 1, stats.TailExtends)
	assert.Equal(t, 1, stats.AllocSlowPath)
	requireInvariants(t, m, true)
}

// TestManager_GrowthAfterPartialTail tests that a free tail too small for the
// request is extended rather than abandoned.
func TestManager_GrowthAfterPartialTail(t *testing.T) {
	m, sp := newTestManager(t, 0)

	_, err := m.Alloc(16)
	require.NoError(t, err)
	p, err := m.Alloc(heap.PageSize)
	require.NoError(t, err)

	require.Equal(t, heap.Ptr(28+HeaderSize), p, "allocation starts at the old tail")
	require.Equal(t, uint32(2), sp.Pages())
	require.Equal(t, 1, m.GetStats().TailExtends)
	requireInvariants(t, m, true)
}

// TestManager_GrowthAfterUsedTail tests that a new page is linked after an
// in-use tail.
func TestManager_GrowthAfterUsedTail(t *testing.T) {
	m, sp := newTestManager(t, 0)

	_, err := m.Alloc(65520)
	require.NoError(t, err)
	p, err := m.Alloc(16)
	require.NoError(t, err)

	require.Equal(t, heap.Ptr(heap.PageSize+HeaderSize), p)
	require.Equal(t, uint32(2), sp.Pages())
	require.Zero(t, m.GetStats().TailExtends)

	got := blocks(t, m)
	require.Equal(t, heap.Ptr(heap.PageSize), got[0].Next)
	requireInvariants(t, m, true)
}

// TestManager_MultiPageRequest tests a request spanning several pages.
func TestManager_MultiPageRequest(t *testing.T) {
	m, sp := newTestManager(t, 0)

	p, err := m.Alloc(3 * heap.PageSize)
	require.NoError(t, err)
	require.Equal(t, uint32(4), sp.Pages())

	buf, err := m.Payload(p, 3*heap.PageSize)
	require.NoError(t, err)
	require.Len(t, buf, 3*heap.PageSize)
	requireInvariants(t, m, true)
}

// TestManager_ForeignPointers tests that pointers not returned by Alloc are ignored.
func TestManager_ForeignPointers(t *testing.T) {
	m, sp := newTestManager(t, 0)

	a, err := m.Alloc(64)
	require.NoError(t, err)
	b, err := m.Alloc(64)
	require.NoError(t, err)

	foreign := []heap.Ptr{
		heap.Null,
		4,          // below the header size
		a + 1,      // interior
		a + 4,      // interior, word aligned
		b - 4,      // inside a's payload
		0x8000,     // inside the free tail
		0xFFF0,     // near the end of the page
		0x7FFFFFF0, // far outside the space
		0xFFFFFFFF,
	}
	before := snapshot(sp)
	for _, p := range foreign {
		require.NoError(t, m.Free(p), "Free(0x%X)", p)
		require.Equal(t, before, sp.Bytes(), "Free(0x%X) must not touch the space", p)
	}
	require.Equal(t, len(foreign), m.GetStats().FreeIgnored)

	// The real allocations are still live.
	_, err = m.UsableSize(a)
	require.NoError(t, err)
	_, err = m.UsableSize(b)
	require.NoError(t, err)
}

// TestManager_PreexistingPages tests a heap on a space that already has pages.
func TestManager_PreexistingPages(t *testing.T) {
	sp := heap.NewSliceSpace(2, 0)
	host := sp.Bytes()
	for i := range host {
		host[i] = 0xAA
	}
	m := New(sp, nil, nil)

	p, err := m.Alloc(8)
	require.NoError(t, err)
	require.Equal(t, heap.Ptr(2*heap.PageSize+HeaderSize), p)

	head, _ := m.Head()
	require.Equal(t, heap.Ptr(2*heap.PageSize), head)

	// Addresses in the host's pages are foreign.
	require.NoError(t, m.Free(HeaderSize))
	require.Equal(t, 1, m.GetStats().FreeIgnored)

	data := sp.Bytes()
	require.Equal(t, bytes.Repeat([]byte{0xAA}, 2*heap.PageSize), data[:2*heap.PageSize])
	requireInvariants(t, m, true)
}

// TestManager_GrowFailPageLimit tests exhaustion at the configured page limit.
func TestManager_GrowFailPageLimit(t *testing.T) {
	sp := heap.NewSliceSpace(0, 0)
	m := New(sp, nil, &Config{MaxPages: 1})

	_, err := m.Alloc(65520)
	require.NoError(t, err)

	p, err := m.Alloc(1)
	require.ErrorIs(t, err, ErrGrowFail)
	require.Equal(t, heap.Null, p)
	require.Equal(t, uint32(1), sp.Pages())
	requireInvariants(t, m, true)
}

// TestManager_GrowFailHostRefuses tests exhaustion when the host refuses growth.
func TestManager_GrowFailHostRefuses(t *testing.T) {
	m, sp := newTestManager(t, 1)

	_, err := m.Alloc(100)
	require.NoError(t, err)

	_, err = m.Alloc(heap.PageSize)
	require.ErrorIs(t, err, ErrGrowFail)
	require.Contains(t, err.Error(), "host refused")
	require.Equal(t, uint32(1), sp.Pages())

	// A failed allocation leaves the heap usable.
	_, err = m.Alloc(100)
	require.NoError(t, err)
	requireInvariants(t, m, true)
}

// TestManager_MallocPanics tests that the total form panics on exhaustion.
func TestManager_MallocPanics(t *testing.T) {
	m, _ := newTestManager(t, 1)

	require.NotPanics(t, func() { m.Malloc(16) })
	require.Panics(t, func() { m.Malloc(heap.PageSize) })
}

// TestManager_TooLarge tests that impossible requests fail without growing.
func TestManager_TooLarge(t *testing.T) {
	sp := heap.NewSliceSpace(0, 0)
	m := New(sp, nil, &Config{MaxPages: 2})

	_, err := m.Alloc(2 * heap.PageSize)
	require.ErrorIs(t, err, ErrTooLarge)
	require.Zero(t, sp.Pages())

	_, err = m.Alloc(0xFFFFFFFF)
	require.ErrorIs(t, err, ErrTooLarge)

	// The largest request that fits uses every page and is not split.
	p, err := m.Alloc(2*heap.PageSize - HeaderSize)
	require.NoError(t, err)
	require.Equal(t, heap.Ptr(HeaderSize), p)
	require.Equal(t, uint32(2), sp.Pages())
	require.Len(t, blocks(t, m), 1)
}

// TestManager_CorruptLink tests that a broken link is reported instead of followed.
func TestManager_CorruptLink(t *testing.T) {
	m, sp := newTestManager(t, 0)

	a, err := m.Alloc(16)
	require.NoError(t, err)
	_, err = m.Alloc(16)
	require.NoError(t, err)

	// Link the head back into its own header.
	format.PutU32(sp.Bytes(), format.NextOffset, 4)

	_, err = m.Alloc(16)
	require.ErrorIs(t, err, ErrCorrupt)

	err = m.Free(a)
	require.ErrorIs(t, err, ErrCorrupt)
	require.Panics(t, func() { m.Release(a) })

	require.ErrorIs(t, m.Walk(func(Block) bool { return true }), ErrCorrupt)
}

// TestManager_CorruptSize tests that a header running past the space is reported.
func TestManager_CorruptSize(t *testing.T) {
	m, sp := newTestManager(t, 0)

	_, err := m.Alloc(16)
	require.NoError(t, err)
	format.PutU32(sp.Bytes(), 28+format.SizeOffset, 2*heap.PageSize)

	_, err = m.Alloc(heap.PageSize)
	require.ErrorIs(t, err, ErrCorrupt)
	require.Contains(t, err.Error(), "ends past the space")
}

// TestManager_ForeignGrowth tests growth by someone else between the tail and
// the allocator's new page.
func TestManager_ForeignGrowth(t *testing.T) {
	m, sp := newTestManager(t, 0)

	_, err := m.Alloc(16)
	require.NoError(t, err)

	m.onGrow = func(uint32) {
		m.onGrow = nil
		_, ok := sp.Grow(1)
		require.True(t, ok)
	}
	_, err = m.Alloc(heap.PageSize)
	require.ErrorIs(t, err, ErrForeignGrowth)
	require.Panics(t, func() { m.Malloc(heap.PageSize) })
}

// TestManager_GrowByPages tests eager growth.
func TestManager_GrowByPages(t *testing.T) {
	m, sp := newTestManager(t, 0)

	require.ErrorIs(t, m.GrowByPages(0), ErrBadPages)
	require.ErrorIs(t, m.GrowByPages(-1), ErrBadPages)

	require.NoError(t, m.GrowByPages(3))
	require.Equal(t, uint32(3), sp.Pages())
	got := blocks(t, m)
	require.Equal(t, []Block{{Addr: 0, Size: 3 * heap.PageSize, Free: true}}, got)

	grows := m.GetStats().GrowCalls
	_, err := m.Alloc(2 * heap.PageSize)
	require.NoError(t, err)
	require.Equal(t, grows, m.GetStats().GrowCalls, "pre-grown pages satisfy the request")

	// Growing after an in-use tail links a new block.
	_, err = m.Alloc(heap.PageSize - 2*HeaderSize - 4)
	require.NoError(t, err)
	require.NoError(t, m.GrowByPages(1))
	requireInvariants(t, m, true)
}

// TestManager_Payload tests the safe payload accessor.
func TestManager_Payload(t *testing.T) {
	m, _ := newTestManager(t, 0)

	p, err := m.Alloc(10)
	require.NoError(t, err)

	buf, err := m.Payload(p, 10)
	require.NoError(t, err)
	require.Len(t, buf, 10)
	require.Equal(t, 10, cap(buf), "view must not reach the next header")
	copy(buf, "0123456789")

	// Rounded up to the word, so 12 bytes are usable.
	_, err = m.Payload(p, 12)
	require.NoError(t, err)
	_, err = m.Payload(p, 13)
	require.ErrorIs(t, err, ErrBadPtr)

	_, err = m.Payload(p+4, 1)
	require.ErrorIs(t, err, ErrBadPtr)
	_, err = m.Payload(4, 1)
	require.ErrorIs(t, err, ErrBadPtr)

	require.NoError(t, m.Free(p))
	_, err = m.Payload(p, 1)
	require.ErrorIs(t, err, ErrBadPtr)
	_, err = m.UsableSize(p)
	require.ErrorIs(t, err, ErrBadPtr)
}

// TestManager_DirtyTracking tests that header writes are reported.
func TestManager_DirtyTracking(t *testing.T) {
	dt := dirty.NewTracker()
	m := New(heap.NewSliceSpace(0, 0), dt, nil)

	p, err := m.Alloc(100)
	require.NoError(t, err)

	require.Equal(t, []dirty.Range{{Off: 0, Len: HeaderSize}, {Off: 112, Len: HeaderSize}}, dt.Ranges())
	require.False(t, dt.Touched(int64(p)), "payload bytes are never written by the allocator")

	dt.Reset()
	require.NoError(t, m.Free(p))
	require.Equal(t, []dirty.Range{{Off: 0, Len: HeaderSize}}, dt.Ranges())
	require.Equal(t, []uint32{0}, dt.Pages())

	// Ignored releases write nothing.
	dt.Reset()
	require.NoError(t, m.Free(p+4))
	require.Zero(t, dt.Len())
}

// TestManager_WalkContext tests cancellation between blocks.
func TestManager_WalkContext(t *testing.T) {
	m, _ := newTestManager(t, 0)
	for range 4 {
		_, err := m.Alloc(8)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	seen := 0
	err := m.WalkContext(ctx, func(Block) bool {
		seen++
		if seen == 2 {
			cancel()
		}
		return true
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, seen)

	seen = 0
	require.NoError(t, m.WalkContext(context.Background(), func(Block) bool {
		seen++
		return true
	}))
	require.Equal(t, 5, seen)
}

// TestManager_Usage tests the chain summary and stats output.
func TestManager_Usage(t *testing.T) {
	m, _ := newTestManager(t, 0)

	u, err := m.Usage()
	require.NoError(t, err)
	require.Zero(t, u.Blocks, "uninitialized heap has no blocks")

	a, _ := m.Alloc(100)
	_, _ = m.Alloc(200)
	require.NoError(t, m.Free(a))

	u, err = m.Usage()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), u.Pages)
	assert.Equal(t, uint64(heap.PageSize), u.HeapBytes)
	assert.Equal(t, 3, u.Blocks)
	assert.Equal(t, 1, u.UsedBlocks)
	assert.Equal(t, 2, u.FreeBlocks)
	assert.Equal(t, uint64(212), u.UsedBytes)
	assert.Equal(t, uint64(heap.PageSize-212), u.FreeBytes)
	assert.Equal(t, uint32(heap.PageSize-324), u.LargestFree)
	assert.InDelta(t, 112.0/float64(heap.PageSize-212), u.Fragmentation(), 1e-9)

	var out bytes.Buffer
	require.NoError(t, m.PrintStats(&out))
	assert.Contains(t, out.String(), "Alloc calls:        2 (fast: 1, slow: 1)")
	assert.Contains(t, out.String(), "Heap bytes:       65,536")
	assert.Contains(t, out.String(), "Blocks:           3 (used: 1, free: 2)")
}

// TestManager_Logger tests that ignored releases reach an injected logger.
func TestManager_Logger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := New(heap.NewSliceSpace(0, 1), nil, &Config{Logger: logger})

	_, err := m.Alloc(16)
	require.NoError(t, err)
	require.NoError(t, m.Free(3))
	_, err = m.Alloc(heap.PageSize)
	require.True(t, errors.Is(err, ErrGrowFail))

	assert.Contains(t, logs.String(), "grew address space")
	assert.Contains(t, logs.String(), "ignored release")
	assert.Contains(t, logs.String(), "host refused to grow address space")
}
