package alloc

import (
	"log/slog"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/internal/format"
)

// HeaderSize is the number of bytes every block spends on its header.
const HeaderSize = format.HeaderSize

// Config tunes an allocator.
type Config struct {
	// MaxPages caps the address space the allocator will grow to. Zero or
	// anything above heap.MaxPages means heap.MaxPages.
	MaxPages uint32

	// Logger receives growth and release diagnostics. Nil uses the logger
	// selected by the HEAPKIT_LOG_ALLOC environment variable.
	Logger *slog.Logger
}

// DefaultConfig lets the address space grow to heap.MaxPages.
var DefaultConfig = Config{MaxPages: heap.MaxPages}

func (c *Config) normalize() Config {
	out := DefaultConfig
	if c != nil {
		out = *c
	}
	if out.MaxPages == 0 || out.MaxPages > heap.MaxPages {
		out.MaxPages = heap.MaxPages
	}
	if out.Logger == nil {
		out.Logger = defaultLogger()
	}
	return out
}

// Block is a snapshot of one block header.
type Block struct {
	Addr heap.Ptr // Address of the header
	Next heap.Ptr // Address of the following block, 0 for the tail
	Size uint32   // Total size including the header
	Free bool
}

// Payload returns the address handed to clients for this block.
func (b Block) Payload() heap.Ptr { return b.Addr + HeaderSize }

// Cap returns the payload capacity of the block.
func (b Block) Cap() uint32 { return b.Size - HeaderSize }

// End returns the address one past the block.
func (b Block) End() uint64 { return uint64(b.Addr) + uint64(b.Size) }

// Stats holds allocator operation counters.
type Stats struct {
	AllocCalls     int   // Total Alloc() calls
	AllocFastPath  int   // Allocations that succeeded without growing
	AllocSlowPath  int   // Allocations that had to grow the address space
	FreeCalls      int   // Total Free() calls
	FreeIgnored    int   // Free() calls on null, foreign, or stale pointers
	FreeRepeat     int   // Free() calls on a block that was already free
	GrowCalls      int   // Pages grown
	TailExtends    int   // Grown pages absorbed into a free tail block
	SplitCount     int   // Blocks split on allocation
	MergeCount     int   // Adjacent free blocks merged
	BytesAllocated int64 // Total block bytes handed out (including headers)
	BytesFreed     int64 // Total block bytes released (including headers)
}

// Usage summarizes the current state of the chain.
type Usage struct {
	Pages       uint32 // Pages in the address space
	HeapBytes   uint64 // Bytes covered by the chain
	Blocks      int
	UsedBlocks  int
	FreeBlocks  int
	UsedBytes   uint64 // Bytes in in-use blocks (including headers)
	FreeBytes   uint64 // Bytes in free blocks (including headers)
	LargestFree uint32 // Size of the largest free block (including header)
}

// PageKB is the page size in kilobytes.
const PageKB = 64

// Fragmentation returns the share of free bytes outside the largest free
// block: 0 when all free space is in one block, approaching 1 as it scatters.
func (u Usage) Fragmentation() float64 {
	if u.FreeBytes == 0 {
		return 0
	}
	return 1 - float64(u.LargestFree)/float64(u.FreeBytes)
}
