// Package dirty records which byte ranges of an address space an allocator
// has written.
//
// The allocators write only block headers, so the tracker ends up holding
// the headers touched by each operation. Callers use it to highlight the
// blocks an operation changed, and to count how many pages a workload
// dirtied.
package dirty

import (
	"sort"

	"github.com/joshuapare/heapkit/internal/format"
)

// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
const defaultRangeCapacity = 64

// Range represents a written byte range.
type Range struct {
	Off int64 // Address of the first byte
	Len int64 // Length in bytes
}

// End returns the address one past the range.
func (r Range) End() int64 { return r.Off + r.Len }

// Contains reports whether addr falls inside the range.
func (r Range) Contains(addr int64) bool { return addr >= r.Off && addr < r.End() }

// Tracker accumulates written ranges.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	ranges   []Range
	pageSize int64
}

// NewTracker creates a tracker that reports pages of format.PageSize.
func NewTracker() *Tracker {
	return &Tracker{
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: format.PageSize,
	}
}

// Add records a written range. Empty ranges are ignored.
func (t *Tracker) Add(off, length int) {
	if length <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{
		Off: int64(off),
		Len: int64(length),
	})
}

// Len returns the number of raw ranges recorded since the last Reset.
func (t *Tracker) Len() int { return len(t.ranges) }

// Reset clears all tracked ranges.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// Ranges returns the recorded ranges sorted by offset with overlapping and
// adjacent ranges merged.
func (t *Tracker) Ranges() []Range {
	return merge(t.ranges, 1)
}

// Pages returns the sorted indexes of every page touched since the last Reset.
func (t *Tracker) Pages() []uint32 {
	var pages []uint32
	for _, r := range merge(t.ranges, t.pageSize) {
		for p := r.Off / t.pageSize; p < r.End()/t.pageSize; p++ {
			pages = append(pages, uint32(p))
		}
	}
	return pages
}

// Touched reports whether addr lies in any recorded range.
func (t *Tracker) Touched(addr int64) bool {
	for _, r := range t.ranges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// merge aligns ranges outward to multiples of unit, sorts them, and merges
// overlapping/adjacent ranges. It returns a new slice.
func merge(ranges []Range, unit int64) []Range {
	if len(ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(ranges))
	for i, r := range ranges {
		start := (r.Off / unit) * unit
		end := r.End()
		if end%unit != 0 {
			end = ((end / unit) + 1) * unit
		}
		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= current.End() {
			if next.End() > current.End() {
				current.Len = next.End() - current.Off
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// Compile-time interface check
var _ DirtyTracker = (*Tracker)(nil)
