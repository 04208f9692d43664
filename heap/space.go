package heap

import (
	"github.com/joshuapare/heapkit/internal/format"
)

// Ptr is an address inside a Space.
type Ptr = uint32

const (
	// Null is the null pointer.
	Null Ptr = format.NullAddr

	// PageSize is the growth unit of every Space.
	PageSize = format.PageSize

	// MaxPages is the largest page count a Space may reach while keeping every
	// address representable as a Ptr.
	MaxPages = format.MaxPages
)

// Space is a linear, page-growable address space.
type Space interface {
	// Pages returns the current size of the space in pages.
	Pages() uint32

	// Grow adds delta pages and returns the page count before growth. ok is
	// false when the host refuses, in which case the space is unchanged.
	Grow(delta uint32) (previous uint32, ok bool)

	// Bytes returns a view of the whole space. The view may be invalidated
	// by Grow.
	Bytes() []byte
}

// SliceSpace is a Space backed by a Go byte slice.
//
// NOT thread-safe.
type SliceSpace struct {
	data     []byte
	maxPages uint32
}

// NewSliceSpace creates a slice-backed space that starts with initial pages
// and refuses to grow past maxPages. maxPages is clamped to MaxPages; zero
// means MaxPages.
func NewSliceSpace(initial, maxPages uint32) *SliceSpace {
	if maxPages == 0 || maxPages > MaxPages {
		maxPages = MaxPages
	}
	if initial > maxPages {
		initial = maxPages
	}
	return &SliceSpace{
		data:     make([]byte, int(initial)*PageSize),
		maxPages: maxPages,
	}
}

func (s *SliceSpace) Pages() uint32 { return uint32(len(s.data) / PageSize) }

func (s *SliceSpace) Bytes() []byte { return s.data }

// MaxPages returns the growth limit of the space.
func (s *SliceSpace) MaxPages() uint32 { return s.maxPages }

// Grow appends delta zeroed pages.
func (s *SliceSpace) Grow(delta uint32) (uint32, bool) {
	prev := s.Pages()
	if uint64(prev)+uint64(delta) > uint64(s.maxPages) {
		return prev, false
	}
	if delta == 0 {
		return prev, true
	}
	s.data = append(s.data, make([]byte, int(delta)*PageSize)...)
	return prev, true
}

// Compile-time interface check
var _ Space = (*SliceSpace)(nil)
