//go:build unix

package heap

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// MmapSpace is a Space backed by an anonymous private mapping. The whole
// range up to maxPages is reserved PROT_NONE when the space is created, and
// each Grow commits the next pages read/write. Because the mapping never
// moves, byte views taken before a Grow stay valid.
//
// NOT thread-safe.
type MmapSpace struct {
	reserved []byte
	pages    uint32
}

// NewMmapSpace reserves address space for maxPages pages (clamped to
// MaxPages; zero means MaxPages). The space starts with zero pages.
func NewMmapSpace(maxPages uint32) (*MmapSpace, error) {
	if maxPages == 0 || maxPages > MaxPages {
		maxPages = MaxPages
	}
	mem, err := unix.Mmap(-1, 0, int(maxPages)*PageSize, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("heap: failed to reserve %d pages: %w", maxPages, err)
	}
	return &MmapSpace{reserved: mem}, nil
}

func (s *MmapSpace) Pages() uint32 { return s.pages }

func (s *MmapSpace) Bytes() []byte {
	if s.reserved == nil {
		return nil
	}
	return s.reserved[:int(s.pages)*PageSize]
}

// MaxPages returns the number of pages reserved for the space.
func (s *MmapSpace) MaxPages() uint32 { return uint32(len(s.reserved) / PageSize) }

// Grow commits delta more pages of the reservation.
func (s *MmapSpace) Grow(delta uint32) (uint32, bool) {
	prev := s.pages
	if s.reserved == nil || uint64(prev)+uint64(delta) > uint64(s.MaxPages()) {
		return prev, false
	}
	if delta == 0 {
		return prev, true
	}
	start := int(prev) * PageSize
	end := start + int(delta)*PageSize
	if err := unix.Mprotect(s.reserved[start:end], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return prev, false
	}
	s.pages += delta
	return prev, true
}

// Close unmaps the reservation. Views returned by Bytes must not be used
// afterwards. Closing twice is a no-op.
func (s *MmapSpace) Close() error {
	if s.reserved == nil {
		return nil
	}
	err := unix.Munmap(s.reserved)
	if errors.Is(err, unix.EINVAL) {
		err = nil
	}
	s.reserved = nil
	s.pages = 0
	return err
}

// Compile-time interface check
var _ Space = (*MmapSpace)(nil)
