//go:build !unix

package heap

// MmapSpace falls back to a slice-backed space where anonymous mappings are
// not available.
type MmapSpace struct {
	*SliceSpace
}

// NewMmapSpace returns a slice-backed space limited to maxPages.
func NewMmapSpace(maxPages uint32) (*MmapSpace, error) {
	return &MmapSpace{SliceSpace: NewSliceSpace(0, maxPages)}, nil
}

// Close is a no-op for the slice fallback.
func (s *MmapSpace) Close() error { return nil }
