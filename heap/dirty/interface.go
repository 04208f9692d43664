package dirty

// DirtyTracker is the minimal interface for tracking written byte ranges.
// Allocators report every header they write through it; they never read the
// ranges back.
type DirtyTracker interface {
	// Add marks a byte range as written.
	// off is the address of the first byte, length is the number of bytes.
	Add(off, length int)
}
