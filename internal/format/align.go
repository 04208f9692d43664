package format

// AlignWord returns n rounded up to the next WordAlignment boundary.
//
// Example:
//
//	AlignWord(0) = 0
//	AlignWord(1) = 4
//	AlignWord(4) = 4
//	AlignWord(5) = 8
func AlignWord(n uint64) uint64 {
	return (n + WordAlignmentMask) &^ WordAlignmentMask
}

// AlignPage returns n rounded up to the next PageSize boundary.
//
// Example:
//
//	AlignPage(1)     = 65536
//	AlignPage(65536) = 65536
//	AlignPage(65537) = 131072
func AlignPage(n uint64) uint64 {
	return (n + PageSize - 1) &^ (PageSize - 1)
}

// PagesFor returns the number of whole pages needed to hold n bytes.
func PagesFor(n uint64) uint64 {
	return AlignPage(n) >> PageShift
}
