// Package verify provides validation functions for heap block chains.
//
// # Overview
//
// The checks operate on the raw bytes of an address space plus the address
// of the head block, so they do not trust any allocator state. They are used
// by tests after every allocator operation and by heapctl --verify.
//
// Validation categories:
//   - Chain structure: headers in bounds, sizes, word alignment, contiguous
//     forward links, tail ending at the end of the space
//   - Coalescing: no two adjacent blocks both free
//   - Payloads: every live allocation sits inside its own in-use block
//
// # Quick Start
//
//	head, ok := m.Head()
//	if ok {
//	    if err := verify.AllInvariants(m.Space().Bytes(), head); err != nil {
//	        fmt.Printf("Validation failed: %v\n", err)
//	    }
//	}
//
// # ValidationError
//
// All validation functions return *ValidationError on failure:
//
//	type ValidationError struct {
//	    Type    string // Error category (e.g., "ChainStructure")
//	    Message string // Human-readable description
//	    Offset  int    // Address where the error occurred (-1 if N/A)
//	}
package verify
